/*
Copyright 2022 The Koordinator Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package respath

import (
	"fmt"
	"regexp"
	"strings"
)

var segmentRe = regexp.MustCompile(`^([A-Z_]+)(\*|[A-Za-z0-9_-]*)$`)

// Parse decodes a dotted path string such as "SYSTEM0.GROUP0.CPU1.PROC_ELEMENT*"
// into a Path. Recipe files and platform descriptions use this textual form.
func Parse(s string) (Path, error) {
	if s == "" {
		return Path{}, fmt.Errorf("respath: empty path")
	}
	parts := strings.Split(s, ".")
	segs := make([]Segment, 0, len(parts))
	for _, part := range parts {
		m := segmentRe.FindStringSubmatch(part)
		if m == nil {
			return Path{}, fmt.Errorf("respath: malformed segment %q in path %q", part, s)
		}
		segs = append(segs, Segment{Type: Type(m[1]), ID: m[2]})
	}
	return New(segs...), nil
}

// MustParse is Parse but panics on error; used for static paths in tests and
// internal defaults, never on user-supplied input.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}
