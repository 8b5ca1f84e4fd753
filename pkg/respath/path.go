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

// Package respath implements the hierarchical resource path namespace: an
// ordered sequence of (type, id) segments with a template form (wildcard ids)
// and a resolved form (no wildcards).
package respath

import (
	"fmt"
	"strings"
)

// Type is a resource node type. The set is closed but extension-friendly:
// new types can be appended without touching existing callers.
type Type string

const (
	System       Type = "SYSTEM"
	Group        Type = "GROUP"
	CPU          Type = "CPU"
	ProcElement  Type = "PROC_ELEMENT"
	Memory       Type = "MEMORY"
	GPU          Type = "GPU"
	Accelerator  Type = "ACCELERATOR"
)

// AnyID is the wildcard id, matching "any id of this type" in a template path.
const AnyID = "*"

// Segment is one (type, id) pair in a resource path.
type Segment struct {
	Type Type
	ID   string
}

func (s Segment) String() string {
	return fmt.Sprintf("%s%s", string(s.Type), s.ID)
}

func (s Segment) IsWildcard() bool {
	return s.ID == AnyID
}

// Path is an ordered sequence of segments. It is used both as a template
// (some segments may be wildcarded) and, once resolved, as a concrete
// resource location. The two forms share the same Go type; IsTemplate
// reports which one a given value currently is.
type Path struct {
	segments []Segment
}

// New builds a Path from a flat list of segments.
func New(segments ...Segment) Path {
	cp := make([]Segment, len(segments))
	copy(cp, segments)
	return Path{segments: cp}
}

// Append returns a new Path with segment appended; Path values are immutable.
func (p Path) Append(seg Segment) Path {
	cp := make([]Segment, len(p.segments)+1)
	copy(cp, p.segments)
	cp[len(p.segments)] = seg
	return Path{segments: cp}
}

func (p Path) Segments() []Segment {
	out := make([]Segment, len(p.segments))
	copy(out, p.segments)
	return out
}

func (p Path) Len() int { return len(p.segments) }

// Last returns the path's final segment and true, or the zero Segment and
// false for an empty path.
func (p Path) Last() (Segment, bool) {
	if len(p.segments) == 0 {
		return Segment{}, false
	}
	return p.segments[len(p.segments)-1], true
}

// IsTemplate reports whether any segment of the path is wildcarded.
func (p Path) IsTemplate() bool {
	for _, s := range p.segments {
		if s.IsWildcard() {
			return true
		}
	}
	return false
}

// Equal is structural equality: same length, same (type,id) at every index.
func (p Path) Equal(other Path) bool {
	if len(p.segments) != len(other.segments) {
		return false
	}
	for i := range p.segments {
		if p.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

// Matches reports whether a resolved path satisfies this (possibly
// templated) path: same length, each segment's type matches and either this
// segment is a wildcard or the ids are equal.
func (p Path) Matches(resolved Path) bool {
	if len(p.segments) != len(resolved.segments) {
		return false
	}
	for i, s := range p.segments {
		r := resolved.segments[i]
		if s.Type != r.Type {
			return false
		}
		if !s.IsWildcard() && s.ID != r.ID {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix's segments are a structural prefix of p.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix.segments) > len(p.segments) {
		return false
	}
	for i, s := range prefix.segments {
		if p.segments[i] != s {
			return false
		}
	}
	return true
}

func (p Path) String() string {
	parts := make([]string, len(p.segments))
	for i, s := range p.segments {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Key returns a canonical cache/map key for exact (non-template) lookups.
func (p Path) Key() string { return p.String() }
