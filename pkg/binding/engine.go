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

package binding

import (
	"sort"

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/catalogue"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/eval"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/resource"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/respath"
)

// Candidate pairs an Evaluation entity with its fully-resolved requests,
// i.e. the working mode's template requests with the domain's wildcard
// substituted by a concrete id.
type Candidate struct {
	Entity   eval.Entity
	Resolved []ResolvedRequest
}

// ResolvedRequest is one working-mode request after wildcard substitution.
type ResolvedRequest struct {
	Path   respath.Path
	Amount uint64
}

// Engine enumerates binding domains and builds candidates against a live
// Accountant (§4.3).
type Engine struct {
	Accountant *resource.Accountant
	DomainType respath.Type
}

// Enumerate returns one Candidate per binding domain of e.DomainType for
// which every request of wm resolves to at least one node, in ascending
// domain-key order for deterministic downstream tie-breaking.
func (e *Engine) Enumerate(appID string, wm *catalogue.WorkingMode) []Candidate {
	var out []Candidate
	domains := e.Accountant.DomainPaths(e.DomainType)
	sort.Slice(domains, func(i, j int) bool { return domains[i].Key() < domains[j].Key() })

	for _, domain := range domains {
		domainSeg, _ := domain.Last()
		var resolved []ResolvedRequest
		ok := true
		for _, req := range wm.Requests {
			amount, has := wm.RequestFor(req.Path)
			if !has {
				ok = false
				break
			}
			substituted := substituteDomain(req.Path, e.DomainType, domainSeg.ID)
			matches := e.Accountant.ResolveTemplate(substituted)
			if len(matches) == 0 {
				// necessary check: at least one matching leaf must exist under
				// this domain for the request to be satisfiable at all.
				ok = false
				break
			}
			for _, m := range matches {
				resolved = append(resolved, ResolvedRequest{Path: m, Amount: amount})
			}
		}
		if !ok || len(resolved) == 0 {
			continue
		}
		bits := uint64(0)
		if idx, isNum := domainOrdinal(domainSeg.ID); isNum {
			bits = uint64(1) << uint(idx)
		}
		out = append(out, Candidate{
			Entity: eval.Entity{
				AppID:       appID,
				WorkingMode: wm.ID,
				BindingBits: bits,
			},
			Resolved: resolved,
		})
	}
	return out
}

// substituteDomain rewrites every segment of domainType in path to id,
// leaving every other segment (wildcarded or not) untouched.
func substituteDomain(path respath.Path, domainType respath.Type, id string) respath.Path {
	segs := path.Segments()
	out := make([]respath.Segment, len(segs))
	for i, s := range segs {
		if s.Type == domainType {
			out[i] = respath.Segment{Type: s.Type, ID: id}
		} else {
			out[i] = s
		}
	}
	return respath.New(out...)
}

// domainOrdinal extracts a small integer ordinal from a domain id for use
// as a BindingMask bit index; ids above 63 map to bit 63. Ids that are not
// purely numeric report false, and Enumerate then leaves BindingBits at 0
// (no bit set).
func domainOrdinal(id string) (int, bool) {
	if id == "" {
		return 0, false
	}
	n := 0
	for _, r := range id {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
		if n > 63 {
			return 63, true
		}
	}
	return n, true
}
