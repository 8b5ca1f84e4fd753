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

// Package catalogue holds the per-application set of declared working modes
// and the recipe-file decoder that populates it.
package catalogue

import (
	"fmt"

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/respath"
)

// ConstraintKind is the predicate a Constraint applies to a resolved request
// amount.
type ConstraintKind string

const (
	LowerBound ConstraintKind = "lower_bound"
	UpperBound ConstraintKind = "upper_bound"
	ExactValue ConstraintKind = "exact_value"
)

// Constraint bounds the amount a working mode may request on a template path,
// applied on top of the declared request before binding.
type Constraint struct {
	Path  respath.Path
	Kind  ConstraintKind
	Value uint64
}

// Request is one (template_path, amount) entry of a working mode's request
// vector, §3.
type Request struct {
	Path   respath.Path
	Amount uint64
}

// WorkingMode is one operating point an application may be scheduled into.
type WorkingMode struct {
	ID               string
	OwnerApplication string
	StaticValue      float32 // §3 static_value in [0,1]
	Requests         []Request
	Constraints      []Constraint
}

// Value returns the working mode's static_value, the `value(wm)` referenced
// in §4.4.1.
func (w *WorkingMode) Value() float32 { return w.StaticValue }

// RequestFor returns the declared amount for path, honouring any active
// constraint that overrides it, or false if the working mode names no
// request matching path.
func (w *WorkingMode) RequestFor(path respath.Path) (uint64, bool) {
	for _, r := range w.Requests {
		if !r.Path.Equal(path) {
			continue
		}
		amount := r.Amount
		for _, c := range w.Constraints {
			if !c.Path.Equal(path) {
				continue
			}
			switch c.Kind {
			case LowerBound:
				if amount < c.Value {
					amount = c.Value
				}
			case UpperBound:
				if amount > c.Value {
					amount = c.Value
				}
			case ExactValue:
				amount = c.Value
			}
		}
		return amount, true
	}
	return 0, false
}

// validate enforces §3's working-mode invariant (disjoint template paths)
// and §6's recipe-parsing rejections (duplicate ids handled by the
// catalogue, non-positive amounts here).
func (w *WorkingMode) validate() error {
	seen := make(map[string]struct{}, len(w.Requests))
	for _, r := range w.Requests {
		if r.Amount == 0 {
			return fmt.Errorf("catalogue: working mode %s: non-positive amount for %s", w.ID, r.Path)
		}
		key := r.Path.Key()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("catalogue: working mode %s: duplicate request for %s", w.ID, r.Path)
		}
		seen[key] = struct{}{}
	}
	if w.StaticValue < 0 || w.StaticValue > 1 {
		return fmt.Errorf("catalogue: working mode %s: static_value %f out of [0,1]", w.ID, w.StaticValue)
	}
	return nil
}
