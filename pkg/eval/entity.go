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

// Package eval defines the Evaluation entity, the value that transits the
// scheduling pipeline: a weak, id-based reference to an application, a
// working mode and a binding mask, never an owning pointer (Design Notes §9).
package eval

// Entity is the (application, working_mode, binding_mask) triple scored by
// the Contribution Library and ranked by the Aggregator.
type Entity struct {
	AppID       string
	WorkingMode string
	BindingBits uint64 // bitset over binding-domain ids

	score float32
	set   bool
}

// Score returns the entity's aggregated score and whether one has been
// attached yet.
func (e *Entity) Score() (float32, bool) { return e.score, e.set }

// SetScore attaches the Aggregator's computed score; an Entity is mutated
// only to record this, per §3.
func (e *Entity) SetScore(s float32) {
	e.score = s
	e.set = true
}

// BindingIDs expands BindingBits into its set bits, smallest first; the
// first element is the "min_binding_id" used in the scheduler's tie-break
// (§4.6 step 4).
func (e *Entity) BindingIDs() []int {
	var out []int
	for i := 0; i < 64; i++ {
		if e.BindingBits&(uint64(1)<<uint(i)) != 0 {
			out = append(out, i)
		}
	}
	return out
}

// MinBindingID returns the lowest set bit in BindingBits, or -1 if none.
func (e *Entity) MinBindingID() int {
	ids := e.BindingIDs()
	if len(ids) == 0 {
		return -1
	}
	return ids[0]
}
