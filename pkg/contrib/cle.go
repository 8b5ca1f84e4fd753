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

// Package contrib implements the Contribution Library: the independent
// scoring functions (value, reconfiguration, congestion, fairness) combined
// by the Metrics Aggregator into a candidate's final score.
package contrib

import "math"

// cleParams parameterises the congestion/fairness region-index function
// (§4.4.3/§4.4.4): a linear branch for the comfortable region and an
// exponential branch as the resource approaches saturation.
//
// GetResourceThresholds/CLEIndex in the BarbequeRTRM source this was ported
// from were not available to consult directly; the linear and exponential
// formulas below are transcribed verbatim from the two branch equations in
// §4.4.3, and the branch switch point (half of the pre-grant headroom) is
// this port's own choice, recorded in DESIGN.md.
type cleParams struct {
	penalty float64
	base    float64 // exponential base, default 2
}

// cleIndex scores a resolved request of size amount against a node with the
// given total capacity and effective pre-grant usage, returning 0 when the
// node cannot satisfy amount at all.
func cleIndex(total, used, amount float64, p cleParams) float64 {
	satLack := total - used // distance from saturation before this grant
	if amount > satLack {
		return 0
	}
	free := satLack - amount // post-grant free headroom
	x := used + amount       // post-reservation absolute usage level

	if amount*2 <= satLack {
		denom := free - satLack
		if denom == 0 {
			return 1
		}
		return 1 - p.penalty*(x-satLack)/denom
	}

	xscale := free - total
	if xscale == 0 {
		return p.penalty
	}
	base := p.base
	if base <= 1 {
		base = 2
	}
	return (1-p.penalty)*(math.Pow(base, (x-total)/xscale)-1)/(base-1) + p.penalty
}

// fairnessIndex mirrors cleIndex's linear/exponential split but keyed to the
// per-type fair share rather than raw node capacity (§4.4.4): xoffset=0 and
// scale=penalty/bdFair in the linear branch, xoffset=maxBDAvail in the
// exponential branch, switching branch at amount<=bdFair.
func fairnessIndex(amount, bdFair, maxBDAvail float64, p cleParams) float64 {
	if bdFair <= 0 {
		return 0
	}
	if amount <= bdFair {
		return 1 - p.penalty*amount/bdFair
	}
	xscale := bdFair - maxBDAvail
	if xscale == 0 {
		return p.penalty
	}
	base := p.base
	if base <= 1 {
		base = 2
	}
	return (1-p.penalty)*(math.Pow(base, (amount-maxBDAvail)/xscale)-1)/(base-1) + p.penalty
}

// clamp01 restricts a score to [0,1], per the reconfiguration-index overflow
// guard named in the Design Notes.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
