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

package contrib

import (
	"math"

	"k8s.io/klog/v2"
)

// DefaultNapWeight is applied when Value is constructed with an out-of-range
// percentage, mirroring the source's clamp-and-warn-to-default behaviour
// (§D supplement).
const DefaultNapWeight = 0.5

// Value implements §4.4.1: the desirability of a candidate working mode
// relative to the application's performance goal.
type Value struct {
	NapWeight float64 // in [0,1], default 0.5
}

// NewValue builds a Value contribution, clamping an out-of-range
// nap_weight (expressed as a percentage, e.g. 50 for 0.5) to the default and
// logging a warning rather than rejecting the configuration outright.
func NewValue(napWeightPercent float64) *Value {
	w := napWeightPercent / 100
	if w < 0 || w > 1 {
		klog.Warningf("contrib: nap_weight %.2f out of [0,1], using default %.2f", w, DefaultNapWeight)
		w = DefaultNapWeight
	}
	return &Value{NapWeight: w}
}

func (v *Value) Name() string { return "value" }

// Init is a no-op: Value carries no per-level fair-share state.
func (v *Value) Init(priority uint16) error { return nil }

func (v *Value) Compute(in Input) (float32, error) {
	vEval := float64(in.CandidateWM.Value())

	gap := in.App.GoalGap / 100
	if in.CurrentWM == nil || gap == 0 {
		return float32(vEval), nil
	}

	vCurr := float64(in.CurrentWM.Value())
	weight := v.NapWeight
	if gap > 0 {
		weight = 1
	}
	ideal := vCurr * (1 + weight/(1+gap))
	return float32(1 - math.Min(1, math.Abs(vEval-ideal))), nil
}
