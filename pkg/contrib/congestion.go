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
	"k8s.io/klog/v2"

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/respath"
)

// DefaultCongestionPenalty and DefaultExpBase mirror the source's defaults,
// applied when a per-type penalty or the exponential base is out of range.
const (
	DefaultCongestionPenalty = 0.1
	DefaultExpBase           = 2.0
)

// Congestion implements §4.4.3: penalises pushing any single resource close
// to saturation. Penalty is expressed per resource type, percentage in the
// recipe/config layer and normalised to [0,1] here.
type Congestion struct {
	Penalty map[respath.Type]float64
	Base    float64
}

// NewCongestion builds a Congestion contribution from percentage-valued
// penalties (0-100), clamping out-of-range entries to the default and
// logging a warning, per §D.
func NewCongestion(penaltyPercent map[respath.Type]float64, base float64) *Congestion {
	penalties := make(map[respath.Type]float64, len(penaltyPercent))
	for t, p := range penaltyPercent {
		v := p / 100
		if v < 0 || v > 1 {
			klog.Warningf("contrib: congestion penalty.%s %.2f out of [0,100], using default", t, p)
			v = DefaultCongestionPenalty
		}
		penalties[t] = v
	}
	if base <= 1 {
		base = DefaultExpBase
	}
	return &Congestion{Penalty: penalties, Base: base}
}

func (c *Congestion) Name() string { return "congestion" }

func (c *Congestion) Init(priority uint16) error { return nil }

func (c *Congestion) penaltyFor(t respath.Type) float64 {
	if p, ok := c.Penalty[t]; ok {
		return p
	}
	return DefaultCongestionPenalty
}

func (c *Congestion) Compute(in Input) (float32, error) {
	best := 1.0
	for _, req := range in.Resolved {
		total := in.Accountant.QueryTotal(req.Path)
		avail := in.Accountant.QueryAvailable(req.Path, in.Token, in.App.ID)
		used := float64(total) - float64(avail)

		seg, _ := req.Path.Last()
		idx := cleIndex(float64(total), used, float64(req.Amount), cleParams{
			penalty: c.penaltyFor(seg.Type),
			base:    c.Base,
		})
		if idx < best {
			best = idx
		}
	}
	return float32(best), nil
}
