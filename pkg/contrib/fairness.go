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

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/registry"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/resource"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/respath"
)

// fairShare is the per-type snapshot recorded at Fairness.Init (§4.4.4).
type fairShare struct {
	maxBDAvail    float64
	minBDAvail    float64
	fairPartition float64
	bdFraction    float64
	bdFair        float64
	domainCount   int
}

// Fairness implements §4.4.4: prevents a priority level from over-placing
// applications by penalising requests beyond each resource type's
// per-domain fair share.
type Fairness struct {
	Accountant *resource.Accountant
	Registry   *registry.Registry
	DomainType respath.Type // the designated binding-domain type
	Penalty    map[respath.Type]float64
	Base       float64

	token resource.Token
	n     float64
	share map[respath.Type]fairShare
}

// NewFairness builds a Fairness contribution; percentages are normalised to
// [0,1], out-of-range entries fall back to the congestion default.
func NewFairness(acc *resource.Accountant, reg *registry.Registry, domainType respath.Type, penaltyPercent map[respath.Type]float64, base float64) *Fairness {
	penalties := make(map[respath.Type]float64, len(penaltyPercent))
	for t, p := range penaltyPercent {
		v := p / 100
		if v < 0 || v > 1 {
			klog.Warningf("contrib: fairness penalty_type.%s %.2f out of [0,100], using default", t, p)
			v = DefaultCongestionPenalty
		}
		penalties[t] = v
	}
	if base <= 1 {
		base = DefaultExpBase
	}
	return &Fairness{Accountant: acc, Registry: reg, DomainType: domainType, Penalty: penalties, Base: base}
}

func (f *Fairness) Name() string { return "fairness" }

// SetToken must be called once per cycle before Init, so the fair-share
// snapshot is taken under the cycle's live transaction.
func (f *Fairness) SetToken(token resource.Token) { f.token = token }

// Init records max_bd_avail/min_bd_avail/fair_partition/bd_fraction/bd_fair
// per resource type for this priority level, per §4.4.4.
func (f *Fairness) Init(priority uint16) error {
	n := 0
	for _, snap := range f.Registry.ByPriority() {
		if snap.Priority == priority {
			n++
		}
	}
	f.n = float64(n)
	if f.n == 0 {
		f.n = 1
	}

	domains := f.Accountant.DomainPaths(f.DomainType)
	f.share = make(map[respath.Type]fairShare, len(f.Accountant.LeafTypes()))

	for _, t := range f.Accountant.LeafTypes() {
		var maxAvail, minAvail float64
		first := true
		for _, domain := range domains {
			avail := float64(f.Accountant.DomainAvailableByType(domain, t, f.token, ""))
			if first {
				maxAvail, minAvail = avail, avail
				first = false
				continue
			}
			if avail > maxAvail {
				maxAvail = avail
			}
			if avail < minAvail {
				minAvail = avail
			}
		}

		// bd_fraction is ceil(max_bd_avail / fair_partition) with
		// fair_partition = max_bd_avail / N, which reduces to ceil(N); the
		// system-wide availability takes no part in it.
		fairPartition := maxAvail / f.n
		bdFraction := 1.0
		if fairPartition > 0 {
			bdFraction = math.Ceil(maxAvail / fairPartition)
		}
		if bdFraction < 1 {
			bdFraction = 1
		}
		bdFair := maxAvail / bdFraction
		if len(domains) > 1 && bdFair < minAvail {
			bdFair = minAvail
		}

		f.share[t] = fairShare{
			maxBDAvail:    maxAvail,
			minBDAvail:    minAvail,
			fairPartition: fairPartition,
			bdFraction:    bdFraction,
			bdFair:        bdFair,
			domainCount:   len(domains),
		}
	}
	return nil
}

func (f *Fairness) penaltyFor(t respath.Type) float64 {
	if p, ok := f.Penalty[t]; ok {
		return p
	}
	return DefaultCongestionPenalty
}

func (f *Fairness) Compute(in Input) (float32, error) {
	best := 1.0
	for _, req := range in.Resolved {
		seg, _ := req.Path.Last()
		share, ok := f.share[seg.Type]
		if !ok {
			continue
		}
		idx := fairnessIndex(float64(req.Amount), share.bdFair, share.maxBDAvail, cleParams{
			penalty: f.penaltyFor(seg.Type),
			base:    f.Base,
		})
		if idx < best {
			best = idx
		}
	}
	return float32(best), nil
}
