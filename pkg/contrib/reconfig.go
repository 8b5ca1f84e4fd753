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

import "k8s.io/klog/v2"

// DefaultMigrationFactor is used when a configured migration_factor is
// negative (§D supplement: clamp-and-warn rather than reject); 0 is kept.
const DefaultMigrationFactor = 5

// Reconfig implements §4.4.2: penalises mode changes and, more strongly,
// binding-domain migrations.
type Reconfig struct {
	MigrationFactor uint32 // natural number, default 5
}

func NewReconfig(migrationFactor int) *Reconfig {
	f := migrationFactor
	if f < 0 {
		klog.Warningf("contrib: migration_factor %d must be a natural number, using default %d", f, DefaultMigrationFactor)
		f = DefaultMigrationFactor
	}
	return &Reconfig{MigrationFactor: uint32(f)}
}

func (r *Reconfig) Name() string { return "reconfiguration" }

func (r *Reconfig) Init(priority uint16) error { return nil }

func (r *Reconfig) Compute(in Input) (float32, error) {
	changedWM := in.CurrentWM == nil || in.CurrentWM.ID != in.CandidateWM.ID
	if !changedWM && !in.Migrating {
		return 1.0, nil
	}

	var migrating float64
	if in.Migrating {
		migrating = 1
	}

	var reconfCost float64
	for _, req := range in.Resolved {
		total := in.Accountant.QueryTotal(req.Path)
		if total == 0 {
			continue
		}
		reconfCost += float64(req.Amount) / float64(total)
	}

	types := float64(in.ResourceTypeCount)
	if types == 0 {
		types = 1
	}
	factor := float64(r.MigrationFactor)
	idx := 1 - ((1+migrating*factor)/(1+factor))*(reconfCost/types)
	return float32(clamp01(idx)), nil
}
