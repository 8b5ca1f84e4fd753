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
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/binding"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/catalogue"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/registry"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/resource"
)

// Input is everything a Contribution needs to score one candidate. It is
// read-only: contributions are pure with respect to the Accountant snapshot
// under the current token and must never mutate it (§4.4).
type Input struct {
	Accountant *resource.Accountant
	Token      resource.Token

	App         registry.Snapshot
	CurrentWM   *catalogue.WorkingMode // nil if the application has none selected yet
	CandidateWM *catalogue.WorkingMode
	Resolved    []binding.ResolvedRequest
	Migrating   bool // candidate binding differs from App's current binding

	ResourceTypeCount uint16
}

// Contribution is one independent scoring dimension. Init is called once
// per priority level before any Compute call at that level (§4.6 step 3);
// Compute maps one candidate to a normalised index in [0,1].
type Contribution interface {
	Name() string
	Init(priority uint16) error
	Compute(in Input) (float32, error)
}
