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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/catalogue"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/resource"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/respath"
)

const twoGroupPlatform = `
memory_banks:
  - id: mem0
    quantity: "4Gi"
cpu_groups:
  - id: "0"
    memory_affinity: mem0
  - id: "1"
    memory_affinity: mem0
processing_elements:
  - id: "0"
    group_id: "0"
    partition: host
    share: 2
  - id: "1"
    group_id: "1"
    partition: host
    share: 2
`

func buildTestAccountant(t *testing.T) *resource.Accountant {
	t.Helper()
	p, err := LoadPlatform([]byte(twoGroupPlatform))
	require.NoError(t, err)
	acc := resource.New()
	root := respath.New(respath.Segment{Type: respath.System, ID: "0"})
	require.NoError(t, p.Build(acc, root))
	return acc
}

func TestEnumerateProducesOneCandidatePerGroup(t *testing.T) {
	acc := buildTestAccountant(t)
	wm := &catalogue.WorkingMode{
		ID:          "wm0",
		StaticValue: 0.5,
		Requests: []catalogue.Request{
			{Path: respath.MustParse("SYSTEM0.GROUP*.CPU*.PROC_ELEMENT*"), Amount: 2},
		},
	}

	eng := &Engine{Accountant: acc, DomainType: respath.CPU}
	candidates := eng.Enumerate("app0", wm)
	require.Len(t, candidates, 2)
	for _, c := range candidates {
		assert.Equal(t, "app0", c.Entity.AppID)
		assert.NotEmpty(t, c.Resolved)
	}
}

func TestEnumerateSkipsUnsatisfiableDomain(t *testing.T) {
	acc := buildTestAccountant(t)
	wm := &catalogue.WorkingMode{
		ID:          "wm0",
		StaticValue: 0.5,
		Requests: []catalogue.Request{
			{Path: respath.MustParse("SYSTEM0.GROUP*.CPU*.ACCELERATOR*"), Amount: 1},
		},
	}
	eng := &Engine{Accountant: acc, DomainType: respath.CPU}
	candidates := eng.Enumerate("app0", wm)
	assert.Empty(t, candidates)
}
