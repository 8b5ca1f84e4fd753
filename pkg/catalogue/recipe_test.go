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

package catalogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRecipe = `
application: app0
working_modes:
  - id: wm0
    value: 0.3
    requests:
      - path: "SYSTEM0.GROUP0.CPU0.PROC_ELEMENT*"
        amount: 2
  - id: wm1
    value: 0.9
    requests:
      - path: "SYSTEM0.GROUP0.CPU0.PROC_ELEMENT*"
        amount: 4
`

func TestLoadRecipeValid(t *testing.T) {
	appID, cat, err := LoadRecipe([]byte(validRecipe))
	require.NoError(t, err)
	assert.Equal(t, "app0", appID)
	assert.Equal(t, 2, cat.Len())

	wm0, ok := cat.Get("wm0")
	require.True(t, ok)
	assert.Equal(t, float32(0.3), wm0.Value())
}

func TestLoadRecipeDuplicateID(t *testing.T) {
	dup := `
application: app0
working_modes:
  - id: wm0
    value: 0.1
    requests:
      - path: "SYSTEM0.GROUP0.CPU0.PROC_ELEMENT*"
        amount: 1
  - id: wm0
    value: 0.2
    requests:
      - path: "SYSTEM0.GROUP0.CPU0.PROC_ELEMENT*"
        amount: 2
`
	_, _, err := LoadRecipe([]byte(dup))
	assert.Error(t, err)
}

func TestLoadRecipeNonPositiveAmount(t *testing.T) {
	bad := `
application: app0
working_modes:
  - id: wm0
    value: 0.1
    requests:
      - path: "SYSTEM0.GROUP0.CPU0.PROC_ELEMENT*"
        amount: 0
`
	_, _, err := LoadRecipe([]byte(bad))
	assert.Error(t, err)
}

func TestCatalogueSetAndClearConstraints(t *testing.T) {
	_, cat, err := LoadRecipe([]byte(validRecipe))
	require.NoError(t, err)

	wm0, _ := cat.Get("wm0")
	require.NoError(t, cat.SetConstraints("wm0", []Constraint{
		{Path: wm0.Requests[0].Path, Kind: UpperBound, Value: 1},
	}))
	amount, ok := wm0.RequestFor(wm0.Requests[0].Path)
	require.True(t, ok)
	assert.Equal(t, uint64(1), amount)

	require.NoError(t, cat.ClearConstraints("wm0"))
	amount, ok = wm0.RequestFor(wm0.Requests[0].Path)
	require.True(t, ok)
	assert.Equal(t, uint64(2), amount)
}
