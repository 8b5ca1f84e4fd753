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

package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/rtrmconfig"
)

func TestPriorityFromFilename(t *testing.T) {
	cases := map[string]uint16{
		"0-app.yaml":  0,
		"3-app.yaml":  3,
		"12-app.yaml": 12,
		"app.yaml":    0,
		"-app.yaml":   0,
	}
	for name, want := range cases {
		assert.Equal(t, want, priorityFromFilename(name), name)
	}
}

const testPlatform = `
memory_banks:
  - id: mem0
    quantity: "1Gi"
cpu_groups:
  - id: grp0
    memory_affinity: mem0
processing_elements:
  - id: pe0
    group_id: grp0
    partition: host
    share: 4
`

const testRecipe = `
application: app0
working_modes:
  - id: wm0
    value: 0.5
    requests:
      - path: SYSTEM0.GROUP*.CPU*.PROC_ELEMENT*
        amount: 2
`

func TestBuildRuntimeWiresRecipesAndPlatform(t *testing.T) {
	dir := t.TempDir()
	platformPath := filepath.Join(dir, "platform.yaml")
	require.NoError(t, os.WriteFile(platformPath, []byte(testPlatform), 0o644))

	recipeDir := filepath.Join(dir, "recipes")
	require.NoError(t, os.Mkdir(recipeDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(recipeDir, "0-app0.yaml"), []byte(testRecipe), 0o644))

	cfg := rtrmconfig.Default()
	cfg.PlatformFile = platformPath
	cfg.RecipeDir = recipeDir
	cfg.BindGroup = "CPU"

	rt, err := buildRuntime(cfg)
	require.NoError(t, err)

	cat, ok := rt.Catalogues.Get("app0")
	require.True(t, ok)
	assert.Equal(t, 1, cat.Len())

	snaps := rt.Registry.ByPriority()
	require.Len(t, snaps, 1)
	assert.Equal(t, "app0", snaps[0].ID)
	assert.Equal(t, uint16(0), snaps[0].Priority)
}
