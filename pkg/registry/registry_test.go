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

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDuplicate(t *testing.T) {
	r := New()
	_, err := r.Register("app0", 0)
	require.NoError(t, err)

	_, err = r.Register("app0", 1)
	assert.ErrorIs(t, err, ErrDuplicateApplication)
}

func TestUnregisterUnknown(t *testing.T) {
	r := New()
	err := r.Unregister("ghost")
	assert.ErrorIs(t, err, ErrUnknownApplication)
}

func TestTransitionTable(t *testing.T) {
	r := New()
	_, err := r.Register("app0", 0)
	require.NoError(t, err)

	require.NoError(t, r.Transition("app0", Ready))
	require.NoError(t, r.Transition("app0", Sync))
	require.NoError(t, r.Transition("app0", Running))

	err = r.Transition("app0", New)
	var illegal *ErrIllegalTransition
	assert.ErrorAs(t, err, &illegal)
	assert.Equal(t, Running, illegal.From)
	assert.Equal(t, New, illegal.To)
}

func TestBlockClearsAssignment(t *testing.T) {
	r := New()
	_, err := r.Register("app0", 0)
	require.NoError(t, err)
	require.NoError(t, r.Transition("app0", Ready))
	require.NoError(t, r.SetAssignment("app0", "wm1", 0x3))

	require.NoError(t, r.Transition("app0", Blocked))
	app, err := r.Get("app0")
	require.NoError(t, err)
	wmID, binding, set := app.CurrentAssignment()
	assert.False(t, set)
	assert.Empty(t, wmID)
	assert.Zero(t, binding)
}

func TestByPriorityOrderingAndFilter(t *testing.T) {
	r := New()
	_, _ = r.Register("low", 5)
	_, _ = r.Register("high", 0)
	_, _ = r.Register("mid", 2)
	_, _ = r.Register("notready", 0)

	for _, id := range []string{"low", "high", "mid"} {
		require.NoError(t, r.Transition(id, Ready))
	}

	snaps := r.ByPriority()
	require.Len(t, snaps, 3)
	assert.Equal(t, "high", snaps[0].ID)
	assert.Equal(t, "mid", snaps[1].ID)
	assert.Equal(t, "low", snaps[2].ID)
}

func TestByPrioritySnapshotIsolation(t *testing.T) {
	r := New()
	_, _ = r.Register("app0", 0)
	require.NoError(t, r.Transition("app0", Ready))
	require.NoError(t, r.SetAssignment("app0", "wm1", 0x1))

	snaps := r.ByPriority()
	require.Len(t, snaps, 1)

	require.NoError(t, r.SetAssignment("app0", "wm2", 0x2))
	assert.Equal(t, "wm1", snaps[0].WMID, "snapshot must not observe later mutation")
}

func TestEpochBumpsOnMembershipChange(t *testing.T) {
	r := New()
	start := r.Epoch()
	_, _ = r.Register("app0", 0)
	assert.Greater(t, r.Epoch(), start)

	afterRegister := r.Epoch()
	require.NoError(t, r.Unregister("app0"))
	assert.Greater(t, r.Epoch(), afterRegister)
}
