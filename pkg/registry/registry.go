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
	"fmt"
	"sort"
	"sync"

	"github.com/mohae/deepcopy"
	"go.uber.org/atomic"
	"k8s.io/klog/v2"
)

// ErrUnknownApplication is returned by operations referencing an id that was
// never registered, or was already unregistered.
var ErrUnknownApplication = fmt.Errorf("registry: unknown application")

// ErrDuplicateApplication is returned by Register when id is already present.
var ErrDuplicateApplication = fmt.Errorf("registry: duplicate application id")

// Registry is the daemon's single source of truth for known applications.
// Priority level is fixed at registration (spec §3: priority is assigned at
// registration and does not change over an application's lifetime).
type Registry struct {
	mu    sync.RWMutex
	apps  map[string]*Application
	epoch atomic.Uint64
}

func New() *Registry {
	return &Registry{apps: make(map[string]*Application)}
}

// Register admits a new application at NEW state with a fixed priority.
func (r *Registry) Register(id string, priority uint16) (*Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.apps[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateApplication, id)
	}
	app := newApplication(id, priority)
	r.apps[id] = app
	r.epoch.Inc()
	klog.V(2).Infof("registry: registered application %s at priority %d", id, priority)
	return app, nil
}

// Unregister removes an application outright, regardless of its state.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.apps[id]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownApplication, id)
	}
	delete(r.apps, id)
	r.epoch.Inc()
	klog.V(2).Infof("registry: unregistered application %s", id)
	return nil
}

// Get returns the live Application handle for id.
func (r *Registry) Get(id string) (*Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.apps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownApplication, id)
	}
	return app, nil
}

// Transition drives id's lifecycle state machine forward.
func (r *Registry) Transition(id string, to State) error {
	app, err := r.Get(id)
	if err != nil {
		return err
	}
	if err := app.transition(to); err != nil {
		return err
	}
	klog.V(3).Infof("registry: %s -> %s", id, to)
	return nil
}

// SetAssignment records id's selected working mode and binding after a
// successful cycle.
func (r *Registry) SetAssignment(id, wmID string, bindingBits uint64) error {
	app, err := r.Get(id)
	if err != nil {
		return err
	}
	app.setAssignment(wmID, bindingBits)
	return nil
}

// Epoch returns the monotonically increasing registry version, bumped on
// every registration/unregistration; used by callers deciding whether a
// cached candidate enumeration is stale.
func (r *Registry) Epoch() uint64 {
	return r.epoch.Load()
}

// ByPriority returns a frozen snapshot of every application whose state is
// READY or RUNNING, ordered by ascending priority (0 highest) and then by id
// for a deterministic tie-break, per spec §4 "priority-ordered fair-share
// cycle". The snapshot is deep-copied so a concurrent goal-gap update or
// unregister during scoring cannot race the in-flight cycle.
func (r *Registry) ByPriority() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Snapshot
	for _, app := range r.apps {
		app.mu.RLock()
		st := app.state
		if st != Ready && st != Running {
			app.mu.RUnlock()
			continue
		}
		snap := Snapshot{
			ID:       app.ID,
			Priority: app.Priority,
			State:    st,
			GoalGap:  app.goal,
			WMID:     app.wmID,
			Binding:  app.binding,
			AWMSet:   app.awmSet,
		}
		app.mu.RUnlock()
		copied := deepcopy.Copy(snap).(Snapshot)
		out = append(out, copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// All returns every registered application id regardless of state, for
// status reporting.
func (r *Registry) All() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.apps))
	for _, app := range r.apps {
		app.mu.RLock()
		out = append(out, Snapshot{
			ID:       app.ID,
			Priority: app.Priority,
			State:    app.state,
			GoalGap:  app.goal,
			WMID:     app.wmID,
			Binding:  app.binding,
			AWMSet:   app.awmSet,
		})
		app.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
