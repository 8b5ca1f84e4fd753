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

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/aggregator"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/binding"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/catalogue"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/contrib"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/registry"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/resource"
)

// DefaultBudget is the cycle's default wall-clock budget, §5.
const DefaultBudget = 500 * time.Millisecond

// DefaultWorkers bounds the scoring fan-out within a priority level, §5.
const DefaultWorkers = 8

// timeNowFn is indirected so tests can stub the clock with gostub without
// touching the system clock.
var timeNowFn = time.Now

// Catalogues resolves an application id to its declared working modes. The
// daemon's application manager is the real implementation; tests supply a
// map-backed stub.
type Catalogues interface {
	Get(appID string) (*catalogue.Catalogue, bool)
}

// Scheduler drives one scheduling cycle end to end (§4.6).
type Scheduler struct {
	Accountant *resource.Accountant
	Registry   *registry.Registry
	Catalogues Catalogues
	Engine     *binding.Engine
	Aggregator *aggregator.Aggregator

	// Fairness, if the aggregator carries a fairness contribution, must be
	// handed the live cycle token before init so its fair-share snapshot
	// (§4.4.4) reads through the same transactional view as everything
	// else scored this cycle. Nil when fairness is not configured.
	Fairness *contrib.Fairness

	Budget  time.Duration
	Workers int

	pool *workerPool
}

// scored is a scoring candidate in flight within one priority level.
type scored struct {
	appID       string
	wmID        string
	wm          *catalogue.WorkingMode
	candidate   binding.Candidate
	score       float32
	ok          bool
	err         error
}

// RunCycle executes one full scheduling cycle per §4.6. Every failure path
// that returns an error also returns a first-class ExitCode (§7). Panics are
// not recovered: a panic raised while scoring or reserving propagates.
func (s *Scheduler) RunCycle(ctx context.Context) (Plan, ExitCode, error) {
	start := timeNowFn()
	budget := s.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	workers := s.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if s.pool == nil {
		s.pool = newWorkerPool(workers)
	}

	deadline := start.Add(budget)
	token := s.Accountant.OpenTransaction()
	if s.Fairness != nil {
		s.Fairness.SetToken(token)
	}

	plan, code, err := s.runLocked(ctx, token, deadline)

	cyclesTotal.WithLabelValues(string(code)).Inc()
	cycleDuration.Observe(timeNowFn().Sub(start).Seconds())

	if code == Ok {
		if cerr := s.Accountant.Commit(token); cerr != nil {
			klog.Errorf("scheduler: commit failed: %v", cerr)
			s.Accountant.Release(token)
			return Plan{}, ScheduleFailed, fmt.Errorf("scheduler: commit: %w", cerr)
		}
		s.applyPlan(plan)
		placementsTotal.Add(float64(len(plan.Placements)))
		blockedTotal.Add(float64(len(plan.Blocked)))
		return plan, Ok, nil
	}

	s.Accountant.Release(token)
	return plan, code, err
}

// runLocked implements steps 2-6 of the cycle protocol under the already
// open token; on any return path other than (Ok, nil) the caller must
// release the token rather than commit it.
func (s *Scheduler) runLocked(ctx context.Context, token resource.Token, deadline time.Time) (Plan, ExitCode, error) {
	snaps := s.Registry.ByPriority()
	if len(snaps) == 0 {
		return Plan{}, Ok, nil
	}

	byPriority := groupByPriority(snaps)
	priorities := sortedPriorities(byPriority)

	resourceTypeCount := s.Accountant.CountResourceTypes()

	var plan Plan
	placed := make(map[string]bool, len(snaps))

	for _, p := range priorities {
		select {
		case <-ctx.Done():
			return Plan{}, Timeout, ctx.Err()
		default:
		}
		if timeNowFn().After(deadline) {
			return Plan{}, Timeout, fmt.Errorf("scheduler: budget exceeded before level %d", p)
		}

		if err := s.Aggregator.InitLevel(p); err != nil {
			return Plan{}, ScheduleFailed, fmt.Errorf("scheduler: level %d init: %w", p, err)
		}

		level := byPriority[p]
		candidates, err := s.buildCandidates(level, resourceTypeCount)
		if err != nil {
			return Plan{}, ScheduleFailed, fmt.Errorf("scheduler: level %d candidates: %w", p, err)
		}

		s.scoreAll(candidates, token, resourceTypeCount)

		for _, c := range candidates {
			if c.err != nil {
				return Plan{}, ScheduleFailed, fmt.Errorf("scheduler: scoring %s/%s: %w", c.appID, c.wmID, c.err)
			}
		}

		candidates = filterOK(candidates)
		sortCandidates(candidates)

		partial := timeNowFn().After(deadline)

		levelPlaced := s.selectGreedy(token, candidates, placed)
		plan.Placements = append(plan.Placements, levelPlaced...)
		for _, lp := range levelPlaced {
			placed[lp.AppID] = true
		}

		if partial {
			klog.Warningf("scheduler: budget exceeded mid-selection at level %d, finalising partial result", p)
			break
		}
	}

	for _, snap := range snaps {
		if !placed[snap.ID] {
			plan.Blocked = append(plan.Blocked, snap.ID)
			// An unplaced snapshot either never reached reserveAll or had its
			// candidates rolled back to its committed baseline, so nothing
			// sets its prior committed reservation to zero on its own;
			// release it explicitly here so Commit doesn't re-apply a
			// BLOCKED application's stale usage (§8).
			s.Accountant.ReleaseOwner(token, snap.ID)
		}
	}
	sort.Strings(plan.Blocked)

	return plan, Ok, nil
}

func groupByPriority(snaps []registry.Snapshot) map[uint16][]registry.Snapshot {
	out := make(map[uint16][]registry.Snapshot)
	for _, s := range snaps {
		out[s.Priority] = append(out[s.Priority], s)
	}
	return out
}

func sortedPriorities(byPriority map[uint16][]registry.Snapshot) []uint16 {
	out := make([]uint16, 0, len(byPriority))
	for p := range byPriority {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// buildCandidates implements step 3's cross-product: for every application
// at this level, every declared working mode, every binding domain that
// satisfies that mode's constrained requests.
func (s *Scheduler) buildCandidates(level []registry.Snapshot, resourceTypeCount uint16) ([]*scored, error) {
	var out []*scored
	for _, app := range level {
		cat, ok := s.Catalogues.Get(app.ID)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no catalogue", ErrNoWorkingMode, app.ID)
		}
		modes := cat.All()
		if len(modes) == 0 {
			continue
		}
		for _, wm := range modes {
			candidates := s.Engine.Enumerate(app.ID, wm)
			for _, c := range candidates {
				out = append(out, &scored{
					appID:     app.ID,
					wmID:      wm.ID,
					wm:        wm,
					candidate: c,
				})
			}
		}
	}
	return out, nil
}

// scoreAll fans out Compute across the bounded worker pool, §5: "selection
// is serial" but scoring of independent candidates at the same level is not.
func (s *Scheduler) scoreAll(candidates []*scored, token resource.Token, resourceTypeCount uint16) {
	s.pool.Run(len(candidates), func(i int) {
		c := candidates[i]

		snap, err := s.snapshotFor(c.appID)
		if err != nil {
			c.err = err
			return
		}

		var currentWM *catalogue.WorkingMode
		if snap.AWMSet {
			if cat, ok := s.Catalogues.Get(c.appID); ok {
				currentWM, _ = cat.Get(snap.WMID)
			}
		}

		migrating := snap.AWMSet && snap.Binding != c.candidate.Entity.BindingBits

		in := contrib.Input{
			Accountant:        s.Accountant,
			Token:             token,
			App:               snap,
			CurrentWM:         currentWM,
			CandidateWM:       c.wm,
			Resolved:          c.candidate.Resolved,
			Migrating:         migrating,
			ResourceTypeCount: resourceTypeCount,
		}
		score, ok, err := s.Aggregator.Score(in)
		c.score = score
		c.ok = ok
		c.err = err
	})
}

// snapshotFor re-reads a single application's snapshot from the live
// Registry for every candidate scored, so a goal-gap or assignment update
// made after the cycle began is visible to scoring; the snapshot taken at
// cycle start is not reused here. Callers must not mutate it.
func (s *Scheduler) snapshotFor(appID string) (registry.Snapshot, error) {
	for _, snap := range s.Registry.ByPriority() {
		if snap.ID == appID {
			return snap, nil
		}
	}
	app, err := s.Registry.Get(appID)
	if err != nil {
		return registry.Snapshot{}, err
	}
	wmID, bindingBits, set := app.CurrentAssignment()
	return registry.Snapshot{
		ID:       app.ID,
		Priority: app.Priority,
		GoalGap:  app.GoalGap(),
		WMID:     wmID,
		Binding:  bindingBits,
		AWMSet:   set,
	}, nil
}

func filterOK(in []*scored) []*scored {
	out := in[:0]
	for _, c := range in {
		if c.ok {
			out = append(out, c)
		}
	}
	return out
}

// sortCandidates orders descending by score, ties broken lexicographically
// by (application_id, working_mode_id, min_binding_id), §4.6 step 4.
func sortCandidates(candidates []*scored) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.appID != b.appID {
			return a.appID < b.appID
		}
		if a.wmID != b.wmID {
			return a.wmID < b.wmID
		}
		return a.candidate.Entity.MinBindingID() < b.candidate.Entity.MinBindingID()
	})
}

// selectGreedy implements step 5: first (highest-scoring, due to the prior
// sort) candidate per application wins, subject to the reservation
// succeeding; a failed reservation is local and non-fatal (§7 OverCapacity).
func (s *Scheduler) selectGreedy(token resource.Token, candidates []*scored, alreadyPlaced map[string]bool) []Placement {
	var out []Placement
	chosen := make(map[string]bool, len(alreadyPlaced))
	for k, v := range alreadyPlaced {
		chosen[k] = v
	}

	for _, c := range candidates {
		if chosen[c.appID] {
			continue
		}
		if err := s.reserveAll(token, c); err != nil {
			if errors.Is(err, resource.ErrOverCapacity) {
				klog.V(4).Infof("scheduler: %s/%s over capacity, skipping", c.appID, c.wmID)
				continue
			}
			klog.Warningf("scheduler: %s/%s reservation failed: %v, skipping", c.appID, c.wmID, err)
			continue
		}
		chosen[c.appID] = true
		out = append(out, Placement{
			AppID:       c.appID,
			WorkingMode: c.wmID,
			Resolved:    c.candidate.Resolved,
			BindingBits: c.candidate.Entity.BindingBits,
			Score:       c.score,
		})
	}
	return out
}

// reserveAll reserves every resolved request of c under token, owned by the
// application id. A mid-list failure rolls back the requests already
// tentatively reserved by this same call, back to the owner's pre-existing
// committed baseline, so a rejected candidate never leaves a stray partial
// reservation for commit to pick up.
func (s *Scheduler) reserveAll(token resource.Token, c *scored) error {
	var done []binding.ResolvedRequest
	for _, req := range c.candidate.Resolved {
		if err := s.Accountant.Reserve(token, req.Path, req.Amount, c.appID); err != nil {
			for _, d := range done {
				baseline := s.Accountant.CommittedReservation(d.Path, c.appID)
				if rerr := s.Accountant.Reserve(token, d.Path, baseline, c.appID); rerr != nil {
					klog.Errorf("scheduler: rollback of %s for %s failed: %v", d.Path, c.appID, rerr)
				}
			}
			return err
		}
		done = append(done, req)
	}
	return nil
}

// applyPlan transitions placed applications to SYNC and unplaced READY or
// RUNNING applications to BLOCKED, per §4.6 steps 5 and 7. A RUNNING
// application re-placed into the same (working_mode, binding) it already
// holds is left alone: re-issuing SetAssignment + a RUNNING->SYNC transition
// for a no-change placement would make a no-change cycle produce a state
// transition, violating §8 Idempotence.
func (s *Scheduler) applyPlan(plan Plan) {
	var wg sync.WaitGroup
	wg.Add(len(plan.Placements) + len(plan.Blocked))
	for _, placement := range plan.Placements {
		go func(p Placement) {
			defer wg.Done()
			if s.isNoChangeRunning(p) {
				return
			}
			if err := s.Registry.SetAssignment(p.AppID, p.WorkingMode, p.BindingBits); err != nil {
				klog.Errorf("scheduler: set assignment for %s: %v", p.AppID, err)
				return
			}
			if err := s.Registry.Transition(p.AppID, registry.Sync); err != nil {
				klog.Errorf("scheduler: transition %s to SYNC: %v", p.AppID, err)
			}
		}(placement)
	}
	for _, id := range plan.Blocked {
		go func(id string) {
			defer wg.Done()
			app, err := s.Registry.Get(id)
			if err != nil {
				return
			}
			if app.State() != registry.Running && app.State() != registry.Ready {
				return
			}
			if err := s.Registry.Transition(id, registry.Blocked); err != nil {
				klog.V(4).Infof("scheduler: %s not transitioned to BLOCKED: %v", id, err)
			}
		}(id)
	}
	wg.Wait()
}

// isNoChangeRunning reports whether p's application is currently RUNNING
// and already holds exactly p's (working_mode, binding), i.e. placement is
// a re-confirmation of the status quo rather than a reconfiguration.
func (s *Scheduler) isNoChangeRunning(p Placement) bool {
	app, err := s.Registry.Get(p.AppID)
	if err != nil {
		return false
	}
	if app.State() != registry.Running {
		return false
	}
	wmID, bindingBits, set := app.CurrentAssignment()
	return set && wmID == p.WorkingMode && bindingBits == p.BindingBits
}

// ErrNoWorkingMode is returned when an application at the current level has
// no registered catalogue at all, distinct from having zero declared modes
// (which simply excludes it from the cross-product).
var ErrNoWorkingMode = errors.New("scheduler: no working mode catalogue")
