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
	"time"

	"golang.org/x/time/rate"
	"k8s.io/klog/v2"
)

// DefaultRetryBase and DefaultRetryCap bound the exponential back-off applied
// to cycle retries after a CycleAbort (§7: "the cycle is retried on the next
// trigger with exponential back-off up to a cap").
const (
	DefaultRetryBase = 50 * time.Millisecond
	DefaultRetryCap  = 10 * time.Second
)

// Retrier drives repeated RunCycle attempts, backing off exponentially after
// ScheduleFailed and resetting once a cycle succeeds. A rate.Limiter caps the
// steady-state trigger cadence even while back-off is not active, so a
// pathologically fast external trigger cannot starve the accountant of time
// between cycles.
type Retrier struct {
	Scheduler *Scheduler
	Base      time.Duration
	Cap       time.Duration
	Limiter   *rate.Limiter

	failures int
}

// NewRetrier builds a Retrier with the default base/cap and a limiter capped
// at one trigger per Base interval.
func NewRetrier(s *Scheduler) *Retrier {
	return &Retrier{
		Scheduler: s,
		Base:      DefaultRetryBase,
		Cap:       DefaultRetryCap,
		Limiter:   rate.NewLimiter(rate.Every(DefaultRetryBase), 1),
	}
}

// Trigger runs one cycle attempt after the rate limiter admits it. When the
// cycle ends in ScheduleFailed, Trigger sleeps the back-off before it
// returns. On Crit it does not back off further: the daemon is
// expected to stop calling Trigger once Crit is observed (§7 Fatal).
func (r *Retrier) Trigger(ctx context.Context) (Plan, ExitCode, error) {
	if err := r.Limiter.Wait(ctx); err != nil {
		return Plan{}, Timeout, err
	}

	plan, code, err := r.Scheduler.RunCycle(ctx)

	switch code {
	case Ok:
		r.failures = 0
	case ScheduleFailed:
		r.failures++
		backoff := r.backoffDuration()
		klog.Warningf("scheduler: cycle aborted (%d consecutive), backing off %s", r.failures, backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
		}
	default:
		// NoWorkingMode/Timeout/OverCapacity-at-cycle-scope/etc are not
		// CycleAbort; no back-off, the next trigger proceeds normally.
	}
	return plan, code, err
}

func (r *Retrier) backoffDuration() time.Duration {
	d := r.Base << uint(r.failures-1)
	if d > r.Cap || d <= 0 {
		d = r.Cap
	}
	return d
}
