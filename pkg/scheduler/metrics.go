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
	"github.com/prometheus/client_golang/prometheus"
)

var (
	cyclesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rtrmd",
		Subsystem: "scheduler",
		Name:      "cycles_total",
		Help:      "Total scheduling cycles by exit code.",
	}, []string{"exit_code"})

	cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rtrmd",
		Subsystem: "scheduler",
		Name:      "cycle_duration_seconds",
		Help:      "Wall-clock duration of a scheduling cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	placementsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rtrmd",
		Subsystem: "scheduler",
		Name:      "placements_total",
		Help:      "Total applications successfully placed across all cycles.",
	})

	blockedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rtrmd",
		Subsystem: "scheduler",
		Name:      "blocked_total",
		Help:      "Total applications transitioned to BLOCKED across all cycles.",
	})
)

func init() {
	prometheus.MustRegister(cyclesTotal, cycleDuration, placementsTotal, blockedTotal)
}
