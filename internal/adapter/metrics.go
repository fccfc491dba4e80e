// Copyright 2025 The Aimee Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package adapter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aimee_adapter_dispatch_total",
			Help: "Total platform dispatches by outcome",
		},
		[]string{"platform", "action", "outcome"},
	)

	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aimee_adapter_dispatch_duration_seconds",
			Help:    "Duration of platform dispatches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"platform", "action"},
	)

	rateLimitWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aimee_adapter_rate_limit_waits_total",
			Help: "Dispatches that waited on the per-platform rate limiter",
		},
		[]string{"platform"},
	)
)

// recordDispatch records the outcome of one platform call.
func recordDispatch(platform, action, outcome string, seconds float64) {
	dispatchTotal.WithLabelValues(platform, action, outcome).Inc()
	dispatchDuration.WithLabelValues(platform, action).Observe(seconds)
}
