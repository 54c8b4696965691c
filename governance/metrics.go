// Copyright 2026 Blink Labs Software
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

package governance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type governanceMetrics struct {
	proposalsCreated prometheus.Counter
	votesCast        *prometheus.CounterVec
	voteWeight       *prometheus.CounterVec
	proposalsQueued  prometheus.Counter
	proposalsRun     prometheus.Counter
	proposalsCancel  prometheus.Counter
	rejections       *prometheus.CounterVec
	executeLatency   prometheus.Histogram
}

func (m *governanceMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.proposalsCreated = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "gavel_governance_proposals_created_total",
		Help: "total number of proposals created",
	})
	m.votesCast = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gavel_governance_votes_cast_total",
			Help: "total number of votes cast",
		},
		[]string{"mode", "support"},
	)
	m.voteWeight = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gavel_governance_vote_weight_total",
			Help: "vote weight credited, as a float approximation",
		},
		[]string{"support"},
	)
	m.proposalsQueued = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "gavel_governance_proposals_queued_total",
		Help: "total number of proposals queued",
	})
	m.proposalsRun = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "gavel_governance_proposals_executed_total",
		Help: "total number of proposals executed",
	})
	m.proposalsCancel = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "gavel_governance_proposals_canceled_total",
		Help: "total number of proposals canceled",
	})
	m.rejections = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gavel_governance_rejections_total",
			Help: "calls rejected by governance rules",
		},
		[]string{"operation", "reason"},
	)
	m.executeLatency = promautoFactory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gavel_governance_execute_seconds",
			Help:    "time spent applying proposal actions",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15), // 100us to ~1.6s
		},
	)
}
