/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeContexts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "issuepilot_active_contexts",
		Help: "Execution contexts currently tracked.",
	})

	timeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "issuepilot_context_timeouts_total",
		Help: "Contexts failed by the timeout sweeper.",
	})

	callbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "issuepilot_callbacks_total",
		Help: "Executor callback reports by kind and disposition.",
	}, []string{"kind", "disposition"})
)
