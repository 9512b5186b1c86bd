// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storebot_agent_turns_total",
		Help: "Completed turns, labeled by the path that answered them.",
	}, []string{"path"})

	turnLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storebot_agent_turn_latency_seconds",
		Help:    "End-to-end latency of one turn.",
		Buckets: prometheus.DefBuckets,
	})

	cycleCeilingTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storebot_agent_cycle_ceiling_total",
		Help: "Turns aborted because the agent-tool cycle hit its ceiling.",
	})
)

// Turn path label values.
const (
	pathKeyword = "keyword"
	pathModel   = "model"
	pathError   = "error"
)

var agentTracer = otel.Tracer("storebot.agent")
