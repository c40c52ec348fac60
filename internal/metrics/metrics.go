// Package metrics exposes the prometheus counters/gauges shared by the
// gateway, consumer, and client processes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtmc_jobs_processed_total",
			Help: "Total number of jobs the dispatcher ran to completion, by priority.",
		},
		[]string{"priority"},
	)

	JobsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtmc_jobs_failed_total",
			Help: "Total number of jobs whose handler returned ok=false, by priority.",
		},
		[]string{"priority"},
	)

	DispatcherQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rtmc_dispatcher_queue_depth",
			Help: "Current number of queued jobs, by priority.",
		},
		[]string{"priority"},
	)

	BroadcastFanoutTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rtmc_broadcast_fanout_total",
			Help: "Total number of broadcast slot messages fanned out to sessions.",
		},
	)

	BroadcastSlotOverwrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rtmc_broadcast_slot_overwritten_total",
			Help: "Total number of times the consumer overwrote a non-empty broadcast slot before fan-out polled it.",
		},
	)

	CommandDispatchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtmc_command_dispatch_errors_total",
			Help: "Total number of command-pipeline errors, by reason.",
		},
		[]string{"reason"},
	)

	SessionsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rtmc_sessions_connected",
			Help: "Current number of connected (id, sub_id) sessions.",
		},
	)

	PersistedMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtmc_persisted_messages_total",
			Help: "Total number of messages written to the relational store, by encrypted flag.",
		},
		[]string{"encrypted"},
	)
)
