// Package metrics defines and registers all custom Prometheus metrics for the
// chat service. It is the single source of truth for metric names, labels and
// help strings.
//
// Metrics register with the default Prometheus registry on package init via
// promauto and are served by promhttp on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chat"

// ── Connection metrics ────────────────────────────────────────────────────────

// ConnectionsActive tracks admitted socket connections that have not yet
// disconnected.
var ConnectionsActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections_active",
		Help:      "Current number of authenticated socket connections.",
	},
)

// ConnectionsRejectedTotal counts handshakes refused before the upgrade.
// Label:
//   - reason: "missing_token", "invalid_token" or "expired_token"
var ConnectionsRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connections_rejected_total",
		Help:      "Total number of socket handshakes rejected during authentication.",
	},
	[]string{"reason"},
)

// SlowConsumersTotal counts connections dropped because their outbound queue
// was full.
var SlowConsumersTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "slow_consumers_total",
		Help:      "Total number of connections disconnected for not draining their outbound queue.",
	},
)

// ── Room metrics ──────────────────────────────────────────────────────────────

// RoomsActive tracks rooms with at least one subscriber.
var RoomsActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rooms_active",
		Help:      "Current number of conversation rooms with subscribers.",
	},
)

// BroadcastDeliveriesTotal counts message:new events queued to subscribers.
var BroadcastDeliveriesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_deliveries_total",
		Help:      "Total number of message events queued to room subscribers.",
	},
)

// ── Message metrics ───────────────────────────────────────────────────────────

// MessagesPersistedTotal counts messages acknowledged by the store.
var MessagesPersistedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_persisted_total",
		Help:      "Total number of messages durably appended.",
	},
)

// OperationErrorsTotal counts join and send requests that were refused.
// Labels:
//   - op: "join" or "send"
//   - reason: "not_found", "forbidden", "invalid_body" or "internal"
var OperationErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operation_errors_total",
		Help:      "Total number of refused join and send operations.",
	},
	[]string{"op", "reason"},
)

// AppendDuration measures send handling from dequeue to broadcast.
// Label:
//   - result: "ok" or "error"
var AppendDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "append_duration_seconds",
		Help:      "Duration of message append and broadcast.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
	[]string{"result"},
)

// DispatchQueueDepth tracks jobs waiting in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var DispatchQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dispatch_queue_depth",
		Help:      "Current number of jobs pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
