package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "openarb"

var WalletConnections = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "accounts",
		Name:      "wallet_connections_total",
		Help:      "Wallet connect calls, split by whether an existing account was replaced",
	},
	[]string{"result"}, // created, replaced
)

var TradesRecorded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "trades_recorded_total",
		Help:      "Trades inserted into the ledger",
	},
	[]string{"credited"}, // true, false
)

var TradesRejected = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "trades_rejected_total",
		Help:      "Trades refused because the profit would leave the float64 range",
	},
)

var RecordedProfit = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "recorded_profit_sum",
		Help:      "Sum of profit over every trade recorded since start",
	},
)

var NotFound = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "accounts",
		Name:      "not_found_total",
		Help:      "Operations that failed because the caller has no account",
	},
	[]string{"operation"},
)

var SnapshotSaves = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "saves_total",
		Help:      "State snapshot save attempts",
	},
	[]string{"backend", "result"}, // result: ok, error
)

var SnapshotDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "save_duration_seconds",
		Help:      "Time to persist a state snapshot",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	},
	[]string{"backend"},
)

var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)

var WebsocketClients = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "clients",
		Help:      "Connected trade stream clients",
	},
)

var NotificationsDropped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "dropped_total",
		Help:      "Webhook notifications dropped before sending",
	},
	[]string{"reason"}, // queue_full, closed
)
