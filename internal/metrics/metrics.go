// Package metrics provides Prometheus instrumentation for the operator
// console. It exposes counters for socket event throughput, gauges for roster
// and unread state, and histograms for history fetch latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsReceived counts inbound socket events, labeled by event type.
	EventsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_events_received_total",
		Help: "Total number of socket events received from the chat server",
	}, []string{"type"})

	// MessagesSent counts operator messages emitted over the socket.
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "console_messages_sent_total",
		Help: "Total number of operator messages sent",
	})

	// DuplicateMessages counts new_message events dropped by id dedupe.
	DuplicateMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "console_duplicate_messages_total",
		Help: "Total number of redelivered messages dropped by id dedupe",
	})

	// Reconnects counts socket reconnections after an unexpected drop.
	Reconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "console_reconnects_total",
		Help: "Total number of socket reconnections",
	})

	// RosterSize tracks the current number of chats in the roster.
	RosterSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "console_roster_size",
		Help: "Current number of chats in the operator roster",
	})

	// UnreadTotal tracks the sum of unread counters across all chats.
	UnreadTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "console_unread_total",
		Help: "Sum of counsellor-side unread counters across all chats",
	})

	// HistoryFetchSeconds records history backfill latency in seconds.
	HistoryFetchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "console_history_fetch_seconds",
		Help:    "Chat history fetch latency in seconds",
		Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	})
)

func init() {
	prometheus.MustRegister(
		EventsReceived,
		MessagesSent,
		DuplicateMessages,
		Reconnects,
		RosterSize,
		UnreadTotal,
		HistoryFetchSeconds,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
