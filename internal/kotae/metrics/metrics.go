// Package metrics provides Prometheus metrics for Kotae
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for Kotae. A nil *Metrics is valid
// and records nothing, so components can run without instrumentation.
type Metrics struct {
	// Responder metrics
	MessagesTotal  *prometheus.CounterVec
	RepliesTotal   *prometheus.CounterVec
	HandleDuration prometheus.Histogram
	HandlePanics   prometheus.Counter

	// Memory store metrics
	TrackedSenders prometheus.Gauge
	EvictionsTotal *prometheus.CounterVec

	// Transport metrics
	WebhookRejectedTotal *prometheus.CounterVec
	SendFailuresTotal    *prometheus.CounterVec

	// Journal metrics
	JournalDroppedTotal *prometheus.CounterVec
}

// New creates all metrics and registers them with reg. Pass
// prometheus.NewRegistry() in tests to keep registrations isolated.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		MessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kotae_messages_total",
				Help: "Inbound messages handled, by channel and matched intent",
			},
			[]string{"channel", "intent"},
		),
		RepliesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kotae_replies_total",
				Help: "Replies selected, by reply key",
			},
			[]string{"reply_key"},
		),
		HandleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kotae_handle_duration_seconds",
				Help:    "Time spent classifying a message and selecting a reply",
				Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .05},
			},
		),
		HandlePanics: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "kotae_handle_panics_total",
				Help: "Messages whose handling panicked and fell back to the clarification reply",
			},
		),
		TrackedSenders: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kotae_tracked_senders",
				Help: "Conversations currently held in memory",
			},
		),
		EvictionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kotae_memory_evictions_total",
				Help: "Conversation records evicted from memory, by reason",
			},
			[]string{"reason"},
		),
		WebhookRejectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kotae_webhook_rejected_total",
				Help: "Webhook deliveries rejected before reaching the responder, by reason",
			},
			[]string{"reason"},
		),
		SendFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kotae_send_failures_total",
				Help: "Outbound replies that could not be delivered, by channel",
			},
			[]string{"channel"},
		),
		JournalDroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kotae_journal_dropped_total",
				Help: "Exchanges that never reached the journal, by reason",
			},
			[]string{"reason"},
		),
	}
}

// ObserveMessage records one handled message.
func (m *Metrics) ObserveMessage(channel, intent, replyKey string, took time.Duration) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(channel, intent).Inc()
	m.RepliesTotal.WithLabelValues(replyKey).Inc()
	m.HandleDuration.Observe(took.Seconds())
}

// ObservePanic records a recovered panic in the responder.
func (m *Metrics) ObservePanic() {
	if m == nil {
		return
	}
	m.HandlePanics.Inc()
}

// SetTrackedSenders updates the tracked conversations gauge.
func (m *Metrics) SetTrackedSenders(n int) {
	if m == nil {
		return
	}
	m.TrackedSenders.Set(float64(n))
}

// ObserveEviction records one evicted conversation.
func (m *Metrics) ObserveEviction(reason string) {
	if m == nil {
		return
	}
	m.EvictionsTotal.WithLabelValues(reason).Inc()
}

// ObserveWebhookRejected records a rejected webhook delivery.
func (m *Metrics) ObserveWebhookRejected(reason string) {
	if m == nil {
		return
	}
	m.WebhookRejectedTotal.WithLabelValues(reason).Inc()
}

// ObserveSendFailure records an undeliverable reply.
func (m *Metrics) ObserveSendFailure(channel string) {
	if m == nil {
		return
	}
	m.SendFailuresTotal.WithLabelValues(channel).Inc()
}

// ObserveJournalDropped records an exchange the journal did not store.
func (m *Metrics) ObserveJournalDropped(reason string) {
	if m == nil {
		return
	}
	m.JournalDroppedTotal.WithLabelValues(reason).Inc()
}
