package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SessionEvents   *prometheus.CounterVec
	Turns           *prometheus.CounterVec
	GatewayFailures *prometheus.CounterVec
	TurnsInFlight   prometheus.Gauge
	TurnLatency     *prometheus.HistogramVec
	WSMessages      *prometheus.CounterVec
	EventDrops      *prometheus.CounterVec

	stages *turnStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer registers instruments on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func NewMetricsWithRegisterer(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed turns by kind and outcome.",
		}, []string{"kind", "outcome"}),
		GatewayFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_failures_total",
			Help:      "Dialogue endpoint failures absorbed by the gateway, by reason.",
		}, []string{"reason", "end_session"}),
		TurnsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "turns_in_flight",
			Help:      "Turns currently waiting on the dialogue service.",
		}),
		TurnLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "Turn round trip latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		}, []string{"kind"}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "Transcript websocket messages by type and result.",
		}, []string{"type", "result"}),
		EventDrops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_drops_total",
			Help:      "Change events discarded because a subscriber buffer was full, by stream.",
		}, []string{"stream"}),
		stages: newTurnStageWindow(256),
	}
}

func (m *Metrics) ObserveSessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) TurnStarted() {
	if m == nil {
		return
	}
	m.TurnsInFlight.Inc()
}

// TurnFinished records a settled turn. kind is "message" or "end".
func (m *Metrics) TurnFinished(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.TurnsInFlight.Dec()
	m.Turns.WithLabelValues(kind, outcome).Inc()
	ms := float64(d.Milliseconds())
	m.TurnLatency.WithLabelValues(kind).Observe(ms)
	m.stages.Observe(kind+"_turn_total", ms)
	m.stages.ObserveIndicator(kind + "_" + outcome)
}

func (m *Metrics) ObserveGatewayRoundTrip(d time.Duration) {
	if m == nil {
		return
	}
	m.stages.Observe("gateway_roundtrip", float64(d.Milliseconds()))
}

func (m *Metrics) ObserveGatewayFailure(reason string, endSession bool) {
	if m == nil {
		return
	}
	end := "false"
	if endSession {
		end = "true"
	}
	m.GatewayFailures.WithLabelValues(reason, end).Inc()
	m.stages.ObserveIndicator("gateway_fallback_" + reason)
}

func (m *Metrics) ObserveWSMessage(msgType, result string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(msgType, result).Inc()
}

func (m *Metrics) ObserveEventDrop(stream string) {
	if m == nil {
		return
	}
	m.EventDrops.WithLabelValues(stream).Inc()
}

// SnapshotTurnStages returns rolling latency percentiles per stage.
func (m *Metrics) SnapshotTurnStages() TurnStageSnapshot {
	if m == nil {
		return newTurnStageWindow(0).Snapshot()
	}
	return m.stages.Snapshot()
}

func (m *Metrics) ResetTurnStages() {
	if m == nil {
		return
	}
	m.stages.Reset()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
