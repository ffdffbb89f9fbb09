// Package metrics exposes pipeline counters for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iseevalue/chat/internal/model"
)

// Metrics implements conversation.Observer on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	submitted   prometheus.Counter
	rejected    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	replies     prometheus.Counter
	pending     prometheus.Gauge
	wsClients   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_messages_submitted_total",
			Help: "User messages accepted by the conversation store.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_rejected_total",
			Help: "Submissions rejected before any state change.",
		}, []string{"reason"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_status_transitions_total",
			Help: "Message status changes by target status.",
		}, []string{"status"}),
		replies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_assistant_replies_total",
			Help: "Assistant replies appended.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_pipelines_pending",
			Help: "Messages whose status pipeline has not finished.",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_ws_clients",
			Help: "Connected WebSocket clients.",
		}),
	}
	m.registry.MustRegister(
		m.submitted, m.rejected, m.transitions, m.replies, m.pending, m.wsClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Submitted() { m.submitted.Inc() }
func (m *Metrics) Rejected(reason string) { m.rejected.WithLabelValues(reason).Inc() }
func (m *Metrics) Replied() { m.replies.Inc() }
func (m *Metrics) Pending(n int) { m.pending.Set(float64(n)) }
func (m *Metrics) ClientsConnected(n int) { m.wsClients.Set(float64(n)) }

func (m *Metrics) Transitioned(to model.MessageStatus) {
	m.transitions.WithLabelValues(string(to)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
