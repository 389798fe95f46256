package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collaborator labels for upstream calls.
const (
	CollaboratorClinicAPI = "clinic_api"
	CollaboratorDecision  = "decision"
	CollaboratorMessaging = "messaging"
)

// GatewayMetrics exposes counters/histograms for conversational turns and
// the upstream calls they make.
type GatewayMetrics struct {
	turnsTotal       *prometheus.CounterVec
	turnLatency      *prometheus.HistogramVec
	upstreamTotal    *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	dispatchedAction *prometheus.CounterVec
}

func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	m := &GatewayMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicmcp",
			Subsystem: "orchestrator",
			Name:      "turns_total",
			Help:      "Total conversational turns by outcome and last state reached",
		}, []string{"outcome", "state"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicmcp",
			Subsystem: "orchestrator",
			Name:      "turn_duration_seconds",
			Help:      "Latency of a full conversational turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		upstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicmcp",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total upstream requests by collaborator, operation and status",
		}, []string{"collaborator", "operation", "status"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicmcp",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Latency of upstream requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"collaborator", "operation"}),
		dispatchedAction: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicmcp",
			Subsystem: "orchestrator",
			Name:      "actions_total",
			Help:      "Directive actions by dispatch result",
		}, []string{"action", "result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.upstreamTotal, m.upstreamLatency, m.dispatchedAction)
	return m
}

func (m *GatewayMetrics) ObserveTurn(outcome, state string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome, state).Inc()
	m.turnLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveUpstream records one upstream call. status 0 means the request
// never got a response.
func (m *GatewayMetrics) ObserveUpstream(collaborator, operation string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.upstreamTotal.WithLabelValues(collaborator, operation, label).Inc()
	m.upstreamLatency.WithLabelValues(collaborator, operation).Observe(elapsed.Seconds())
}

func (m *GatewayMetrics) ObserveAction(action, result string) {
	if m == nil {
		return
	}
	m.dispatchedAction.WithLabelValues(action, result).Inc()
}
