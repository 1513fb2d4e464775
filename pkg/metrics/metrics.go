package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeOK        = "ok"
	OutcomeRefused   = "refused"
	OutcomeDegraded  = "degraded"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"

	StatusOK    = "ok"
	StatusError = "error"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "handset_agent_turns_total",
		Help: "Conversation turns handled by outcome",
	}, []string{"outcome"})

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "handset_agent_turn_duration_seconds",
		Help:    "End-to-end turn latency",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	safetyRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "handset_agent_safety_rejections_total",
		Help: "Turns rejected by a safety check, by check kind",
	}, []string{"kind"})

	toolInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "handset_agent_tool_invocations_total",
		Help: "Capability tool invocations by tool and status",
	}, []string{"tool", "status"})

	toolLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "handset_agent_tool_latency_seconds",
		Help:    "Capability tool latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"tool"})

	phaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "handset_agent_phase_transitions_total",
		Help: "Committed phase transitions",
	}, []string{"from", "to"})
)

func ObserveTurn(outcome string, elapsed time.Duration) {
	turnsTotal.WithLabelValues(outcome).Inc()
	turnDuration.Observe(elapsed.Seconds())
}

func ObserveSafetyRejection(kind string) {
	safetyRejections.WithLabelValues(kind).Inc()
}

func ObserveTool(tool string, err error, elapsed time.Duration) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	toolInvocations.WithLabelValues(tool, status).Inc()
	toolLatency.WithLabelValues(tool).Observe(elapsed.Seconds())
}

func ObserveTransition(from, to string) {
	if from == to {
		return
	}
	phaseTransitions.WithLabelValues(from, to).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
