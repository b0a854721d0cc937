package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SandboxCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "practice_mentor",
		Name:      "sandbox_calls_total",
		Help:      "Outbound sandbox executions by result.",
	}, []string{"result"})

	SandboxLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "practice_mentor",
		Name:      "sandbox_call_seconds",
		Help:      "Latency of a single sandbox execution.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	Outcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "practice_mentor",
		Name:      "submission_outcomes_total",
		Help:      "Evaluated submissions by mode and aggregate status.",
	}, []string{"mode", "status"})

	HintDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "practice_mentor",
		Name:      "hint_decisions_total",
		Help:      "Guardrail decisions by hint kind.",
	}, []string{"kind", "decision"})

	ProgressRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "practice_mentor",
		Name:      "progress_events_total",
		Help:      "Progress events handled by the relay worker.",
	}, []string{"result"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
