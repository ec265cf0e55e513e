// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// rack_verdicts_total{status,risk}
	Verdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rack_verdicts_total",
		Help: "RACK evaluations by resulting status and risk level",
	}, []string{"status", "risk"})

	// rack_dispatch_total{action,decision}
	Dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rack_dispatch_total",
		Help: "Model-requested actions by dispatch decision",
	}, []string{"action", "decision"})

	// rack_turns_total{outcome=reply|error|busy}
	Turns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rack_turns_total",
		Help: "Conversation turns by outcome",
	}, []string{"outcome"})

	ModelLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rack_model_latency_seconds",
		Help:    "Model backend call latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// rack_pages_total{pager,result=ok|error}
	Pages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rack_pages_total",
		Help: "Supervisor pages sent by pager and result",
	}, []string{"pager", "result"})
)

// RecordVerdict counts one evaluation.
func RecordVerdict(status, risk string) {
	Verdicts.WithLabelValues(status, risk).Inc()
}

// RecordDispatch counts one dispatched action.
func RecordDispatch(action, decision string) {
	Dispatches.WithLabelValues(action, decision).Inc()
}

// RecordTurn counts one turn outcome.
func RecordTurn(outcome string) {
	Turns.WithLabelValues(outcome).Inc()
}

// RecordPage counts one page attempt.
func RecordPage(pager string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	Pages.WithLabelValues(pager, result).Inc()
}
