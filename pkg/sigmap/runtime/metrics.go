package runtime

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the per-map diagnostics counters spec.md §7 calls for:
// evaluation errors, completed evaluations, and muted ticks, each labeled
// by the destination signal's path so a multi-map device gets one series
// per map.
type Metrics struct {
	Evaluations *prometheus.CounterVec
	EvalErrors  *prometheus.CounterVec
	MutedTicks  *prometheus.CounterVec
}

// NewMetrics registers the runtime's counter vectors on reg. Pass
// prometheus.NewRegistry() (or prometheus.DefaultRegisterer) for reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sigmap",
			Subsystem: "runtime",
			Name:      "evaluations_total",
			Help:      "Completed map expression evaluations, by destination signal.",
		}, []string{"map"}),
		EvalErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sigmap",
			Subsystem: "runtime",
			Name:      "eval_errors_total",
			Help:      "Map expression evaluation failures, by destination signal.",
		}, []string{"map"}),
		MutedTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sigmap",
			Subsystem: "runtime",
			Name:      "muted_ticks_total",
			Help:      "Evaluations that produced a muted tick, by destination signal.",
		}, []string{"map"}),
	}
	reg.MustRegister(m.Evaluations, m.EvalErrors, m.MutedTicks)
	return m
}
