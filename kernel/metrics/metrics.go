// Package metrics exposes the scheduler's runtime state to Prometheus.
// Grounded on the teacher's pervasive *Stats struct pattern
// (SupervisorStats, HybridStats, QueueStats), generalized here from a
// plain struct scraped on demand into registered collectors, in the
// idiom of the pack's other prometheus/client_golang users (e.g.
// ollama-distributed's pkg/monitoring promauto.NewGaugeVec/NewCounterVec
// pattern).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry groups every collector the scheduler updates. Construct one
// per Scheduler instance — against prometheus.DefaultRegisterer for a
// real deployment's /metrics endpoint, or a fresh prometheus.NewRegistry()
// to keep parallel tests from colliding over collector names.
type Registry struct {
	Dispatches      *prometheus.CounterVec
	DeadlineMisses  *prometheus.CounterVec
	ReadyQueueDepth *prometheus.GaugeVec
	RunningRank     *prometheus.GaugeVec
	ContextSwitches prometheus.Counter
}

// New registers a fresh set of collectors against reg. Pass a
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registerer across parallel test runs.
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		Dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sched_dispatches_total",
			Help: "Total number of dispatch decisions, by CPU.",
		}, []string{"cpu"}),
		DeadlineMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sched_deadline_misses_total",
			Help: "Total number of real-time jobs that missed their deadline, by policy.",
		}, []string{"policy"}),
		ReadyQueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sched_ready_queue_depth",
			Help: "Current number of READY threads linked into the ready structure, by head.",
		}, []string{"head"}),
		RunningRank: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sched_running_rank",
			Help: "Criterion rank of the thread currently RUNNING on a CPU (lower is more urgent).",
		}, []string{"cpu"}),
		ContextSwitches: factory.NewCounter(prometheus.CounterOpts{
			Name: "sched_context_switches_total",
			Help: "Total number of dispatch decisions that actually switched the running thread.",
		}),
	}
}
