package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated registry served on the debug listener
	Registry = prometheus.NewRegistry()

	// DistanceTrees counts single-source shortest path traversals
	DistanceTrees = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "walkability_distance_trees_total", Help: "Single-source shortest path trees computed."},
	)
	// GreedySteps counts committed greedy allocations by amenity type
	GreedySteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "walkability_greedy_steps_total", Help: "Committed greedy allocation steps."},
		[]string{"type"},
	)
	// GainEvaluations counts marginal gain evaluations
	GainEvaluations = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "walkability_gain_evaluations_total", Help: "Marginal gain evaluations."},
	)
	// SolverNodes counts branch-and-bound nodes explored
	SolverNodes = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "walkability_milp_nodes_total", Help: "Branch-and-bound nodes explored."},
	)
	// Objective is the last objective reached by each algorithm
	Objective = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "walkability_objective", Help: "Mean WalkScore of the last run."},
		[]string{"algorithm"},
	)
	// Gap is the last relative optimality gap reported by the exact path
	Gap = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "walkability_milp_gap", Help: "Relative optimality gap of the last exact run."},
	)
	// RunDuration records wall time of optimization runs in seconds
	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "walkability_run_duration_seconds", Help: "Optimization run wall time in seconds.", Buckets: prometheus.ExponentialBuckets(0.01, 4, 10)},
		[]string{"algorithm", "status"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors to Registry once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(DistanceTrees)
		Registry.MustRegister(GreedySteps)
		Registry.MustRegister(GainEvaluations)
		Registry.MustRegister(SolverNodes)
		Registry.MustRegister(Objective)
		Registry.MustRegister(Gap)
		Registry.MustRegister(RunDuration)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
