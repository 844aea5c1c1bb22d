package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the dedicated Prometheus registry for solver runs
	Registry = prometheus.NewRegistry()
	// InstancesSolved counts solved instances by final status
	InstancesSolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "instances_solved_total", Help: "Route selection instances solved by status."},
		[]string{"status"},
	)
	// SolveDuration records per-instance wall time in seconds
	SolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "instance_solve_duration_seconds", Help: "Instance solve duration in seconds.", Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300}},
	)
	// BranchAndBoundNodes counts explored search nodes
	BranchAndBoundNodes = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "branch_and_bound_nodes_total", Help: "Branch and bound nodes explored."},
	)
)

var registerOnce sync.Once

// Register adds the collectors to Registry. Calling it more than once is a no-op.
func Register() {
	registerOnce.Do(func() {
		Registry.MustRegister(InstancesSolved)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(BranchAndBoundNodes)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves Registry in the Prometheus text format
func Handler() http.Handler {
	Register()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
