package task

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chainStepErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacesync_chain_step_errors_total",
		Help: "Total number of failed chain steps by chain",
	}, []string{"chain"})

	loopIterationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacesync_loop_iterations_total",
		Help: "Total number of completed loop iterations by chain",
	}, []string{"chain"})

	activeIterations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spacesync_active_iterations",
		Help: "Number of dispatched iterations currently running",
	})
)
