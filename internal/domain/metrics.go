package domain

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes engine progress as Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	evaluated    prometheus.Counter
	solutions    prometheus.Counter
	generation   prometheus.Gauge
	stepDuration prometheus.Histogram
	fitness      prometheus.Histogram
	cacheRecords prometheus.Gauge
}

// NewMetrics registers the engine collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		evaluated: factory.NewCounter(prometheus.CounterOpts{
			Name: "grafter_candidates_evaluated_total",
			Help: "Candidates run against the test suite",
		}),
		solutions: factory.NewCounter(prometheus.CounterOpts{
			Name: "grafter_solutions_total",
			Help: "Candidates passing every test",
		}),
		generation: factory.NewGauge(prometheus.GaugeOpts{
			Name: "grafter_generation",
			Help: "Generation currently evolving",
		}),
		stepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "grafter_step_duration_seconds",
			Help:    "Wall-clock duration of one repair step",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		fitness: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "grafter_child_fitness",
			Help:    "Fitness of generated children",
			Buckets: prometheus.LinearBuckets(0, MaxFitness/10, 11),
		}),
		cacheRecords: factory.NewGauge(prometheus.GaugeOpts{
			Name: "grafter_cache_records",
			Help: "Execution records held by the cache",
		}),
	}
}

func (mt *Metrics) candidateEvaluated() {
	if mt == nil {
		return
	}

	mt.evaluated.Inc()
}

func (mt *Metrics) solutionFound() {
	if mt == nil {
		return
	}

	mt.solutions.Inc()
}

func (mt *Metrics) generationStarted(gen int) {
	if mt == nil {
		return
	}

	mt.generation.Set(float64(gen))
}

func (mt *Metrics) stepCompleted(d time.Duration, fitness float64) {
	if mt == nil {
		return
	}

	mt.stepDuration.Observe(d.Seconds())
	mt.fitness.Observe(fitness)
}

func (mt *Metrics) cacheSize(n int) {
	if mt == nil {
		return
	}

	mt.cacheRecords.Set(float64(n))
}
