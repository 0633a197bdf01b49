package generator

import "github.com/prometheus/client_golang/prometheus"

var (
	batchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "simplegen",
		Subsystem: "generator",
		Name:      "batches_total",
		Help:      "Total number of batches submitted to the runtime",
	})

	batchFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "simplegen",
		Subsystem: "generator",
		Name:      "batch_failures_total",
		Help:      "Batches that failed with a non-OOM error and returned empty outputs",
	})

	oomBackoffsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "simplegen",
		Subsystem: "generator",
		Name:      "oom_backoffs_total",
		Help:      "Times the adaptive search halved the batch size after memory exhaustion",
	})

	textsGeneratedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "simplegen",
		Subsystem: "generator",
		Name:      "texts_generated_total",
		Help:      "Total number of output texts produced",
	})

	modelLoadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "simplegen",
		Subsystem: "generator",
		Name:      "model_loads_total",
		Help:      "Total number of model loads",
	})

	generateDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "simplegen",
		Subsystem: "generator",
		Name:      "generate_duration_seconds",
		Help:      "Duration of Generate calls in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		batchesTotal,
		batchFailuresTotal,
		oomBackoffsTotal,
		textsGeneratedTotal,
		modelLoadsTotal,
		generateDuration,
	)
}
