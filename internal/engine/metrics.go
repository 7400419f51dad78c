package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imaged",
			Subsystem: "engine",
			Name:      "pipeline_loads_total",
			Help:      "Total pipeline loads into accelerator memory",
		},
		[]string{"family"},
	)

	evictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imaged",
			Subsystem: "engine",
			Name:      "pipeline_evictions_total",
			Help:      "Total pipeline evictions on family switch",
		},
		[]string{"family"},
	)

	admissionDenials = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "imaged",
			Subsystem: "engine",
			Name:      "admission_denials_total",
			Help:      "Total admission denials after memory reclaim",
		},
	)

	imagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imaged",
			Subsystem: "engine",
			Name:      "images_generated_total",
			Help:      "Total images generated and persisted",
		},
		[]string{"family", "mode"},
	)

	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imaged",
			Subsystem: "engine",
			Name:      "generation_duration_seconds",
			Help:      "Wall-clock duration of full generation batches",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"family", "mode"},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, evictionsTotal, admissionDenials, imagesTotal, generationDuration)
}
