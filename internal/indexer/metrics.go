package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("projectindex.indexer")

var OperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "projectindex",
	Subsystem: "indexer",
	Name:      "operations_total",
	Help:      "Single-project index operations by kind and outcome",
}, []string{"op", "result"})

var ReindexUnitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "projectindex",
	Subsystem: "reindex",
	Name:      "units_total",
	Help:      "Batch reindex units by outcome",
}, []string{"result"})

var ReindexDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "projectindex",
	Subsystem: "reindex",
	Name:      "duration_seconds",
	Help:      "Wall time of full reindex runs",
	Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
}, []string{"version", "result"})

// Collectors returns the package metrics for registration
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{OperationsTotal, ReindexUnitsTotal, ReindexDuration}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
