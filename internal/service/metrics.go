package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("liquorpos.service")

var (
	salesCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liquorpos_sales_completed_total",
		Help: "Sales committed, by payment method",
	}, []string{"payment_method"})

	salesVoidedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liquorpos_sales_voided_total",
		Help: "Sales voided",
	})

	txConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liquorpos_transaction_conflicts_total",
		Help: "Transaction attempts aborted by a concurrent write",
	}, []string{"operation"})

	operationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liquorpos_operation_failures_total",
		Help: "Failed sale and void operations by error kind",
	}, []string{"operation", "kind"})

	txDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "liquorpos_transaction_duration_seconds",
		Help:    "Wall time of a sale or void including retries",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	}, []string{"operation"})
)
