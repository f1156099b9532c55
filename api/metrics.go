// metrics.go - Prometheus instrumentation for write operations.
//
// Exposed at /metrics. Ops are counted by kind and outcome so dashboards
// can separate validation rejections from engine failures; successful
// operations additionally feed an amount total and a duration histogram.
package api

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/atlaspos/credit-engine/credit"
)

var (
	opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "credit_engine",
		Name:      "operations_total",
		Help:      "Write operations by kind and outcome.",
	}, []string{"op", "outcome"})

	opDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "credit_engine",
		Name:      "operation_duration_seconds",
		Help:      "Write operation latency by kind.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	amountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "credit_engine",
		Name:      "amount_total",
		Help:      "Sum of successfully processed amounts by operation kind.",
	}, []string{"op"})
)

func observeOp(op string, start time.Time, amount decimal.Decimal, err error) {
	opsTotal.WithLabelValues(op, outcome(err)).Inc()
	opDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err == nil {
		amountTotal.WithLabelValues(op).Add(amount.Abs().InexactFloat64())
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, credit.ErrOverpayment):
		return "overpayment"
	case errors.Is(err, credit.ErrInvalidAmount), errors.Is(err, credit.ErrInvalidTerms):
		return "invalid"
	case errors.Is(err, credit.ErrAccountInactive):
		return "inactive"
	case errors.Is(err, credit.ErrAccountNotFound):
		return "not_found"
	case errors.Is(err, credit.ErrConcurrencyConflict):
		return "conflict"
	default:
		return "error"
	}
}
