package exerciser

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	exercises   prometheus.Counter
	volume      prometheus.Counter
	feesTaken   prometheus.Counter
	latency     prometheus.Histogram
	activeLoans prometheus.Gauge
	errors      *prometheus.CounterVec
}

func newMetrics() *metrics {
	return &metrics{
		exercises: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exerciser_operations_total",
			Help: "Number of completed flash-exercise operations",
		}),
		volume: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exerciser_loan_volume",
			Help: "Total payment-token volume borrowed for exercising",
		}),
		feesTaken: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exerciser_fees_collected",
			Help: "Total protocol fees collected on realized profit",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "exerciser_operation_latency_seconds",
			Help:    "Latency of flash-exercise operations",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
		}),
		activeLoans: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exerciser_active_loans",
			Help: "Number of loans currently in flight (0 or 1)",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exerciser_errors_total",
			Help: "Number of failed operations by error type",
		}, []string{"error_type"}),
	}
}
