package observability

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Счётчик вызовов методов репозитория
	RepositoryCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_calls_total",
			Help: "Total number of repository method calls",
		},
		[]string{"method", "status"},
	)

	// Гистограмма времени выполнения запросов
	RepositoryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repository_duration_seconds",
			Help:    "Duration of repository method calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	PaymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_payments_total",
			Help: "Payment submissions by outcome",
		},
		[]string{"outcome"},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_events_published_total",
			Help: "Kafka events published by the ledger",
		},
		[]string{"topic", "status"},
	)

	EventsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_events_consumed_total",
			Help: "Kafka events consumed by the ledger, by how they were settled",
		},
		[]string{"topic", "status"},
	)
)

const (
	OutcomeCommitted         = "committed"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomeRejected          = "rejected"
	OutcomeError             = "error"
)

const (
	ConsumeHandled = "handled"
	ConsumeDropped = "dropped"
)

func InitMetrics() {
	prometheus.MustRegister(RepositoryCalls, RepositoryDuration, PaymentsTotal, EventsPublished, EventsConsumed)
}

// ServeMetrics exposes /metrics on a dedicated listener when addr is set.
func ServeMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics listener stopped", "addr", addr, "error", err)
		}
	}()
}
