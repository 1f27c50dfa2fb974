package observability

import (
	"context"

	"github.com/honeynil/game-payment-ledger/internal/infrastructure/observability"
)

type Options struct {
	ServiceName  string
	LogLevel     string
	OTLPEndpoint string
	MetricsAddr  string
}

// Setup initializes logs, metrics and traces and returns the tracer shutdown.
func Setup(ctx context.Context, opts Options) func(context.Context) error {
	observability.InitLogger(opts.LogLevel)
	observability.InitMetrics()
	observability.ServeMetrics(opts.MetricsAddr)
	return observability.InitTracing(ctx, opts.ServiceName, opts.OTLPEndpoint)
}
