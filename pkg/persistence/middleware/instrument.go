package middleware

import (
	"context"
	"errors"

	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/observability"
	"github.com/aretw0/topograph/pkg/ports"
)

type metricsMiddleware struct {
	ports.Store
	metrics *observability.Metrics
}

// NewMetricsMiddleware counts transaction results on metrics.
func NewMetricsMiddleware(metrics *observability.Metrics) Middleware {
	return func(next ports.Store) ports.Store {
		return &metricsMiddleware{Store: next, metrics: metrics}
	}
}

func (m *metricsMiddleware) Begin(ctx context.Context) (ports.Tx, error) {
	tx, err := m.Store.Begin(ctx)
	if err != nil {
		m.metrics.ObserveTx(txResult(err))
		return nil, err
	}
	return &hookedTx{Tx: tx, hooks: txHooks{
		onCommit: func(err error) { m.metrics.ObserveTx(txResult(err)) },
		onAbort:  func(error) { m.metrics.ObserveTx(observability.TxAborted) },
	}}, nil
}

func txResult(err error) string {
	switch {
	case err == nil:
		return observability.TxCommitted
	case errors.Is(err, domain.ErrTxConflict):
		return observability.TxConflict
	case errors.Is(err, domain.ErrTxTimeout):
		return observability.TxTimeout
	default:
		return observability.TxError
	}
}
