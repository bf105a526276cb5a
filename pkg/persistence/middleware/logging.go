package middleware

import (
	"context"
	"log/slog"

	"github.com/aretw0/topograph/pkg/ports"
)

type loggingMiddleware struct {
	ports.Store
	logger *slog.Logger
}

// NewLoggingMiddleware logs how every transaction ends. Successful commits
// and aborts log at debug level; failed commits log as warnings.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ports.Store) ports.Store {
		return &loggingMiddleware{Store: next, logger: logger}
	}
}

func (m *loggingMiddleware) Begin(ctx context.Context) (ports.Tx, error) {
	tx, err := m.Store.Begin(ctx)
	if err != nil {
		m.logger.Warn("Failed to begin transaction", "err", err)
		return nil, err
	}
	return &hookedTx{Tx: tx, hooks: txHooks{
		onCommit: func(err error) {
			if err != nil {
				m.logger.Warn("Transaction commit failed", "err", err)
				return
			}
			m.logger.Debug("Transaction committed")
		},
		onAbort: func(err error) {
			if err != nil {
				m.logger.Warn("Transaction abort failed", "err", err)
				return
			}
			m.logger.Debug("Transaction aborted")
		},
	}}, nil
}
