package middleware

import (
	"context"

	"github.com/aretw0/topograph/pkg/ports"
)

// Middleware allows wrapping a Store to add behavior.
type Middleware func(ports.Store) ports.Store

// Chain applies mws to store so that the first middleware is the outermost.
func Chain(store ports.Store, mws ...Middleware) ports.Store {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

// txHooks observes how a wrapped transaction ends.
type txHooks struct {
	onCommit func(err error)
	onAbort  func(err error)
}

// hookedTx reports the first Commit or Abort to its hooks.
type hookedTx struct {
	ports.Tx
	hooks    txHooks
	finished bool
}

func (t *hookedTx) Commit(ctx context.Context) error {
	err := t.Tx.Commit(ctx)
	if !t.finished {
		t.finished = true
		t.hooks.onCommit(err)
	}
	return err
}

func (t *hookedTx) Abort(ctx context.Context) error {
	err := t.Tx.Abort(ctx)
	if !t.finished {
		t.finished = true
		t.hooks.onAbort(err)
	}
	return err
}
