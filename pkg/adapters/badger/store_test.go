package badger_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/topograph/pkg/adapters/badger"
	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/ports"
)

func openStore(t *testing.T, opts ...badger.Option) *badger.Store {
	t.Helper()
	store, err := badger.Open("", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerStore_Contract(t *testing.T) {
	ports.RunStoreContract(t, func(t *testing.T) ports.Store {
		return openStore(t)
	})
}

func TestBadgerStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := badger.Open(dir, badger.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.ReplaceDiagram(ctx, &domain.Channel{
		ID:    "ch-1",
		Nodes: []domain.Node{{ID: "a"}, {ID: "b"}},
		Edges: []domain.Edge{{ID: "e1", Source: "a", Target: "b"}},
	}))
	require.NoError(t, tx.AppendAudit(ctx, domain.AuditRecord{ID: "r1", ChannelID: "ch-1", Action: domain.ActionCreate}))
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, store.Close())

	reopened, err := badger.Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	ch, err := reopened.Load(ctx, "ch-1")
	require.NoError(t, err)
	assert.Len(t, ch.Nodes, 2)
	assert.Len(t, ch.Edges, 1)

	records, err := reopened.Audit(ctx, "ch-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "r1", records[0].ID)
}

func TestBadgerStore_AuditOrderBeyondOneByte(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.ReplaceDiagram(ctx, &domain.Channel{ID: "ch-1"}))
	require.NoError(t, tx.Commit(ctx))

	const total = 300
	for i := range total {
		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.AppendAudit(ctx, domain.AuditRecord{
			ID:        string(rune('a' + i%26)),
			ChannelID: "ch-1",
			EntityID:  time.Duration(i).String(),
		}))
		require.NoError(t, tx.Commit(ctx))
	}

	records, err := store.Audit(ctx, "ch-1")
	require.NoError(t, err)
	require.Len(t, records, total)
	for i, rec := range records {
		assert.Equal(t, time.Duration(i).String(), rec.EntityID)
	}
}

func TestBadgerStore_ListAndClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := openStore(t, badger.WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	for _, id := range []string{"beta", "alpha"} {
		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.ReplaceDiagram(ctx, &domain.Channel{ID: id}))
		require.NoError(t, tx.Commit(ctx))
	}

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, ids)

	ch, err := store.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, fixed.Equal(ch.CreatedAt))
	assert.True(t, fixed.Equal(ch.UpdatedAt))
}
