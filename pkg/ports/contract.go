package ports

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/topograph/pkg/domain"
)

// RunStoreContract runs a suite of tests to verify that a Store implementation
// adheres to the defined interface contract. newStore must return an empty store.
func RunStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	seed := func(t *testing.T, store Store) {
		t.Helper()
		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.ReplaceDiagram(ctx, contractChannel()))
		require.NoError(t, tx.Commit(ctx))
	}

	t.Run("Load Non-Existent", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Load(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrChannelNotFound)

		_, err = store.Audit(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrChannelNotFound)

		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Abort(ctx) }()
		assert.ErrorIs(t, tx.PutNode(ctx, "missing", domain.Node{ID: "a"}), domain.ErrChannelNotFound)
	})

	t.Run("Replace and Load", func(t *testing.T) {
		store := newStore(t)
		seed(t, store)

		ch, err := store.Load(ctx, "contract")
		require.NoError(t, err)
		assert.Equal(t, "sig-1", ch.SignalID)
		assert.Equal(t, []string{"node-2", "node-10"}, nodeIDs(ch), "nodes come back in canonical order")
		require.Len(t, ch.Edges, 1)
		assert.Equal(t, "in-left-1", ch.Edges[0].TargetHandle)
		assert.False(t, ch.CreatedAt.IsZero())
		assert.False(t, ch.UpdatedAt.IsZero())

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, "contract")
	})

	t.Run("Element Writes", func(t *testing.T) {
		store := newStore(t)
		seed(t, store)

		tx, err := store.Begin(ctx)
		require.NoError(t, err)

		node, err := tx.FindNode(ctx, "contract", "node-2")
		require.NoError(t, err)
		node.Position = domain.Position{X: 7, Y: 8}
		require.NoError(t, tx.PutNode(ctx, "contract", node))
		require.NoError(t, tx.PutNode(ctx, "contract", domain.Node{ID: "node-3", Data: domain.NodeData{Label: "new"}}))
		require.NoError(t, tx.DeleteEdge(ctx, "contract", "e1"))
		require.NoError(t, tx.DeleteNode(ctx, "contract", "node-10"))

		_, err = tx.FindEdge(ctx, "contract", "e1")
		assert.ErrorIs(t, err, domain.ErrEdgeNotFound, "reads see the transaction's own writes")
		assert.ErrorIs(t, tx.DeleteNode(ctx, "contract", "node-10"), domain.ErrNodeNotFound)

		before, err := store.Load(ctx, "contract")
		require.NoError(t, err)
		assert.Len(t, before.Edges, 1, "writes are invisible before commit")

		require.NoError(t, tx.Commit(ctx))

		after, err := store.Load(ctx, "contract")
		require.NoError(t, err)
		assert.Equal(t, []string{"node-2", "node-3"}, nodeIDs(after))
		assert.Empty(t, after.Edges)
		moved, _ := after.Node("node-2")
		assert.Equal(t, domain.Position{X: 7, Y: 8}, moved.Position)
	})

	t.Run("Find Misses", func(t *testing.T) {
		store := newStore(t)
		seed(t, store)

		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Abort(ctx) }()

		_, err = tx.FindNode(ctx, "contract", "ghost")
		assert.ErrorIs(t, err, domain.ErrNodeNotFound)
		_, err = tx.FindEdge(ctx, "contract", "ghost")
		assert.ErrorIs(t, err, domain.ErrEdgeNotFound)
		_, err = tx.FindChannel(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrChannelNotFound)
	})

	t.Run("Abort Leaves No Trace", func(t *testing.T) {
		store := newStore(t)
		seed(t, store)
		before, err := store.Load(ctx, "contract")
		require.NoError(t, err)

		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.PutNode(ctx, "contract", domain.Node{ID: "node-2", Data: domain.NodeData{Label: "changed"}}))
		require.NoError(t, tx.AppendAudit(ctx, contractAudit("contract", "a-1")))
		require.NoError(t, tx.Abort(ctx))

		after, err := store.Load(ctx, "contract")
		require.NoError(t, err)
		assert.Equal(t, mustJSON(t, before), mustJSON(t, after))

		records, err := store.Audit(ctx, "contract")
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("Audit Trail", func(t *testing.T) {
		store := newStore(t)
		seed(t, store)

		for _, id := range []string{"a-1", "a-2"} {
			tx, err := store.Begin(ctx)
			require.NoError(t, err)
			require.NoError(t, tx.AppendAudit(ctx, contractAudit("contract", id)))
			require.NoError(t, tx.Commit(ctx))
		}

		records, err := store.Audit(ctx, "contract")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "a-1", records[0].ID)
		assert.Equal(t, "a-2", records[1].ID)
		assert.Equal(t, domain.ActionMove, records[0].Action)
		assert.JSONEq(t, `{"x":1}`, string(records[0].Before))
		assert.JSONEq(t, `null`, string(records[0].After))
	})

	t.Run("Write Conflict", func(t *testing.T) {
		store := newStore(t)
		seed(t, store)

		first, err := store.Begin(ctx)
		require.NoError(t, err)
		second, err := store.Begin(ctx)
		require.NoError(t, err)

		_, err = first.FindChannel(ctx, "contract")
		require.NoError(t, err)
		_, err = second.FindChannel(ctx, "contract")
		require.NoError(t, err)

		require.NoError(t, first.PutNode(ctx, "contract", domain.Node{ID: "node-2", Data: domain.NodeData{Label: "first"}}))
		require.NoError(t, second.PutNode(ctx, "contract", domain.Node{ID: "node-2", Data: domain.NodeData{Label: "second"}}))

		require.NoError(t, first.Commit(ctx))
		assert.ErrorIs(t, second.Commit(ctx), domain.ErrTxConflict)

		ch, err := store.Load(ctx, "contract")
		require.NoError(t, err)
		n, _ := ch.Node("node-2")
		assert.Equal(t, "first", n.Data.Label)
	})

	t.Run("Finished Transactions", func(t *testing.T) {
		store := newStore(t)
		seed(t, store)

		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))
		assert.ErrorIs(t, tx.Commit(ctx), domain.ErrTxDone)
		assert.NoError(t, tx.Abort(ctx), "Abort after Commit is a no-op")
		_, err = tx.FindChannel(ctx, "contract")
		assert.ErrorIs(t, err, domain.ErrTxDone)
	})

	t.Run("Expired Context", func(t *testing.T) {
		store := newStore(t)
		seed(t, store)

		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Abort(ctx) }()

		expired, cancel := context.WithDeadline(ctx, time.Now().Add(-time.Second))
		defer cancel()
		_, err = tx.FindChannel(expired, "contract")
		assert.ErrorIs(t, err, domain.ErrTxTimeout)
	})

	t.Run("Duplicate IDs", func(t *testing.T) {
		store := newStore(t)
		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Abort(ctx) }()

		err = tx.ReplaceDiagram(ctx, &domain.Channel{ID: "dup", Nodes: []domain.Node{{ID: "a"}, {ID: "a"}}})
		assert.ErrorIs(t, err, domain.ErrDuplicateID)
	})

	t.Run("Channels With Overlapping IDs", func(t *testing.T) {
		store := newStore(t)
		ids := []string{"a", "a:nodes", "a:edges", "a:audit", "a/b", "a}:meta"}
		for _, id := range ids {
			tx, err := store.Begin(ctx)
			require.NoError(t, err)
			require.NoError(t, tx.ReplaceDiagram(ctx, &domain.Channel{
				ID:       id,
				SignalID: "sig-" + id,
				Nodes:    []domain.Node{{ID: "n-" + id}},
			}))
			require.NoError(t, tx.AppendAudit(ctx, contractAudit(id, "r-"+id)))
			require.NoError(t, tx.Commit(ctx))
		}

		for _, id := range ids {
			ch, err := store.Load(ctx, id)
			require.NoError(t, err, id)
			assert.Equal(t, "sig-"+id, ch.SignalID)
			assert.Equal(t, []string{"n-" + id}, nodeIDs(ch))

			records, err := store.Audit(ctx, id)
			require.NoError(t, err, id)
			require.Len(t, records, 1, id)
			assert.Equal(t, "r-"+id, records[0].ID)
		}

		listed, err := store.List(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, ids, listed)
	})

	t.Run("Replace Drops Stale Elements", func(t *testing.T) {
		store := newStore(t)
		seed(t, store)

		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.ReplaceDiagram(ctx, &domain.Channel{ID: "contract", Nodes: []domain.Node{{ID: "only"}}}))
		require.NoError(t, tx.Commit(ctx))

		ch, err := store.Load(ctx, "contract")
		require.NoError(t, err)
		assert.Equal(t, []string{"only"}, nodeIDs(ch))
		assert.Empty(t, ch.Edges)
		assert.Empty(t, ch.SignalID)
	})
}

func contractChannel() *domain.Channel {
	tooltip := "main feed"
	return &domain.Channel{
		ID:       "contract",
		SignalID: "sig-1",
		Nodes: []domain.Node{
			{ID: "node-10", Type: "ird", Data: domain.NodeData{Label: "IRD"}},
			{ID: "node-2", Type: "satellite", Position: domain.Position{X: 1, Y: 2}, Data: domain.NodeData{Label: "SAT"}},
		},
		Edges: []domain.Edge{{
			ID: "e1", Source: "node-2", Target: "node-10",
			SourceHandle: "out-right-1", TargetHandle: "in-left-1",
			Direction: domain.DirectionIda,
			Data:      domain.EdgeData{Tooltip: &tooltip},
		}},
	}
}

func contractAudit(channelID, id string) domain.AuditRecord {
	return domain.AuditRecord{
		ID:         id,
		EntityType: domain.EntityNode,
		EntityID:   "node-2",
		ChannelID:  channelID,
		Action:     domain.ActionMove,
		Before:     json.RawMessage(`{"x":1}`),
		After:      json.RawMessage(`null`),
		Actor:      "contract",
		Timestamp:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func nodeIDs(ch *domain.Channel) []string {
	ids := make([]string, len(ch.Nodes))
	for i, n := range ch.Nodes {
		ids[i] = n.ID
	}
	return ids
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
