package staging_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/topograph/internal/staging"
	"github.com/aretw0/topograph/pkg/domain"
)

type fakeBackend struct {
	stored    map[string]*domain.Channel
	loads     int
	committed []*staging.Channel
	aborts    int
	commitErr error
}

func (b *fakeBackend) Load(ctx context.Context, id string) (*staging.Channel, error) {
	b.loads++
	if ch, ok := b.stored[id]; ok {
		return staging.Loaded(ch), nil
	}
	return staging.Missing(id), nil
}

func (b *fakeBackend) Commit(ctx context.Context, changed []*staging.Channel) error {
	if b.commitErr != nil {
		return b.commitErr
	}
	b.committed = changed
	return nil
}

func (b *fakeBackend) Abort(ctx context.Context) error {
	b.aborts++
	return nil
}

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newBackend() *fakeBackend {
	return &fakeBackend{stored: map[string]*domain.Channel{
		"ch-1": {
			ID:        "ch-1",
			SignalID:  "sig-1",
			CreatedAt: epoch.Add(-time.Hour),
			Nodes:     []domain.Node{{ID: "b"}, {ID: "a"}},
			Edges:     []domain.Edge{{ID: "e1", Source: "a", Target: "b"}},
		},
	}}
}

func clock() time.Time { return epoch }

func TestTx_ReadYourWrites(t *testing.T) {
	b := newBackend()
	tx := staging.NewTx(b, clock)
	ctx := context.Background()

	require.NoError(t, tx.PutNode(ctx, "ch-1", domain.Node{ID: "c"}))
	require.NoError(t, tx.DeleteEdge(ctx, "ch-1", "e1"))

	ch, err := tx.FindChannel(ctx, "ch-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, []string{ch.Nodes[0].ID, ch.Nodes[1].ID, ch.Nodes[2].ID}, "snapshots are sorted")
	assert.Empty(t, ch.Edges)

	_, err = tx.FindEdge(ctx, "ch-1", "e1")
	assert.ErrorIs(t, err, domain.ErrEdgeNotFound)
	assert.Equal(t, 1, b.loads, "a channel is loaded once per transaction")

	require.NoError(t, tx.Commit(ctx))
	require.Len(t, b.committed, 1)
	c := b.committed[0]
	assert.True(t, c.PutNodes["c"])
	assert.True(t, c.DelEdges["e1"])
	assert.Equal(t, epoch, c.UpdatedAt)
	assert.Equal(t, epoch.Add(-time.Hour), c.CreatedAt)
}

func TestTx_MissingChannel(t *testing.T) {
	tx := staging.NewTx(newBackend(), clock)
	ctx := context.Background()

	_, err := tx.FindChannel(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrChannelNotFound)
	assert.ErrorIs(t, tx.PutNode(ctx, "nope", domain.Node{ID: "a"}), domain.ErrChannelNotFound)
	assert.ErrorIs(t, tx.AppendAudit(ctx, domain.AuditRecord{ChannelID: "nope"}), domain.ErrChannelNotFound)
}

func TestTx_ReplaceDiagram(t *testing.T) {
	b := newBackend()
	tx := staging.NewTx(b, clock)
	ctx := context.Background()

	err := tx.ReplaceDiagram(ctx, &domain.Channel{ID: "ch-2", Nodes: []domain.Node{{ID: "x"}, {ID: "x"}}})
	assert.ErrorIs(t, err, domain.ErrDuplicateID)

	require.NoError(t, tx.ReplaceDiagram(ctx, &domain.Channel{ID: "ch-2", SignalID: "sig-2", Nodes: []domain.Node{{ID: "x"}}}))
	require.NoError(t, tx.Commit(ctx))

	require.Len(t, b.committed, 1)
	c := b.committed[0]
	assert.True(t, c.Replaced)
	assert.True(t, c.Exists)
	assert.Equal(t, epoch, c.CreatedAt, "new channels are stamped at commit")
}

func TestTx_CleanChannelsAreNotCommitted(t *testing.T) {
	b := newBackend()
	tx := staging.NewTx(b, clock)
	ctx := context.Background()

	_, err := tx.FindNode(ctx, "ch-1", "a")
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	assert.Empty(t, b.committed)
}

func TestTx_StampsAuditsAtCommit(t *testing.T) {
	b := newBackend()
	tx := staging.NewTx(b, clock)
	ctx := context.Background()

	explicit := epoch.Add(-24 * time.Hour)
	require.NoError(t, tx.AppendAudit(ctx, domain.AuditRecord{ID: "r1", ChannelID: "ch-1"}))
	require.NoError(t, tx.AppendAudit(ctx, domain.AuditRecord{ID: "r2", ChannelID: "ch-1", Timestamp: explicit}))
	require.NoError(t, tx.Commit(ctx))

	require.Len(t, b.committed, 1)
	c := b.committed[0]
	require.Len(t, c.Audits, 2)
	assert.Equal(t, epoch, c.Audits[0].Timestamp)
	assert.Equal(t, c.UpdatedAt, c.Audits[0].Timestamp)
	assert.Equal(t, explicit, c.Audits[1].Timestamp, "explicit timestamps are kept")
}

func TestTx_Finished(t *testing.T) {
	b := newBackend()
	tx := staging.NewTx(b, clock)
	ctx := context.Background()

	require.NoError(t, tx.Commit(ctx))
	assert.NoError(t, tx.Abort(ctx), "abort after commit is a no-op")
	assert.Zero(t, b.aborts)
	assert.ErrorIs(t, tx.Commit(ctx), domain.ErrTxDone)
	_, err := tx.FindChannel(ctx, "ch-1")
	assert.ErrorIs(t, err, domain.ErrTxDone)
}

func TestTx_CommitFailures(t *testing.T) {
	ctx := context.Background()

	b := newBackend()
	b.commitErr = domain.ErrTxConflict
	tx := staging.NewTx(b, clock)
	require.NoError(t, tx.PutNode(ctx, "ch-1", domain.Node{ID: "c"}))
	assert.ErrorIs(t, tx.Commit(ctx), domain.ErrTxConflict)
	assert.Equal(t, 1, b.aborts)

	b = newBackend()
	b.commitErr = context.DeadlineExceeded
	tx = staging.NewTx(b, clock)
	require.NoError(t, tx.PutNode(ctx, "ch-1", domain.Node{ID: "c"}))
	err := tx.Commit(ctx)
	assert.ErrorIs(t, err, domain.ErrTxTimeout)
	assert.False(t, errors.Is(err, domain.ErrTxConflict))

	b = newBackend()
	tx = staging.NewTx(b, clock)
	require.NoError(t, tx.PutNode(ctx, "ch-1", domain.Node{ID: "c"}))
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, tx.Commit(cancelled))
	assert.Equal(t, 1, b.aborts)
	assert.Nil(t, b.committed)
}
