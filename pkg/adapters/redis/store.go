package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/topograph/internal/staging"
	"github.com/aretw0/topograph/pkg/canon"
	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/ports"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "topograph:"

// Store implements ports.Store using Redis.
//
// Each channel is laid out as a meta hash plus one hash for nodes and one for
// edges (field = element id, value = JSON), and a list for the audit trail.
// Keys are "channel:{<id>}:<part>"; the fixed part suffix keeps ids containing
// ':' from landing on another channel's keys, and the braces form a cluster
// hash tag so one channel's keys share a slot.
// Transactions pin a connection, WATCH the keys of every channel they read and
// commit with MULTI/EXEC, so a concurrent commit fails with domain.ErrTxConflict.
type Store struct {
	client *backend.Client
	prefix string
	now    func() time.Time
}

type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithClock overrides the clock used to stamp commits.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

var _ ports.Store = (*Store)(nil)

func (s *Store) channelKey(channelID, part string) string {
	return s.prefix + "channel:{" + channelID + "}:" + part
}

func (s *Store) metaKey(channelID string) string {
	return s.channelKey(channelID, "meta")
}

func (s *Store) nodesKey(channelID string) string {
	return s.channelKey(channelID, "nodes")
}

func (s *Store) edgesKey(channelID string) string {
	return s.channelKey(channelID, "edges")
}

func (s *Store) auditKey(channelID string) string {
	return s.channelKey(channelID, "audit")
}

func (s *Store) indexKey() string {
	return s.prefix + "channels"
}

// Begin pins a connection for the transaction.
func (s *Store) Begin(ctx context.Context) (ports.Tx, error) {
	if err := ports.ContextErr(ctx); err != nil {
		return nil, err
	}
	return staging.NewTx(&txBackend{store: s, conn: s.client.Conn()}, s.now), nil
}

// Load retrieves the committed channel.
func (s *Store) Load(ctx context.Context, channelID string) (*domain.Channel, error) {
	ch, ok, err := s.read(ctx, s.client, channelID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrChannelNotFound, channelID)
	}
	return ch, nil
}

// List returns the stored channel ids in sorted order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	return ids, nil
}

// Audit returns the channel's audit trail in append order.
func (s *Store) Audit(ctx context.Context, channelID string) ([]domain.AuditRecord, error) {
	n, err := s.client.Exists(ctx, s.metaKey(channelID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check channel: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %q", domain.ErrChannelNotFound, channelID)
	}

	raw, err := s.client.LRange(ctx, s.auditKey(channelID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read audit trail: %w", err)
	}
	records := make([]domain.AuditRecord, 0, len(raw))
	for _, item := range raw {
		var rec domain.AuditRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// hashReader is satisfied by both the client and a pinned connection.
type hashReader interface {
	HGetAll(ctx context.Context, key string) *backend.MapStringStringCmd
}

func (s *Store) read(ctx context.Context, r hashReader, channelID string) (*domain.Channel, bool, error) {
	meta, err := r.HGetAll(ctx, s.metaKey(channelID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get from redis: %w", err)
	}
	if len(meta) == 0 {
		return nil, false, nil
	}

	ch := &domain.Channel{
		ID:        channelID,
		SignalID:  meta["signal"],
		CreatedAt: parseTime(meta["createdAt"]),
		UpdatedAt: parseTime(meta["updatedAt"]),
		Nodes:     []domain.Node{},
		Edges:     []domain.Edge{},
	}

	nodes, err := r.HGetAll(ctx, s.nodesKey(channelID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get nodes: %w", err)
	}
	for id, data := range nodes {
		var n domain.Node
		if err := json.Unmarshal([]byte(data), &n); err != nil {
			return nil, false, fmt.Errorf("failed to unmarshal node %q: %w", id, err)
		}
		ch.Nodes = append(ch.Nodes, n)
	}

	edges, err := r.HGetAll(ctx, s.edgesKey(channelID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get edges: %w", err)
	}
	for id, data := range edges {
		var e domain.Edge
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, false, fmt.Errorf("failed to unmarshal edge %q: %w", id, err)
		}
		ch.Edges = append(ch.Edges, e)
	}

	canon.SortChannel(ch)
	return ch, true, nil
}

// txBackend runs one staged transaction on a pinned connection.
type txBackend struct {
	store  *Store
	conn   *backend.Conn
	closed bool
}

func (b *txBackend) Load(ctx context.Context, channelID string) (*staging.Channel, error) {
	s := b.store
	watch := backend.NewStatusCmd(ctx, "watch", s.metaKey(channelID), s.nodesKey(channelID), s.edgesKey(channelID))
	if err := b.conn.Process(ctx, watch); err != nil {
		return nil, fmt.Errorf("failed to watch channel: %w", err)
	}

	ch, ok, err := s.read(ctx, b.conn, channelID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return staging.Missing(channelID), nil
	}
	return staging.Loaded(ch), nil
}

func (b *txBackend) Commit(ctx context.Context, changed []*staging.Channel) error {
	if len(changed) == 0 {
		return b.Abort(ctx)
	}
	defer b.release()

	s := b.store
	_, err := b.conn.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		for _, c := range changed {
			if err := s.stage(ctx, pipe, c); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, backend.TxFailedErr) {
		return fmt.Errorf("%w: %v", domain.ErrTxConflict, err)
	}
	if err != nil {
		return fmt.Errorf("failed to commit to redis: %w", err)
	}
	return nil
}

func (b *txBackend) Abort(ctx context.Context) error {
	if b.closed {
		return nil
	}
	defer b.release()
	return b.conn.Process(ctx, backend.NewStatusCmd(ctx, "unwatch"))
}

func (b *txBackend) release() {
	if b.closed {
		return
	}
	b.closed = true
	_ = b.conn.Close()
}

// stage queues the writes of one changed channel.
func (s *Store) stage(ctx context.Context, pipe backend.Pipeliner, c *staging.Channel) error {
	pipe.HSet(ctx, s.metaKey(c.ID),
		"signal", c.SignalID,
		"createdAt", c.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt", c.UpdatedAt.Format(time.RFC3339Nano),
	)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: 0, Member: c.ID})

	if c.Replaced {
		pipe.Del(ctx, s.nodesKey(c.ID), s.edgesKey(c.ID))
	}

	nodes := make(map[string]any, len(c.PutNodes))
	for id := range c.PutNodes {
		data, err := json.Marshal(c.Nodes[id])
		if err != nil {
			return fmt.Errorf("failed to marshal node %q: %w", id, err)
		}
		nodes[id] = data
	}
	if len(nodes) > 0 {
		pipe.HSet(ctx, s.nodesKey(c.ID), nodes)
	}

	edges := make(map[string]any, len(c.PutEdges))
	for id := range c.PutEdges {
		data, err := json.Marshal(c.Edges[id])
		if err != nil {
			return fmt.Errorf("failed to marshal edge %q: %w", id, err)
		}
		edges[id] = data
	}
	if len(edges) > 0 {
		pipe.HSet(ctx, s.edgesKey(c.ID), edges)
	}

	if !c.Replaced {
		if ids := keys(c.DelNodes); len(ids) > 0 {
			pipe.HDel(ctx, s.nodesKey(c.ID), ids...)
		}
		if ids := keys(c.DelEdges); len(ids) > 0 {
			pipe.HDel(ctx, s.edgesKey(c.ID), ids...)
		}
	}

	for _, rec := range c.Audits {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal audit record: %w", err)
		}
		pipe.RPush(ctx, s.auditKey(c.ID), data)
	}
	return nil
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
