// Package staging implements ports.Tx on top of a minimal backend contract.
//
// A transaction loads each channel it touches once, keeps reads and writes in
// a per-channel working copy and hands only the changed channels to the
// backend on Commit. Backends decide how to detect concurrent commits
// (versions, WATCH, MVCC) and how to lay elements out.
package staging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/topograph/pkg/canon"
	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/ports"
)

// Channel is the working state of one channel inside a transaction.
type Channel struct {
	ID        string
	SignalID  string
	CreatedAt time.Time
	UpdatedAt time.Time
	Exists    bool

	Nodes map[string]domain.Node
	Edges map[string]domain.Edge

	// BaseNodes and BaseEdges are the ids present when the channel was loaded.
	BaseNodes []string
	BaseEdges []string

	// Version is opaque backend bookkeeping.
	Version uint64

	Replaced bool
	PutNodes map[string]bool
	PutEdges map[string]bool
	DelNodes map[string]bool
	DelEdges map[string]bool
	Audits   []domain.AuditRecord
}

// Missing returns the working state of a channel that does not exist yet.
func Missing(id string) *Channel {
	return &Channel{
		ID:       id,
		Nodes:    make(map[string]domain.Node),
		Edges:    make(map[string]domain.Edge),
		PutNodes: make(map[string]bool),
		PutEdges: make(map[string]bool),
		DelNodes: make(map[string]bool),
		DelEdges: make(map[string]bool),
	}
}

// Loaded returns the working state of a stored channel.
func Loaded(ch *domain.Channel) *Channel {
	c := Missing(ch.ID)
	c.Exists = true
	c.SignalID = ch.SignalID
	c.CreatedAt = ch.CreatedAt
	c.UpdatedAt = ch.UpdatedAt
	for _, n := range ch.Nodes {
		c.Nodes[n.ID] = n.Clone()
		c.BaseNodes = append(c.BaseNodes, n.ID)
	}
	for _, e := range ch.Edges {
		c.Edges[e.ID] = e.Clone()
		c.BaseEdges = append(c.BaseEdges, e.ID)
	}
	return c
}

// Dirty reports whether the transaction changed the channel.
func (c *Channel) Dirty() bool {
	return c.Replaced || len(c.PutNodes) > 0 || len(c.PutEdges) > 0 ||
		len(c.DelNodes) > 0 || len(c.DelEdges) > 0 || len(c.Audits) > 0
}

// Snapshot assembles the working state into a sorted domain channel.
func (c *Channel) Snapshot() *domain.Channel {
	ch := &domain.Channel{
		ID:        c.ID,
		SignalID:  c.SignalID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Nodes:     make([]domain.Node, 0, len(c.Nodes)),
		Edges:     make([]domain.Edge, 0, len(c.Edges)),
	}
	for _, n := range c.Nodes {
		ch.Nodes = append(ch.Nodes, n.Clone())
	}
	for _, e := range c.Edges {
		ch.Edges = append(ch.Edges, e.Clone())
	}
	canon.SortChannel(ch)
	return ch
}

// Backend is what a store must provide to run staged transactions.
type Backend interface {
	// Load returns the committed state of a channel, or Missing(id).
	Load(ctx context.Context, channelID string) (*Channel, error)

	// Commit atomically persists the changed channels and releases the
	// transaction's resources. Concurrent modifications must surface as
	// domain.ErrTxConflict.
	Commit(ctx context.Context, changed []*Channel) error

	// Abort releases the transaction's resources. It may be called after a
	// failed Commit.
	Abort(ctx context.Context) error
}

// Tx is a staged transaction. It is not safe for concurrent use.
type Tx struct {
	backend  Backend
	now      func() time.Time
	channels map[string]*Channel
	order    []string
	done     bool
}

// NewTx starts a staged transaction over backend. now stamps UpdatedAt and
// CreatedAt on commit; nil means time.Now.
func NewTx(backend Backend, now func() time.Time) *Tx {
	if now == nil {
		now = time.Now
	}
	return &Tx{backend: backend, now: now, channels: make(map[string]*Channel)}
}

var _ ports.Tx = (*Tx)(nil)

func (t *Tx) channel(ctx context.Context, id string) (*Channel, error) {
	if t.done {
		return nil, domain.ErrTxDone
	}
	if err := ports.ContextErr(ctx); err != nil {
		return nil, err
	}
	if c, ok := t.channels[id]; ok {
		return c, nil
	}
	c, err := t.backend.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load channel %q: %w", id, err)
	}
	t.channels[id] = c
	t.order = append(t.order, id)
	return c, nil
}

func (t *Tx) existing(ctx context.Context, id string) (*Channel, error) {
	c, err := t.channel(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Exists {
		return nil, fmt.Errorf("%w: %q", domain.ErrChannelNotFound, id)
	}
	return c, nil
}

// FindChannel implements ports.Repository.
func (t *Tx) FindChannel(ctx context.Context, channelID string) (*domain.Channel, error) {
	c, err := t.existing(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return c.Snapshot(), nil
}

// FindNode implements ports.Repository.
func (t *Tx) FindNode(ctx context.Context, channelID, nodeID string) (domain.Node, error) {
	c, err := t.existing(ctx, channelID)
	if err != nil {
		return domain.Node{}, err
	}
	n, ok := c.Nodes[nodeID]
	if !ok {
		return domain.Node{}, fmt.Errorf("%w: %q", domain.ErrNodeNotFound, nodeID)
	}
	return n.Clone(), nil
}

// FindEdge implements ports.Repository.
func (t *Tx) FindEdge(ctx context.Context, channelID, edgeID string) (domain.Edge, error) {
	c, err := t.existing(ctx, channelID)
	if err != nil {
		return domain.Edge{}, err
	}
	e, ok := c.Edges[edgeID]
	if !ok {
		return domain.Edge{}, fmt.Errorf("%w: %q", domain.ErrEdgeNotFound, edgeID)
	}
	return e.Clone(), nil
}

// PutNode implements ports.Repository.
func (t *Tx) PutNode(ctx context.Context, channelID string, node domain.Node) error {
	c, err := t.existing(ctx, channelID)
	if err != nil {
		return err
	}
	if node.ID == "" {
		return errors.New("node id is required")
	}
	c.Nodes[node.ID] = node.Clone()
	c.PutNodes[node.ID] = true
	delete(c.DelNodes, node.ID)
	return nil
}

// PutEdge implements ports.Repository.
func (t *Tx) PutEdge(ctx context.Context, channelID string, edge domain.Edge) error {
	c, err := t.existing(ctx, channelID)
	if err != nil {
		return err
	}
	if edge.ID == "" {
		return errors.New("edge id is required")
	}
	c.Edges[edge.ID] = edge.Clone()
	c.PutEdges[edge.ID] = true
	delete(c.DelEdges, edge.ID)
	return nil
}

// DeleteNode implements ports.Repository.
func (t *Tx) DeleteNode(ctx context.Context, channelID, nodeID string) error {
	c, err := t.existing(ctx, channelID)
	if err != nil {
		return err
	}
	if _, ok := c.Nodes[nodeID]; !ok {
		return fmt.Errorf("%w: %q", domain.ErrNodeNotFound, nodeID)
	}
	delete(c.Nodes, nodeID)
	delete(c.PutNodes, nodeID)
	c.DelNodes[nodeID] = true
	return nil
}

// DeleteEdge implements ports.Repository.
func (t *Tx) DeleteEdge(ctx context.Context, channelID, edgeID string) error {
	c, err := t.existing(ctx, channelID)
	if err != nil {
		return err
	}
	if _, ok := c.Edges[edgeID]; !ok {
		return fmt.Errorf("%w: %q", domain.ErrEdgeNotFound, edgeID)
	}
	delete(c.Edges, edgeID)
	delete(c.PutEdges, edgeID)
	c.DelEdges[edgeID] = true
	return nil
}

// ReplaceDiagram implements ports.Repository.
func (t *Tx) ReplaceDiagram(ctx context.Context, channel *domain.Channel) error {
	if channel == nil || channel.ID == "" {
		return errors.New("channel id is required")
	}
	c, err := t.channel(ctx, channel.ID)
	if err != nil {
		return err
	}

	nodes := make(map[string]domain.Node, len(channel.Nodes))
	for _, n := range channel.Nodes {
		if _, dup := nodes[n.ID]; dup || n.ID == "" {
			return fmt.Errorf("%w: node %q", domain.ErrDuplicateID, n.ID)
		}
		nodes[n.ID] = n.Clone()
	}
	edges := make(map[string]domain.Edge, len(channel.Edges))
	for _, e := range channel.Edges {
		if _, dup := edges[e.ID]; dup || e.ID == "" {
			return fmt.Errorf("%w: edge %q", domain.ErrDuplicateID, e.ID)
		}
		edges[e.ID] = e.Clone()
	}

	c.Exists = true
	c.Replaced = true
	c.SignalID = channel.SignalID
	c.Nodes, c.Edges = nodes, edges
	c.PutNodes = make(map[string]bool, len(nodes))
	c.PutEdges = make(map[string]bool, len(edges))
	c.DelNodes = make(map[string]bool)
	c.DelEdges = make(map[string]bool)
	for id := range nodes {
		c.PutNodes[id] = true
	}
	for id := range edges {
		c.PutEdges[id] = true
	}
	return nil
}

// AppendAudit implements ports.Repository.
func (t *Tx) AppendAudit(ctx context.Context, record domain.AuditRecord) error {
	c, err := t.existing(ctx, record.ChannelID)
	if err != nil {
		return err
	}
	c.Audits = append(c.Audits, record)
	return nil
}

// Commit implements ports.Tx.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return domain.ErrTxDone
	}
	if err := ports.ContextErr(ctx); err != nil {
		_ = t.Abort(context.WithoutCancel(ctx))
		return err
	}
	t.done = true

	now := t.now().UTC()
	var changed []*Channel
	for _, id := range t.order {
		c := t.channels[id]
		if !c.Dirty() {
			continue
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.UpdatedAt = now
		for i := range c.Audits {
			if c.Audits[i].Timestamp.IsZero() {
				c.Audits[i].Timestamp = now
			}
		}
		changed = append(changed, c)
	}

	if err := t.backend.Commit(ctx, changed); err != nil {
		_ = t.backend.Abort(context.WithoutCancel(ctx))
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", domain.ErrTxTimeout, err)
		}
		return err
	}
	return nil
}

// Abort implements ports.Tx.
func (t *Tx) Abort(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	return t.backend.Abort(ctx)
}
