package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/topograph/internal/staging"
	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/ports"
)

type channelState struct {
	channel *domain.Channel
	audit   []domain.AuditRecord
	version uint64
}

// Store implements ports.Store in memory.
// Transactions are optimistic: each commit checks that the channels it
// changed still carry the version it read. Safe for concurrent use.
type Store struct {
	data map[string]*channelState
	mu   sync.RWMutex
	now  func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp commits.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		data: make(map[string]*channelState),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ports.Store = (*Store)(nil)

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (ports.Tx, error) {
	if err := ports.ContextErr(ctx); err != nil {
		return nil, err
	}
	return staging.NewTx(&backend{store: s}, s.now), nil
}

// Load retrieves a copy of the committed channel.
func (s *Store) Load(ctx context.Context, channelID string) (*domain.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[channelID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrChannelNotFound, channelID)
	}
	// Copy on read so callers can't mutate store state through the pointer.
	return state.channel.Clone(), nil
}

// List returns the stored channel ids in sorted order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Audit returns a copy of the channel's audit trail.
func (s *Store) Audit(ctx context.Context, channelID string) ([]domain.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[channelID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrChannelNotFound, channelID)
	}
	return slices.Clone(state.audit), nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

type backend struct {
	store *Store
}

func (b *backend) Load(ctx context.Context, channelID string) (*staging.Channel, error) {
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()

	state, ok := b.store.data[channelID]
	if !ok {
		return staging.Missing(channelID), nil
	}
	c := staging.Loaded(state.channel)
	c.Version = state.version
	return c, nil
}

func (b *backend) Commit(ctx context.Context, changed []*staging.Channel) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	for _, c := range changed {
		var current uint64
		if state, ok := b.store.data[c.ID]; ok {
			current = state.version
		}
		if current != c.Version {
			return fmt.Errorf("%w: channel %q changed since it was read", domain.ErrTxConflict, c.ID)
		}
	}

	for _, c := range changed {
		state, ok := b.store.data[c.ID]
		if !ok {
			state = &channelState{}
			b.store.data[c.ID] = state
		}
		state.channel = c.Snapshot()
		state.audit = append(state.audit, c.Audits...)
		state.version++
	}
	return nil
}

func (b *backend) Abort(ctx context.Context) error {
	return nil
}
