package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/aretw0/topograph/internal/logging"
	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock outlives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates channel access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.Store

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger // Logger for internal events (like deferred errors)
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Manager over the given store.
func NewManager(store ports.Store, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(channelID) after unlocking.
func (m *Manager) acquire(channelID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[channelID]
	if !exists {
		entry = &lockEntry{}
		m.locks[channelID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[channelID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, channelID)
	}
}

// Transact runs fn inside a transaction while holding the channel's lock.
// fn's error aborts the transaction; otherwise it is committed. Nothing fn
// wrote is visible unless Transact returns nil.
func (m *Manager) Transact(ctx context.Context, channelID string, fn func(ctx context.Context, tx ports.Tx) error) error {
	return m.WithLock(ctx, channelID, func(ctx context.Context) error {
		tx, err := m.store.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() {
			// No-op once committed.
			if err := tx.Abort(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to abort transaction",
					"channel_id", channelID,
					"err", err,
				)
			}
		}()

		if err := fn(ctx, tx); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

// Load reads the committed state of a channel without locking.
func (m *Manager) Load(ctx context.Context, channelID string) (*domain.Channel, error) {
	return m.store.Load(ctx, channelID)
}

// Audit delegates to the store.
func (m *Manager) Audit(ctx context.Context, channelID string) ([]domain.AuditRecord, error) {
	return m.store.Audit(ctx, channelID)
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying store.
func (m *Manager) Store() ports.Store {
	return m.store
}

// WithLock executes a function while holding the lock for the channel.
func (m *Manager) WithLock(ctx context.Context, channelID string, fn func(context.Context) error) error {
	entry := m.acquire(channelID)
	defer m.release(channelID)

	if err := lockContext(ctx, &entry.mu); err != nil {
		return err
	}
	defer entry.mu.Unlock()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, channelID, m.lockTTL)
		if err != nil {
			if ctxErr := ports.ContextErr(ctx); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"channel_id", channelID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// lockContext locks mu unless ctx finishes first.
func lockContext(ctx context.Context, mu *sync.Mutex) error {
	if mu.TryLock() {
		return nil
	}
	locked := make(chan struct{})
	go func() {
		mu.Lock()
		close(locked)
	}()
	select {
	case <-locked:
		return nil
	case <-ctx.Done():
		// Hand the lock back once the waiter gets it.
		go func() {
			<-locked
			mu.Unlock()
		}()
		return ports.ContextErr(ctx)
	}
}
