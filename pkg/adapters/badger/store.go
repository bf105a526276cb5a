// Package badger implements ports.Store on an embedded BadgerDB.
//
// Every node, edge and audit record is its own key, so an element mutation
// writes exactly one key. Badger's serializable transactions detect a
// concurrent commit on any key a transaction has read; the channel's meta key
// is read by every transaction that touches the channel and rewritten by
// every commit, so two writers to one channel always conflict.
package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/aretw0/topograph/internal/staging"
	"github.com/aretw0/topograph/pkg/canon"
	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/ports"
)

// Key prefixes. Element keys are prefix + channel id + 0x00 + element id.
const (
	metaPrefix  = "m/"
	nodePrefix  = "n/"
	edgePrefix  = "e/"
	auditPrefix = "a/"
	sep         = "\x00"
)

type meta struct {
	SignalID  string    `json:"signalId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Audits    uint64    `json:"audits"`
}

// Store implements ports.Store using BadgerDB.
type Store struct {
	db     *badger.DB
	owned  bool
	now    func() time.Time
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp commits.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger routes Badger's internal logging to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens (or creates) a database in dir. An empty dir runs in memory.
func Open(dir string, opts ...Option) (*Store, error) {
	s := newStore(opts...)

	bopts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		bopts = bopts.WithInMemory(true)
	}
	if s.logger != nil {
		bopts = bopts.WithLogger(&logAdapter{logger: s.logger})
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	s.db = db
	s.owned = true
	return s, nil
}

// NewFromDB wraps an already open database. Close leaves it open.
func NewFromDB(db *badger.DB, opts ...Option) *Store {
	s := newStore(opts...)
	s.db = db
	return s
}

func newStore(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ports.Store = (*Store)(nil)

func metaKey(channelID string) []byte {
	return []byte(metaPrefix + channelID)
}

func elementPrefix(prefix, channelID string) []byte {
	return []byte(prefix + channelID + sep)
}

func elementKey(prefix, channelID, id string) []byte {
	return []byte(prefix + channelID + sep + id)
}

func auditKey(channelID string, seq uint64) []byte {
	key := elementPrefix(auditPrefix, channelID)
	return binary.BigEndian.AppendUint64(key, seq)
}

// Begin starts a read-write Badger transaction.
func (s *Store) Begin(ctx context.Context) (ports.Tx, error) {
	if err := ports.ContextErr(ctx); err != nil {
		return nil, err
	}
	return staging.NewTx(&txBackend{txn: s.db.NewTransaction(true)}, s.now), nil
}

// Load retrieves the committed channel.
func (s *Store) Load(ctx context.Context, channelID string) (*domain.Channel, error) {
	var ch *domain.Channel
	err := s.db.View(func(txn *badger.Txn) error {
		loaded, _, err := read(txn, channelID)
		ch = loaded
		return err
	})
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrChannelNotFound, channelID)
	}
	return ch, nil
}

// List returns the stored channel ids in key order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(metaPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(bytes.TrimPrefix(it.Item().Key(), prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return ids, nil
}

// Audit returns the channel's audit trail in append order.
func (s *Store) Audit(ctx context.Context, channelID string) ([]domain.AuditRecord, error) {
	var records []domain.AuditRecord
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(metaKey(channelID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %q", domain.ErrChannelNotFound, channelID)
			}
			return fmt.Errorf("get channel: %w", err)
		}
		return scan(txn, elementPrefix(auditPrefix, channelID), func(val []byte) error {
			var rec domain.AuditRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return fmt.Errorf("unmarshal audit record: %w", err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []domain.AuditRecord{}
	}
	return records, nil
}

// Close closes the database if the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// read loads a channel inside txn. A missing channel yields nil.
func read(txn *badger.Txn, channelID string) (*domain.Channel, meta, error) {
	var m meta
	item, err := txn.Get(metaKey(channelID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, m, nil
	}
	if err != nil {
		return nil, m, fmt.Errorf("get channel: %w", err)
	}
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &m) }); err != nil {
		return nil, m, fmt.Errorf("unmarshal channel: %w", err)
	}

	ch := &domain.Channel{
		ID:        channelID,
		SignalID:  m.SignalID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		Nodes:     []domain.Node{},
		Edges:     []domain.Edge{},
	}
	err = scan(txn, elementPrefix(nodePrefix, channelID), func(val []byte) error {
		var n domain.Node
		if err := json.Unmarshal(val, &n); err != nil {
			return fmt.Errorf("unmarshal node: %w", err)
		}
		ch.Nodes = append(ch.Nodes, n)
		return nil
	})
	if err != nil {
		return nil, m, err
	}
	err = scan(txn, elementPrefix(edgePrefix, channelID), func(val []byte) error {
		var e domain.Edge
		if err := json.Unmarshal(val, &e); err != nil {
			return fmt.Errorf("unmarshal edge: %w", err)
		}
		ch.Edges = append(ch.Edges, e)
		return nil
	})
	if err != nil {
		return nil, m, err
	}

	canon.SortChannel(ch)
	return ch, m, nil
}

func scan(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

type txBackend struct {
	txn *badger.Txn
}

func (b *txBackend) Load(ctx context.Context, channelID string) (*staging.Channel, error) {
	ch, m, err := read(b.txn, channelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return staging.Missing(channelID), nil
	}
	c := staging.Loaded(ch)
	c.Version = m.Audits
	return c, nil
}

func (b *txBackend) Commit(ctx context.Context, changed []*staging.Channel) error {
	if len(changed) == 0 {
		b.txn.Discard()
		return nil
	}
	for _, c := range changed {
		if err := stage(b.txn, c); err != nil {
			return err
		}
	}
	if err := b.txn.Commit(); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			return fmt.Errorf("%w: %v", domain.ErrTxConflict, err)
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (b *txBackend) Abort(ctx context.Context) error {
	b.txn.Discard()
	return nil
}

// stage writes one changed channel into txn.
func stage(txn *badger.Txn, c *staging.Channel) error {
	m := meta{
		SignalID:  c.SignalID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Audits:    c.Version + uint64(len(c.Audits)),
	}
	if err := setJSON(txn, metaKey(c.ID), m); err != nil {
		return err
	}

	if c.Replaced {
		for _, id := range c.BaseNodes {
			if err := txn.Delete(elementKey(nodePrefix, c.ID, id)); err != nil {
				return fmt.Errorf("delete node %q: %w", id, err)
			}
		}
		for _, id := range c.BaseEdges {
			if err := txn.Delete(elementKey(edgePrefix, c.ID, id)); err != nil {
				return fmt.Errorf("delete edge %q: %w", id, err)
			}
		}
	} else {
		for id := range c.DelNodes {
			if err := txn.Delete(elementKey(nodePrefix, c.ID, id)); err != nil {
				return fmt.Errorf("delete node %q: %w", id, err)
			}
		}
		for id := range c.DelEdges {
			if err := txn.Delete(elementKey(edgePrefix, c.ID, id)); err != nil {
				return fmt.Errorf("delete edge %q: %w", id, err)
			}
		}
	}

	for id := range c.PutNodes {
		if err := setJSON(txn, elementKey(nodePrefix, c.ID, id), c.Nodes[id]); err != nil {
			return err
		}
	}
	for id := range c.PutEdges {
		if err := setJSON(txn, elementKey(edgePrefix, c.ID, id), c.Edges[id]); err != nil {
			return err
		}
	}
	for i, rec := range c.Audits {
		if err := setJSON(txn, auditKey(c.ID, c.Version+uint64(i)), rec); err != nil {
			return err
		}
	}
	return nil
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}
	if err := txn.Set(key, data); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// logAdapter satisfies badger.Logger.
type logAdapter struct {
	logger *slog.Logger
}

func (l *logAdapter) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *logAdapter) Warningf(format string, args ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *logAdapter) Infof(format string, args ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *logAdapter) Debugf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}
