// Package mutation applies single-entity edits to stored diagrams.
//
// Every call runs one transaction: read the scoped sub-state, validate,
// compute before and after, write the element, append an audit record and
// commit. Input is validated before the store is touched, and any failure
// aborts the transaction so nothing reaches the store. Errors are always
// *domain.Error values carrying the taxonomy kind.
package mutation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/topograph/internal/logging"
	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/observability"
	"github.com/aretw0/topograph/pkg/ports"
	"github.com/aretw0/topograph/pkg/session"
)

// DefaultTxTimeout bounds each mutation's transaction.
const DefaultTxTimeout = 5 * time.Second

// Operation names used in logs and metrics.
const (
	OpUpdateNodePosition  = "update_node_position"
	OpUpdateNodeLabel     = "update_node_label"
	OpCreateNode          = "create_node"
	OpDeleteNode          = "delete_node"
	OpReconnectEdge       = "reconnect_edge"
	OpUpdateEdgeTooltip   = "update_edge_tooltip"
	OpUpdateEdgeLabel     = "update_edge_label"
	OpUpdateEdgeDirection = "update_edge_direction"
	OpCreateEdge          = "create_edge"
	OpDeleteEdge          = "delete_edge"
	OpSaveDiagram         = "save_diagram"
	OpResyncRouter        = "resync_router"
)

// NodeResult is the outcome of a node mutation. Edges lists incident edges the
// call rewrote or removed as a consequence.
type NodeResult struct {
	Node    domain.Node   `json:"node"`
	Edges   []domain.Edge `json:"edges,omitempty"`
	AuditID string        `json:"auditId"`
}

// EdgeResult is the outcome of an edge mutation.
type EdgeResult struct {
	Edge    domain.Edge `json:"edge"`
	AuditID string      `json:"auditId"`
}

// Service applies mutations through a session.Manager.
type Service struct {
	sessions  *session.Manager
	logger    *slog.Logger
	metrics   *observability.Metrics
	txTimeout time.Duration
	newID     func() string
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics records every call on metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// WithTxTimeout bounds each transaction. Non-positive values keep the default.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.txTimeout = d
		}
	}
}

// WithIDGenerator overrides how audit record ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// New creates a Service.
func New(sessions *session.Manager, opts ...Option) *Service {
	s := &Service{
		sessions:  sessions,
		logger:    logging.NewNop(),
		txTimeout: DefaultTxTimeout,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run executes fn as one bounded transaction on channelID and classifies the error.
func (s *Service) run(ctx context.Context, op, channelID string, fn func(ctx context.Context, tx ports.Tx) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	err := s.sessions.Transact(ctx, channelID, fn)
	de := classify(err)
	s.record(op, channelID, start, de)
	if de == nil {
		return nil
	}
	return de
}

// record logs and counts a finished call.
func (s *Service) record(op, channelID string, start time.Time, de *domain.Error) {
	outcome := "ok"
	if de != nil {
		outcome = de.Kind.String()
	}
	s.metrics.ObserveMutation(op, outcome, time.Since(start))

	switch {
	case de == nil:
		s.logger.Debug("Mutation applied", "operation", op, "channel_id", channelID)
	case de.Kind == domain.KindInternal:
		s.logger.Error("Mutation failed",
			"operation", op,
			"channel_id", channelID,
			"code", de.Code,
			"err", de.Err,
		)
	default:
		s.logger.Debug("Mutation rejected",
			"operation", op,
			"channel_id", channelID,
			"status", de.Status(),
			"err", de.Message,
		)
	}
}

// reject classifies an error raised before any transaction started.
func (s *Service) reject(op, channelID string, err error) error {
	de := classify(err)
	s.record(op, channelID, time.Now(), de)
	return de
}

func classify(err error) *domain.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrTxTimeout) {
		err = errors.Join(domain.ErrTxTimeout, err)
	}
	return domain.AsError(err)
}

// audit appends a record for one entity and returns its id.
func (s *Service) audit(ctx context.Context, tx ports.Tx, channelID string, entity domain.EntityType, entityID string, action domain.Action, before, after any) (string, error) {
	b, err := domain.Snapshot(before)
	if err != nil {
		return "", err
	}
	a, err := domain.Snapshot(after)
	if err != nil {
		return "", err
	}
	rec := domain.AuditRecord{
		ID:         s.newID(),
		EntityType: entity,
		EntityID:   entityID,
		ChannelID:  channelID,
		Action:     action,
		Before:     b,
		After:      a,
		Actor:      domain.ActorFrom(ctx),
	}
	if err := tx.AppendAudit(ctx, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// History returns the audit trail of a channel.
func (s *Service) History(ctx context.Context, channelID string) ([]domain.AuditRecord, error) {
	if err := checkStruct(channelRef{ChannelID: channelID}); err != nil {
		return nil, err
	}
	records, err := s.sessions.Audit(ctx, channelID)
	if err != nil {
		return nil, classify(err)
	}
	return records, nil
}
