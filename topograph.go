package topograph

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/topograph/internal/logging"
	"github.com/aretw0/topograph/internal/mutation"
	"github.com/aretw0/topograph/pkg/adapters/memory"
	"github.com/aretw0/topograph/pkg/diagram"
	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/observability"
	"github.com/aretw0/topograph/pkg/persistence/middleware"
	"github.com/aretw0/topograph/pkg/ports"
	"github.com/aretw0/topograph/pkg/session"
)

// Patch and result types of the mutation API.
type (
	Optional      = mutation.Optional
	EdgePatch     = mutation.EdgePatch
	TooltipPatch  = mutation.TooltipPatch
	NodeResult    = mutation.NodeResult
	EdgeResult    = mutation.EdgeResult
	RouterResult  = mutation.RouterResult
	DiagramResult = mutation.DiagramResult
	Result        = mutation.Result
)

// Value returns a set patch field.
func Value(s string) Optional { return mutation.Value(s) }

// Null returns an explicitly cleared patch field.
func Null() Optional { return mutation.Null() }

// Outcome renders a mutation result as {ok, entity, auditId} or {ok:false, status, message}.
func Outcome(result any, err error) Result { return mutation.Outcome(result, err) }

// Prepare canonicalizes a raw diagram, allocates its ports and applies the
// edge rules without storing anything.
func Prepare(raw any) (domain.Channel, diagram.Report) { return diagram.Prepare(raw) }

// Engine is the high-level entry point of the library. It owns the store
// pipeline and exposes every diagram mutation.
type Engine struct {
	store       ports.Store
	sessions    *session.Manager
	service     *mutation.Service
	logger      *slog.Logger
	metrics     *observability.Metrics
	locker      ports.DistributedLocker
	lockTTL     time.Duration
	txTimeout   time.Duration
	middlewares []middleware.Middleware
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the channel store. Defaults to an in-memory store.
func WithStore(store ports.Store) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics records mutations and store transactions on metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// WithLocker serializes writers to a channel across processes.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = ttl
	}
}

// WithTxTimeout bounds every mutation transaction.
func WithTxTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.txTimeout = d
	}
}

// WithMiddleware wraps the store with extra decorators, outermost first.
// They run inside the built-in logging and metrics middleware.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Engine) {
		e.middlewares = append(e.middlewares, mws...)
	}
}

// New initializes an Engine.
func New(opts ...Option) *Engine {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}

	mws := append([]middleware.Middleware{
		middleware.NewLoggingMiddleware(eng.logger),
		middleware.NewMetricsMiddleware(eng.metrics),
	}, eng.middlewares...)
	store := middleware.Chain(eng.store, mws...)

	sessionOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
	}
	if eng.lockTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithLockTTL(eng.lockTTL))
	}
	eng.sessions = session.NewManager(store, sessionOpts...)

	eng.service = mutation.New(eng.sessions,
		mutation.WithLogger(eng.logger),
		mutation.WithMetrics(eng.metrics),
		mutation.WithTxTimeout(eng.txTimeout),
	)
	return eng
}

// UpdateNodePosition moves a node. position is a domain.Position or a decoded
// JSON object with numeric x and y.
func (e *Engine) UpdateNodePosition(ctx context.Context, channelID, nodeID string, position any) (*NodeResult, error) {
	return e.service.UpdateNodePosition(ctx, channelID, nodeID, position)
}

// UpdateNodeLabel renames a node and re-derives the auto labels of its edges.
func (e *Engine) UpdateNodeLabel(ctx context.Context, channelID, nodeID, label string) (*NodeResult, error) {
	return e.service.UpdateNodeLabel(ctx, channelID, nodeID, label)
}

// CreateNode adds a node given in the loose editor shape.
func (e *Engine) CreateNode(ctx context.Context, channelID string, raw any) (*NodeResult, error) {
	return e.service.CreateNode(ctx, channelID, raw)
}

// DeleteNode removes a node and its incident edges.
func (e *Engine) DeleteNode(ctx context.Context, channelID, nodeID string) (*NodeResult, error) {
	return e.service.DeleteNode(ctx, channelID, nodeID)
}

// ReconnectEdge changes the endpoints or handles of an edge.
func (e *Engine) ReconnectEdge(ctx context.Context, channelID, edgeID string, patch EdgePatch) (*EdgeResult, error) {
	return e.service.ReconnectEdge(ctx, channelID, edgeID, patch)
}

// UpdateEdgeTooltip edits the tooltip title and body of an edge.
func (e *Engine) UpdateEdgeTooltip(ctx context.Context, channelID, edgeID string, patch TooltipPatch) (*EdgeResult, error) {
	return e.service.UpdateEdgeTooltip(ctx, channelID, edgeID, patch)
}

// UpdateEdgeLabel sets a manual edge label.
func (e *Engine) UpdateEdgeLabel(ctx context.Context, channelID, edgeID, label string) (*EdgeResult, error) {
	return e.service.UpdateEdgeLabel(ctx, channelID, edgeID, label)
}

// UpdateEdgeDirection changes the direction of an edge.
func (e *Engine) UpdateEdgeDirection(ctx context.Context, channelID, edgeID, direction string) (*EdgeResult, error) {
	return e.service.UpdateEdgeDirection(ctx, channelID, edgeID, direction)
}

// CreateEdge adds an edge given in the loose editor shape.
func (e *Engine) CreateEdge(ctx context.Context, channelID string, raw any) (*EdgeResult, error) {
	return e.service.CreateEdge(ctx, channelID, raw)
}

// DeleteEdge removes an edge.
func (e *Engine) DeleteEdge(ctx context.Context, channelID, edgeID string) (*EdgeResult, error) {
	return e.service.DeleteEdge(ctx, channelID, edgeID)
}

// ResyncRouter regenerates a router's template edges towards neighborIDs.
func (e *Engine) ResyncRouter(ctx context.Context, channelID, routerID string, neighborIDs []string) (*RouterResult, error) {
	return e.service.ResyncRouter(ctx, channelID, routerID, neighborIDs)
}

// SaveDiagram replaces the whole diagram of a channel.
func (e *Engine) SaveDiagram(ctx context.Context, channelID string, raw any) (*DiagramResult, error) {
	return e.service.SaveDiagram(ctx, channelID, raw)
}

// LoadDiagram returns the stored diagram of a channel.
func (e *Engine) LoadDiagram(ctx context.Context, channelID string) (*domain.Channel, error) {
	return e.service.LoadDiagram(ctx, channelID)
}

// History returns the audit trail of a channel.
func (e *Engine) History(ctx context.Context, channelID string) ([]domain.AuditRecord, error) {
	return e.service.History(ctx, channelID)
}

// Channels lists the stored channel ids.
func (e *Engine) Channels(ctx context.Context) ([]string, error) {
	ids, err := e.sessions.List(ctx)
	if err != nil {
		return nil, domain.AsError(err)
	}
	return ids, nil
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	return e.store.Close()
}
