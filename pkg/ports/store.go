package ports

import (
	"context"
	"errors"

	"github.com/aretw0/topograph/pkg/domain"
)

// Repository is the scoped read/write surface of a transaction.
// Writes address single elements by id; no call rewrites a whole array
// except ReplaceDiagram.
type Repository interface {
	// FindChannel returns the channel with its nodes and edges.
	// Returns domain.ErrChannelNotFound if the channel does not exist.
	FindChannel(ctx context.Context, channelID string) (*domain.Channel, error)

	// FindNode returns domain.ErrChannelNotFound or domain.ErrNodeNotFound on a miss.
	FindNode(ctx context.Context, channelID, nodeID string) (domain.Node, error)

	// FindEdge returns domain.ErrChannelNotFound or domain.ErrEdgeNotFound on a miss.
	FindEdge(ctx context.Context, channelID, edgeID string) (domain.Edge, error)

	// PutNode inserts or replaces the node with the same id.
	PutNode(ctx context.Context, channelID string, node domain.Node) error

	// PutEdge inserts or replaces the edge with the same id.
	PutEdge(ctx context.Context, channelID string, edge domain.Edge) error

	// DeleteNode removes a single node. Incident edges are left to the caller.
	DeleteNode(ctx context.Context, channelID, nodeID string) error

	// DeleteEdge removes a single edge.
	DeleteEdge(ctx context.Context, channelID, edgeID string) error

	// ReplaceDiagram swaps the whole node and edge set of a channel,
	// creating the channel when it does not exist.
	ReplaceDiagram(ctx context.Context, channel *domain.Channel) error

	// AppendAudit appends a record to the audit trail of record.ChannelID.
	AppendAudit(ctx context.Context, record domain.AuditRecord) error
}

// Tx is a unit of work. Nothing it writes is visible to others until Commit.
// Abort after Commit is a no-op, so callers may always defer Abort.
type Tx interface {
	Repository

	// Commit applies every staged write atomically. A concurrent commit to the
	// same channel makes it fail with domain.ErrTxConflict.
	Commit(ctx context.Context) error

	// Abort discards every staged write.
	Abort(ctx context.Context) error
}

// UnitOfWork starts transactions.
type UnitOfWork interface {
	Begin(ctx context.Context) (Tx, error)
}

// Store is a channel document store with an append-only audit trail.
type Store interface {
	UnitOfWork

	// Load reads the committed state of a channel.
	// Returns domain.ErrChannelNotFound if the channel does not exist.
	Load(ctx context.Context, channelID string) (*domain.Channel, error)

	// List returns the ids of every stored channel.
	List(ctx context.Context) ([]string, error)

	// Audit returns the audit trail of a channel in append order.
	Audit(ctx context.Context, channelID string) ([]domain.AuditRecord, error)

	// Close releases the backend.
	Close() error
}

// ContextErr returns the error of a finished context, translating an expired
// deadline into domain.ErrTxTimeout.
func ContextErr(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrTxTimeout
	}
	return err
}
