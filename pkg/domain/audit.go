package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EntityType names the kind of entity an audit record documents.
type EntityType string

const (
	EntityNode EntityType = "node"
	EntityEdge EntityType = "edge"
)

// Action is the mutation an audit record documents.
type Action string

const (
	ActionMove      Action = "move"
	ActionReconnect Action = "reconnect"
	ActionEdit      Action = "edit"
	ActionCreate    Action = "create"
	ActionDelete    Action = "delete"
)

// AuditRecord is an immutable before/after snapshot of a single-entity mutation.
type AuditRecord struct {
	ID         string          `json:"id"`
	EntityType EntityType      `json:"entityType"`
	EntityID   string          `json:"entityId"`
	ChannelID  string          `json:"channelId"`
	Action     Action          `json:"action"`
	Before     json.RawMessage `json:"before"`
	After      json.RawMessage `json:"after"`
	Actor      string          `json:"actor,omitempty"`
	// Timestamp is stamped with the commit time when left zero.
	Timestamp  time.Time       `json:"timestamp"`
}

// Snapshot encodes v for an audit record. A nil value encodes as JSON null.
func Snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage("null"), nil
	}
	return json.Marshal(v)
}

type actorKey struct{}

// WithActor attaches the acting user id to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the acting user id carried by ctx, if any.
func ActorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}
