package memory

import (
	"context"
	"fmt"

	"github.com/aretw0/topograph/pkg/domain"
)

// NewFromChannels creates a store pre-populated with the given channels.
// Each channel is committed through a regular transaction, so duplicate ids
// are rejected the same way a bulk save would reject them.
func NewFromChannels(channels ...*domain.Channel) (*Store, error) {
	s := NewStore()
	ctx := context.Background()
	for _, ch := range channels {
		if ch == nil || ch.ID == "" {
			return nil, fmt.Errorf("channel missing ID")
		}
		tx, err := s.Begin(ctx)
		if err != nil {
			return nil, err
		}
		if err := tx.ReplaceDiagram(ctx, ch); err != nil {
			_ = tx.Abort(ctx)
			return nil, fmt.Errorf("failed to seed channel %s: %w", ch.ID, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to seed channel %s: %w", ch.ID, err)
		}
	}
	return s, nil
}
