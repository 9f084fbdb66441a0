package outbox

import (
	"context"

	domain "boulderwall/internal/domain/outbox"
)

// Store defines the interface for outbox entry persistence.
type Store interface {
	// GetByID retrieves an outbox entry by its ID.
	GetByID(ctx context.Context, id string) (domain.Entry, error)

	// Save persists an outbox entry (insert or update).
	Save(ctx context.Context, e domain.Entry) error

	// ListPending returns entries awaiting delivery (pending or retrying),
	// oldest first, up to limit.
	ListPending(ctx context.Context, limit int) ([]domain.Entry, error)

	// Delete removes an outbox entry.
	Delete(ctx context.Context, id string) error
}
