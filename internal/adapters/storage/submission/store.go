package submission

import (
	"context"

	domain "boulderwall/internal/domain/submission"
)

// Store persists the local submission ledger. The ledger is bookkeeping only:
// a save failure never blocks waiver delivery.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Submission, error)
	Save(ctx context.Context, value domain.Submission) error
	List(ctx context.Context, filter ListFilter) ([]domain.Submission, error)
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	Limit  int
	Offset int
}
