package identity

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create persists a new GlobalPerson. A unique-constraint violation on
	// (kind, login_account_id) is returned as-is so the caller can re-read
	// the winning record.
	Create(ctx context.Context, p *GlobalPerson) error
	GetByID(ctx context.Context, id uuid.UUID) (*GlobalPerson, error)
	GetByLoginAccount(ctx context.Context, kind PersonKind, loginAccountID uuid.UUID) (*GlobalPerson, error)
	// ListCandidates returns every clinic profile of the given kind as a
	// matching candidate, ordered by profile creation time ascending.
	ListCandidates(ctx context.Context, kind PersonKind) ([]Candidate, error)
}

// AccountDirectory answers whether a login account exists. Implemented by
// the legacy login_account repository.
type AccountDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
