package profile

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinika/clinika/internal/domain/identity"
)

type Repository interface {
	// Create persists a new profile. A unique-constraint violation on
	// (kind, clinic_id, global_person_id) is returned as-is so the caller
	// can re-read the winning record.
	Create(ctx context.Context, p *ClinicProfile) error
	GetByID(ctx context.Context, id uuid.UUID) (*ClinicProfile, error)
	GetByClinicAndPerson(ctx context.Context, kind identity.PersonKind, clinicID, globalPersonID uuid.UUID) (*ClinicProfile, error)
	// GetByLegacyRecord finds the profile derived from a legacy doctor or
	// patient row. At most one exists per (kind, legacy record).
	GetByLegacyRecord(ctx context.Context, kind identity.PersonKind, legacyRecordID uuid.UUID) (*ClinicProfile, error)
	Update(ctx context.Context, p *ClinicProfile) error
	ListByClinic(ctx context.Context, kind identity.PersonKind, clinicID uuid.UUID, limit, offset int) ([]*ClinicProfile, int, error)
}

// ClinicDirectory validates clinic references. Implemented by the legacy
// clinic repository.
type ClinicDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
