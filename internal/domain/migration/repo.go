package migration

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinika/clinika/internal/domain/identity"
	"github.com/clinika/clinika/internal/domain/legacy"
	"github.com/clinika/clinika/internal/domain/profile"
	"github.com/clinika/clinika/internal/domain/scheduling"
)

type LedgerRepository interface {
	Record(ctx context.Context, e *LedgerEntry) error
	ListByRun(ctx context.Context, runID uuid.UUID) ([]*LedgerEntry, error)
}

// DoctorSource and PatientSource are the slices of the legacy repositories
// the migrator scans.
type DoctorSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*legacy.Doctor, error)
	ListAll(ctx context.Context) ([]*legacy.Doctor, error)
}

type PatientSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*legacy.Patient, error)
	ListAll(ctx context.Context) ([]*legacy.Patient, error)
}

// AppointmentSource is the slice of the scheduling repository the
// appointments stage needs.
type AppointmentSource interface {
	ListUnlinked(ctx context.Context) ([]*scheduling.Appointment, error)
	SetFederatedLinks(ctx context.Context, id uuid.UUID, links scheduling.FederatedLinks) error
}

// IdentityResolver and ProfileManager are the same find-or-create
// primitives the live dual-write path uses, so both paths share matching
// semantics.
type IdentityResolver interface {
	ResolveOrCreate(ctx context.Context, kind identity.PersonKind, loginAccountID *uuid.UUID, hints identity.MatchHints) (*identity.GlobalPerson, error)
}

type ProfileManager interface {
	FindOrCreate(ctx context.Context, kind identity.PersonKind, clinicID, globalPersonID uuid.UUID, data profile.ProfileData) (*profile.ClinicProfile, bool, error)
	// FindByLegacyRecord is checked before resolving: a legacy record that
	// already produced a profile is never resolved a second time, which is
	// what keeps re-runs from minting new identities for records without
	// phone, email or login account.
	FindByLegacyRecord(ctx context.Context, kind identity.PersonKind, legacyRecordID uuid.UUID) (*profile.ClinicProfile, error)
}
