package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinika/clinika/internal/domain/identity"
	"github.com/clinika/clinika/internal/domain/legacy"
	"github.com/clinika/clinika/internal/domain/profile"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// SetFederatedLinks commits both federated references at once. It is the
	// only way links are written; partial link states never exist.
	SetFederatedLinks(ctx context.Context, id uuid.UUID, links FederatedLinks) error
	// ListUnlinked returns every appointment still missing federated links,
	// ordered by creation time ascending. Used by the backfill.
	ListUnlinked(ctx context.Context) ([]*Appointment, error)
	ListLegacyViews(ctx context.Context, clinicID uuid.UUID, q Query, limit, offset int) ([]*AppointmentView, int, error)
	ListFederatedViews(ctx context.Context, clinicID uuid.UUID, q Query, limit, offset int) ([]*AppointmentView, int, error)
}

// DoctorSource and PatientSource are the slices of the legacy repositories
// the coordinator needs. Satisfied by legacy.DoctorRepository and
// legacy.PatientRepository.
type DoctorSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*legacy.Doctor, error)
}

type PatientSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*legacy.Patient, error)
}

// IdentityResolver is the slice of identity.Resolver used by enrichment.
type IdentityResolver interface {
	ResolveOrCreate(ctx context.Context, kind identity.PersonKind, loginAccountID *uuid.UUID, hints identity.MatchHints) (*identity.GlobalPerson, error)
}

// ProfileManager is the slice of profile.Manager used by enrichment. The
// legacy record lookup runs before identity resolution so a record that
// already produced a profile is never resolved again.
type ProfileManager interface {
	FindOrCreate(ctx context.Context, kind identity.PersonKind, clinicID, globalPersonID uuid.UUID, data profile.ProfileData) (*profile.ClinicProfile, bool, error)
	FindByLegacyRecord(ctx context.Context, kind identity.PersonKind, legacyRecordID uuid.UUID) (*profile.ClinicProfile, error)
}
