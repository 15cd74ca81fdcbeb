// Package registration is the thin onboarding flow: it creates the legacy
// record, then runs the same identity resolution and profile creation the
// rest of the system uses. The legacy write is authoritative; the federated
// half is best-effort, matching the dual-write policy. The created profile
// is bound to the new legacy record so later enrichment and backfill passes
// find it without resolving again.
package registration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinika/clinika/internal/domain/identity"
	"github.com/clinika/clinika/internal/domain/legacy"
	"github.com/clinika/clinika/internal/domain/profile"
	"github.com/clinika/clinika/internal/platform/rollout"
)

type DoctorWriter interface {
	Create(ctx context.Context, d *legacy.Doctor) error
}

type PatientWriter interface {
	Create(ctx context.Context, p *legacy.Patient) error
}

type IdentityResolver interface {
	ResolveOrCreate(ctx context.Context, kind identity.PersonKind, loginAccountID *uuid.UUID, hints identity.MatchHints) (*identity.GlobalPerson, error)
}

type ProfileManager interface {
	FindOrCreate(ctx context.Context, kind identity.PersonKind, clinicID, globalPersonID uuid.UUID, data profile.ProfileData) (*profile.ClinicProfile, bool, error)
}

type Service struct {
	doctors  DoctorWriter
	patients PatientWriter
	resolver IdentityResolver
	profiles ProfileManager
	gate     *rollout.Gate
	logger   zerolog.Logger
}

func NewService(doctors DoctorWriter, patients PatientWriter, resolver IdentityResolver, profiles ProfileManager, gate *rollout.Gate, logger zerolog.Logger) *Service {
	return &Service{doctors: doctors, patients: patients, resolver: resolver, profiles: profiles, gate: gate, logger: logger}
}

type RegisterDoctorInput struct {
	ClinicID       uuid.UUID
	LoginAccountID *uuid.UUID
	FirstName      string
	LastName       string
	Specialization *string
	Phone          *string
	Email          *string
	BirthDate      *time.Time
}

type RegisterPatientInput struct {
	ClinicID  uuid.UUID
	FirstName string
	LastName  string
	Phone     *string
	Email     *string
	BirthDate *time.Time
	Notes     *string
}

// Result pairs the authoritative legacy record's id with whatever the
// federated half produced. GlobalPersonID and ProfileID are nil when
// federation failed; the registration itself still succeeded.
type Result struct {
	RecordID       uuid.UUID  `json:"record_id"`
	GlobalPersonID *uuid.UUID `json:"global_person_id,omitempty"`
	ProfileID      *uuid.UUID `json:"profile_id,omitempty"`
}

func (s *Service) RegisterDoctor(ctx context.Context, in RegisterDoctorInput) (*Result, error) {
	d := &legacy.Doctor{
		ClinicID:       in.ClinicID,
		LoginAccountID: in.LoginAccountID,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Specialization: in.Specialization,
		Phone:          in.Phone,
		Email:          in.Email,
		BirthDate:      in.BirthDate,
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create doctor: %w", err)
	}

	result := &Result{RecordID: d.ID}
	if !s.gate.IsEnabled(rollout.FederatedDoctorLookup) {
		return result, nil
	}
	hints := identity.MatchHints{Phone: deref(in.Phone), Email: deref(in.Email), BirthDate: in.BirthDate}
	data := profile.ProfileData{
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Specialization: in.Specialization,
		Phone:          in.Phone,
		Email:          in.Email,
		BirthDate:      in.BirthDate,
		LegacyRecordID: &d.ID,
	}
	s.federate(ctx, identity.KindDoctor, in.ClinicID, in.LoginAccountID, hints, data, result)
	return result, nil
}

func (s *Service) RegisterPatient(ctx context.Context, in RegisterPatientInput) (*Result, error) {
	p := &legacy.Patient{
		ClinicID:  in.ClinicID,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Email:     in.Email,
		BirthDate: in.BirthDate,
		Notes:     in.Notes,
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}

	result := &Result{RecordID: p.ID}
	hints := identity.MatchHints{Phone: deref(in.Phone), Email: deref(in.Email), BirthDate: in.BirthDate}
	data := profile.ProfileData{
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Phone:          in.Phone,
		Email:          in.Email,
		BirthDate:      in.BirthDate,
		Notes:          in.Notes,
		LegacyRecordID: &p.ID,
	}
	s.federate(ctx, identity.KindPatient, in.ClinicID, nil, hints, data, result)
	return result, nil
}

func (s *Service) federate(ctx context.Context, kind identity.PersonKind, clinicID uuid.UUID, loginAccountID *uuid.UUID, hints identity.MatchHints, data profile.ProfileData, result *Result) {
	person, err := s.resolver.ResolveOrCreate(ctx, kind, loginAccountID, hints)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("kind", string(kind)).
			Str("clinic_id", clinicID.String()).
			Str("record_id", result.RecordID.String()).
			Msg("identity resolution failed during registration")
		return
	}
	result.GlobalPersonID = &person.ID

	prof, _, err := s.profiles.FindOrCreate(ctx, kind, clinicID, person.ID, data)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("kind", string(kind)).
			Str("clinic_id", clinicID.String()).
			Str("record_id", result.RecordID.String()).
			Msg("profile creation failed during registration")
		return
	}
	result.ProfileID = &prof.ID
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
