package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinika/clinika/internal/domain/identity"
	"github.com/clinika/clinika/internal/platform/apperror"
	"github.com/clinika/clinika/internal/platform/db"
)

// Manager owns the find-or-create lifecycle of clinic profiles.
type Manager struct {
	profiles Repository
	clinics  ClinicDirectory
	logger   zerolog.Logger
}

func NewManager(profiles Repository, clinics ClinicDirectory, logger zerolog.Logger) *Manager {
	return &Manager{profiles: profiles, clinics: clinics, logger: logger}
}

// FindOrCreate returns the profile of the given person at the given clinic,
// creating it when absent. When the profile already exists, data is merged
// non-destructively into it. The boolean reports whether a new row was
// created. Calling it repeatedly with the same inputs is a no-op after the
// first call.
func (m *Manager) FindOrCreate(ctx context.Context, kind identity.PersonKind, clinicID, globalPersonID uuid.UUID, data ProfileData) (*ClinicProfile, bool, error) {
	ok, err := m.clinics.Exists(ctx, clinicID)
	if err != nil {
		return nil, false, apperror.Transient(fmt.Errorf("check clinic: %w", err))
	}
	if !ok {
		return nil, false, apperror.InvalidClinic(clinicID.String())
	}

	existing, err := m.profiles.GetByClinicAndPerson(ctx, kind, clinicID, globalPersonID)
	if err == nil {
		return m.mergeExisting(ctx, existing, data)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup profile: %w", err)
	}

	p := &ClinicProfile{
		Kind:           kind,
		ClinicID:       clinicID,
		GlobalPersonID: globalPersonID,
		LegacyRecordID: data.LegacyRecordID,
		FirstName:      data.FirstName,
		LastName:       data.LastName,
		Specialization: data.Specialization,
		Phone:          data.Phone,
		Email:          data.Email,
		BirthDate:      data.BirthDate,
		Notes:          data.Notes,
		Status:         StatusActive,
	}
	err = m.profiles.Create(ctx, p)
	if err == nil {
		return p, true, nil
	}

	// Lost a creation race, either on (kind, clinic_id, global_person_id)
	// or on the legacy record link. Re-read the winner and merge into it.
	if db.IsUniqueViolation(err) {
		winner, rerr := m.profiles.GetByClinicAndPerson(ctx, kind, clinicID, globalPersonID)
		if errors.Is(rerr, apperror.ErrNotFound) && data.LegacyRecordID != nil {
			winner, rerr = m.profiles.GetByLegacyRecord(ctx, kind, *data.LegacyRecordID)
		}
		if rerr != nil {
			return nil, false, fmt.Errorf("re-read profile after race: %w", rerr)
		}
		return m.mergeExisting(ctx, winner, data)
	}
	return nil, false, fmt.Errorf("create profile: %w", err)
}

// FindByLegacyRecord returns the profile derived from a legacy record, if
// one exists. Callers check it before resolving an identity so records that
// carry no matchable contact data still converge on their first profile.
func (m *Manager) FindByLegacyRecord(ctx context.Context, kind identity.PersonKind, legacyRecordID uuid.UUID) (*ClinicProfile, error) {
	return m.profiles.GetByLegacyRecord(ctx, kind, legacyRecordID)
}

// Get returns a profile by ID.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*ClinicProfile, error) {
	return m.profiles.GetByID(ctx, id)
}

// ListByClinic pages through profiles of one kind at one clinic.
func (m *Manager) ListByClinic(ctx context.Context, kind identity.PersonKind, clinicID uuid.UUID, limit, offset int) ([]*ClinicProfile, int, error) {
	ok, err := m.clinics.Exists(ctx, clinicID)
	if err != nil {
		return nil, 0, apperror.Transient(fmt.Errorf("check clinic: %w", err))
	}
	if !ok {
		return nil, 0, apperror.InvalidClinic(clinicID.String())
	}
	return m.profiles.ListByClinic(ctx, kind, clinicID, limit, offset)
}

func (m *Manager) mergeExisting(ctx context.Context, p *ClinicProfile, data ProfileData) (*ClinicProfile, bool, error) {
	if !p.merge(data) {
		return p, false, nil
	}
	if err := m.profiles.Update(ctx, p); err != nil {
		return nil, false, fmt.Errorf("merge profile: %w", err)
	}
	m.logger.Debug().
		Str("profile_id", p.ID.String()).
		Str("clinic_id", p.ClinicID.String()).
		Msg("merged fields into existing clinic profile")
	return p, false, nil
}
