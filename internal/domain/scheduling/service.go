package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinika/clinika/internal/domain/identity"
	"github.com/clinika/clinika/internal/domain/legacy"
	"github.com/clinika/clinika/internal/domain/profile"
	"github.com/clinika/clinika/internal/platform/apperror"
	"github.com/clinika/clinika/internal/platform/metrics"
	"github.com/clinika/clinika/internal/platform/rollout"
)

// Coordinator is the dual-write path for appointments. The legacy write is
// authoritative and fatal on failure; the federated enrichment that follows
// is best-effort and never fails the caller.
type Coordinator struct {
	appointments Repository
	doctors      DoctorSource
	patients     PatientSource
	resolver     IdentityResolver
	profiles     ProfileManager
	gate         *rollout.Gate
	logger       zerolog.Logger
}

func NewCoordinator(
	appointments Repository,
	doctors DoctorSource,
	patients PatientSource,
	resolver IdentityResolver,
	profiles ProfileManager,
	gate *rollout.Gate,
	logger zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		appointments: appointments,
		doctors:      doctors,
		patients:     patients,
		resolver:     resolver,
		profiles:     profiles,
		gate:         gate,
		logger:       logger,
	}
}

// CreateAppointment persists the appointment with legacy links, then
// attempts federated enrichment. Any enrichment failure is recorded in the
// result and logged, never returned as the error.
func (s *Coordinator) CreateAppointment(ctx context.Context, in CreateAppointmentInput) (*CreateResult, error) {
	doctor, err := s.doctors.GetByID(ctx, in.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	patient, err := s.patients.GetByID(ctx, in.PatientID)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}

	appt := &Appointment{
		ClinicID:  in.ClinicID,
		DoctorID:  in.DoctorID,
		PatientID: in.PatientID,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Status:    StatusScheduled,
		Reason:    in.Reason,
	}
	if err := s.appointments.Create(ctx, appt); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	result := &CreateResult{Appointment: appt}
	result.Enrichment = s.enrich(ctx, appt, doctor, patient, in.ActingLoginAccountID)
	if result.Enrichment.Applied {
		metrics.AppointmentCreated("federated")
	} else {
		metrics.AppointmentCreated("legacy")
	}
	return result, nil
}

// enrich resolves both clinic profiles and commits the federated links.
// The tenant guard runs before the rollout gate: a cross-clinic pairing is
// a data anomaly worth surfacing even while the capability is off.
func (s *Coordinator) enrich(ctx context.Context, appt *Appointment, doctor *legacy.Doctor, patient *legacy.Patient, actingAccount *uuid.UUID) EnrichmentResult {
	if doctor.ClinicID != patient.ClinicID || doctor.ClinicID != appt.ClinicID {
		err := apperror.CrossTenant(fmt.Sprintf(
			"appointment %s links clinic %s doctor with clinic %s patient",
			appt.ID, doctor.ClinicID, patient.ClinicID))
		s.logger.Error().
			Str("appointment_id", appt.ID.String()).
			Str("clinic_id", appt.ClinicID.String()).
			Str("doctor_clinic_id", doctor.ClinicID.String()).
			Str("patient_clinic_id", patient.ClinicID.String()).
			Msg("cross-tenant appointment detected, federated links skipped")
		metrics.CrossTenantViolation()
		metrics.EnrichmentOutcome("failed")
		return EnrichmentResult{Err: err}
	}

	if !s.gate.IsEnabled(rollout.FederatedAppointmentWrite) {
		metrics.EnrichmentOutcome("skipped")
		return EnrichmentResult{}
	}

	links, err := s.resolveLinks(ctx, appt.ClinicID, doctor, patient)
	if err != nil {
		evt := s.logger.Warn().
			Err(err).
			Str("appointment_id", appt.ID.String()).
			Str("clinic_id", appt.ClinicID.String())
		if actingAccount != nil {
			evt = evt.Str("acting_account_id", actingAccount.String())
		}
		evt.Msg("federated enrichment failed, appointment kept on legacy links")
		metrics.EnrichmentOutcome("failed")
		return EnrichmentResult{Err: err}
	}

	if err := s.appointments.SetFederatedLinks(ctx, appt.ID, *links); err != nil {
		s.logger.Warn().
			Err(err).
			Str("appointment_id", appt.ID.String()).
			Msg("failed to commit federated links")
		metrics.EnrichmentOutcome("failed")
		return EnrichmentResult{Err: err}
	}

	appt.ClinicDoctorID = &links.ClinicDoctorID
	appt.ClinicPatientID = &links.ClinicPatientID
	metrics.EnrichmentOutcome("applied")
	return EnrichmentResult{Applied: true, Links: links}
}

// resolveLinks runs the shared find-or-create primitives for both sides of
// the appointment. The doctor resolves through the record's own login
// account, never the caller's: a receptionist booking for a doctor must not
// have their account bound to the doctor's identity. Patients resolve by
// match hints only, walk-ins carry no account.
func (s *Coordinator) resolveLinks(ctx context.Context, clinicID uuid.UUID, doctor *legacy.Doctor, patient *legacy.Patient) (*FederatedLinks, error) {
	clinicDoctor, err := s.clinicProfile(ctx, identity.KindDoctor, clinicID, doctor.ID,
		doctor.LoginAccountID, doctorHints(doctor), doctorProfileData(doctor))
	if err != nil {
		return nil, fmt.Errorf("resolve clinic doctor: %w", err)
	}

	clinicPatient, err := s.clinicProfile(ctx, identity.KindPatient, clinicID, patient.ID,
		nil, patientHints(patient), patientProfileData(patient))
	if err != nil {
		return nil, fmt.Errorf("resolve clinic patient: %w", err)
	}

	if clinicDoctor.ClinicID != clinicPatient.ClinicID || clinicDoctor.ClinicID != clinicID {
		metrics.CrossTenantViolation()
		return nil, apperror.CrossTenant(fmt.Sprintf(
			"resolved profiles span clinics %s and %s", clinicDoctor.ClinicID, clinicPatient.ClinicID))
	}

	return &FederatedLinks{
		ClinicDoctorID:  clinicDoctor.ID,
		ClinicPatientID: clinicPatient.ID,
	}, nil
}

// clinicProfile reuses the profile already derived from the legacy record.
// Only a record that never produced a profile goes through the resolver, so
// repeated writes for a record without contact data stay on one identity.
func (s *Coordinator) clinicProfile(ctx context.Context, kind identity.PersonKind, clinicID, legacyID uuid.UUID, accountID *uuid.UUID, hints identity.MatchHints, data profile.ProfileData) (*profile.ClinicProfile, error) {
	prof, err := s.profiles.FindByLegacyRecord(ctx, kind, legacyID)
	if err == nil {
		return prof, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	person, err := s.resolver.ResolveOrCreate(ctx, kind, accountID, hints)
	if err != nil {
		return nil, err
	}
	prof, _, err = s.profiles.FindOrCreate(ctx, kind, clinicID, person.ID, data)
	return prof, err
}

// FindAppointments reads through whichever shape the rollout gate selects.
// Both shapes return the identical view contract.
func (s *Coordinator) FindAppointments(ctx context.Context, clinicID uuid.UUID, q Query, limit, offset int) ([]*AppointmentView, int, error) {
	if s.gate.IsEnabled(rollout.FederatedAppointmentRead) {
		return s.appointments.ListFederatedViews(ctx, clinicID, q, limit, offset)
	}
	return s.appointments.ListLegacyViews(ctx, clinicID, q, limit, offset)
}

// GetAppointment returns the raw appointment row, links included.
func (s *Coordinator) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func doctorHints(d *legacy.Doctor) identity.MatchHints {
	return identity.MatchHints{
		Phone:     deref(d.Phone),
		Email:     deref(d.Email),
		BirthDate: d.BirthDate,
	}
}

func patientHints(p *legacy.Patient) identity.MatchHints {
	return identity.MatchHints{
		Phone:     deref(p.Phone),
		Email:     deref(p.Email),
		BirthDate: p.BirthDate,
	}
}

func doctorProfileData(d *legacy.Doctor) profile.ProfileData {
	return profile.ProfileData{
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		Specialization: d.Specialization,
		Phone:          d.Phone,
		Email:          d.Email,
		BirthDate:      d.BirthDate,
		LegacyRecordID: &d.ID,
	}
}

func patientProfileData(p *legacy.Patient) profile.ProfileData {
	return profile.ProfileData{
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Phone:          p.Phone,
		Email:          p.Email,
		BirthDate:      p.BirthDate,
		Notes:          p.Notes,
		LegacyRecordID: &p.ID,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
