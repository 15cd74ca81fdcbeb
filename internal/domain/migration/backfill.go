package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinika/clinika/internal/domain/identity"
	"github.com/clinika/clinika/internal/domain/legacy"
	"github.com/clinika/clinika/internal/domain/profile"
	"github.com/clinika/clinika/internal/domain/scheduling"
	"github.com/clinika/clinika/internal/platform/apperror"
	"github.com/clinika/clinika/internal/platform/metrics"
)

// Migrator backfills the federated shape from pre-existing legacy records.
// It is safe to re-run at any point and safe to run concurrently with live
// dual-write traffic: every write goes through the same unique-constraint
// backed find-or-create primitives, and each legacy record is checked
// against its profile link before being resolved, so repeated or racing
// runs converge on the same rows even for records that carry no phone,
// email or login account.
type Migrator struct {
	doctors      DoctorSource
	patients     PatientSource
	appointments AppointmentSource
	resolver     IdentityResolver
	profiles     ProfileManager
	ledger       LedgerRepository
	logger       zerolog.Logger
}

func NewMigrator(
	doctors DoctorSource,
	patients PatientSource,
	appointments AppointmentSource,
	resolver IdentityResolver,
	profiles ProfileManager,
	ledger LedgerRepository,
	logger zerolog.Logger,
) *Migrator {
	return &Migrator{
		doctors:      doctors,
		patients:     patients,
		appointments: appointments,
		resolver:     resolver,
		profiles:     profiles,
		ledger:       ledger,
		logger:       logger,
	}
}

// Run executes the three stages in dependency order. Per-record failures
// are logged, counted and recorded in the ledger; they never abort the run.
// Only a failure to list a stage's input aborts.
func (m *Migrator) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{RunID: uuid.New(), StartedAt: time.Now().UTC()}
	m.logger.Info().Str("run_id", summary.RunID.String()).Msg("backfill run started")

	var err error
	if summary.Doctors, err = m.migrateDoctors(ctx, summary.RunID); err != nil {
		return nil, fmt.Errorf("doctors stage: %w", err)
	}
	if summary.Patients, err = m.migratePatients(ctx, summary.RunID); err != nil {
		return nil, fmt.Errorf("patients stage: %w", err)
	}
	if summary.Appointments, err = m.migrateAppointments(ctx, summary.RunID); err != nil {
		return nil, fmt.Errorf("appointments stage: %w", err)
	}

	summary.FinishedAt = time.Now().UTC()
	m.logger.Info().
		Str("run_id", summary.RunID.String()).
		Interface("doctors", summary.Doctors).
		Interface("patients", summary.Patients).
		Interface("appointments", summary.Appointments).
		Msg("backfill run finished")
	return summary, nil
}

func (m *Migrator) migrateDoctors(ctx context.Context, runID uuid.UUID) (StageReport, error) {
	var report StageReport
	doctors, err := m.doctors.ListAll(ctx)
	if err != nil {
		return report, err
	}

	for _, d := range doctors {
		outcome, reason := m.migrateDoctor(ctx, d)
		report.count(outcome)
		m.record(ctx, runID, StageDoctors, d.ID, outcome, reason)
	}
	return report, nil
}

func (m *Migrator) migrateDoctor(ctx context.Context, d *legacy.Doctor) (string, string) {
	_, err := m.profiles.FindByLegacyRecord(ctx, identity.KindDoctor, d.ID)
	if err == nil {
		return OutcomeSkipped, "already migrated"
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		m.logger.Error().Err(err).Str("doctor_id", d.ID.String()).Msg("doctor profile lookup failed")
		return OutcomeErrored, err.Error()
	}

	person, err := m.resolver.ResolveOrCreate(ctx, identity.KindDoctor, d.LoginAccountID, doctorHints(d))
	if err != nil {
		m.logger.Error().Err(err).Str("doctor_id", d.ID.String()).Msg("doctor identity resolution failed")
		return OutcomeErrored, err.Error()
	}
	_, created, err := m.profiles.FindOrCreate(ctx, identity.KindDoctor, d.ClinicID, person.ID, doctorProfileData(d))
	if err != nil {
		m.logger.Error().Err(err).Str("doctor_id", d.ID.String()).Msg("clinic doctor creation failed")
		return OutcomeErrored, err.Error()
	}
	if !created {
		return OutcomeSkipped, "profile already exists"
	}
	return OutcomeMigrated, ""
}

// migratePatients groups legacy records by normalized phone, falling back
// to email, falling back to the record's own id, so records for the same
// person across clinics converge on one global identity.
func (m *Migrator) migratePatients(ctx context.Context, runID uuid.UUID) (StageReport, error) {
	var report StageReport
	patients, err := m.patients.ListAll(ctx)
	if err != nil {
		return report, err
	}

	var keys []string
	groups := map[string][]*legacy.Patient{}
	for _, p := range patients {
		k := patientGroupKey(p)
		if _, seen := groups[k]; !seen {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], p)
	}

	for _, k := range keys {
		group := groups[k]
		personID, err := m.patientGroupPerson(ctx, group)
		if err != nil {
			m.logger.Error().Err(err).Str("group_key", k).Msg("patient identity resolution failed")
			for _, p := range group {
				report.count(OutcomeErrored)
				m.record(ctx, runID, StagePatients, p.ID, OutcomeErrored, err.Error())
			}
			continue
		}

		for _, p := range group {
			_, created, err := m.profiles.FindOrCreate(ctx, identity.KindPatient, p.ClinicID, personID, patientProfileData(p))
			switch {
			case err != nil:
				m.logger.Error().Err(err).Str("patient_id", p.ID.String()).Msg("clinic patient creation failed")
				report.count(OutcomeErrored)
				m.record(ctx, runID, StagePatients, p.ID, OutcomeErrored, err.Error())
			case created:
				report.count(OutcomeMigrated)
				m.record(ctx, runID, StagePatients, p.ID, OutcomeMigrated, "")
			default:
				report.count(OutcomeSkipped)
				m.record(ctx, runID, StagePatients, p.ID, OutcomeSkipped, "profile already exists")
			}
		}
	}
	return report, nil
}

// patientGroupPerson returns the global identity of a patient group. A
// member that already carries a profile link pins the identity for the
// whole group; only never-seen groups go through the resolver.
func (m *Migrator) patientGroupPerson(ctx context.Context, group []*legacy.Patient) (uuid.UUID, error) {
	for _, p := range group {
		prof, err := m.profiles.FindByLegacyRecord(ctx, identity.KindPatient, p.ID)
		if err == nil {
			return prof.GlobalPersonID, nil
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return uuid.Nil, err
		}
	}
	person, err := m.resolver.ResolveOrCreate(ctx, identity.KindPatient, nil, patientHints(group[0]))
	if err != nil {
		return uuid.Nil, err
	}
	return person.ID, nil
}

func (m *Migrator) migrateAppointments(ctx context.Context, runID uuid.UUID) (StageReport, error) {
	var report StageReport
	appts, err := m.appointments.ListUnlinked(ctx)
	if err != nil {
		return report, err
	}

	for _, a := range appts {
		outcome, reason := m.linkAppointment(ctx, a)
		report.count(outcome)
		m.record(ctx, runID, StageAppointments, a.ID, outcome, reason)
	}
	return report, nil
}

func (m *Migrator) linkAppointment(ctx context.Context, a *scheduling.Appointment) (string, string) {
	doctor, err := m.doctors.GetByID(ctx, a.DoctorID)
	if err != nil {
		m.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("legacy doctor unresolved, appointment skipped")
		return OutcomeSkipped, fmt.Sprintf("doctor unresolved: %v", err)
	}
	patient, err := m.patients.GetByID(ctx, a.PatientID)
	if err != nil {
		m.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("legacy patient unresolved, appointment skipped")
		return OutcomeSkipped, fmt.Sprintf("patient unresolved: %v", err)
	}

	if doctor.ClinicID != patient.ClinicID || doctor.ClinicID != a.ClinicID {
		m.logger.Error().
			Str("appointment_id", a.ID.String()).
			Str("clinic_id", a.ClinicID.String()).
			Str("doctor_clinic_id", doctor.ClinicID.String()).
			Str("patient_clinic_id", patient.ClinicID.String()).
			Msg("cross-tenant appointment detected, skipped")
		metrics.CrossTenantViolation()
		return OutcomeSkipped, "cross-tenant clinic mismatch"
	}

	clinicDoctor, err := m.linkedProfile(ctx, identity.KindDoctor, a.ClinicID, doctor.ID,
		doctor.LoginAccountID, doctorHints(doctor), doctorProfileData(doctor))
	if err != nil {
		return OutcomeErrored, err.Error()
	}

	clinicPatient, err := m.linkedProfile(ctx, identity.KindPatient, a.ClinicID, patient.ID,
		nil, patientHints(patient), patientProfileData(patient))
	if err != nil {
		return OutcomeErrored, err.Error()
	}

	links := scheduling.FederatedLinks{
		ClinicDoctorID:  clinicDoctor.ID,
		ClinicPatientID: clinicPatient.ID,
	}
	if err := m.appointments.SetFederatedLinks(ctx, a.ID, links); err != nil {
		return OutcomeErrored, err.Error()
	}
	return OutcomeMigrated, ""
}

// linkedProfile reuses the profile already derived from the legacy record,
// resolving and creating one only for records the earlier stages never saw.
func (m *Migrator) linkedProfile(ctx context.Context, kind identity.PersonKind, clinicID, legacyID uuid.UUID, accountID *uuid.UUID, hints identity.MatchHints, data profile.ProfileData) (*profile.ClinicProfile, error) {
	prof, err := m.profiles.FindByLegacyRecord(ctx, kind, legacyID)
	if err == nil {
		return prof, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	person, err := m.resolver.ResolveOrCreate(ctx, kind, accountID, hints)
	if err != nil {
		return nil, err
	}
	prof, _, err = m.profiles.FindOrCreate(ctx, kind, clinicID, person.ID, data)
	return prof, err
}

// record writes a ledger row. Ledger failures are logged and swallowed so
// bookkeeping never blocks the migration itself.
func (m *Migrator) record(ctx context.Context, runID uuid.UUID, stage string, recordID uuid.UUID, outcome, reason string) {
	metrics.BackfillRecord(stage, outcome)

	e := &LedgerEntry{RunID: runID, Stage: stage, RecordID: recordID, Outcome: outcome}
	if reason != "" {
		e.Reason = &reason
	}
	if err := m.ledger.Record(ctx, e); err != nil {
		m.logger.Warn().Err(err).
			Str("stage", stage).
			Str("record_id", recordID.String()).
			Msg("failed to write migration ledger entry")
	}
}

func patientGroupKey(p *legacy.Patient) string {
	if p.Phone != nil {
		if phone := identity.NormalizePhone(*p.Phone); phone != "" {
			return "phone:" + phone
		}
	}
	if p.Email != nil {
		if email := identity.NormalizeEmail(*p.Email); email != "" {
			return "email:" + email
		}
	}
	return "id:" + p.ID.String()
}

func doctorHints(d *legacy.Doctor) identity.MatchHints {
	return identity.MatchHints{Phone: deref(d.Phone), Email: deref(d.Email), BirthDate: d.BirthDate}
}

func patientHints(p *legacy.Patient) identity.MatchHints {
	return identity.MatchHints{Phone: deref(p.Phone), Email: deref(p.Email), BirthDate: p.BirthDate}
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
