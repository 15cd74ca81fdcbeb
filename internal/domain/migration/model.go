// Package migration holds the batch side of the staged rollout: the
// backfill that walks pre-existing legacy records into the federated shape,
// the ledger that records per-record outcomes, and the read-only auditor
// that compares the two shapes for divergence.
package migration

import (
	"time"

	"github.com/google/uuid"
)

const (
	StageDoctors      = "doctors"
	StagePatients     = "patients"
	StageAppointments = "appointments"
)

const (
	OutcomeMigrated = "migrated"
	OutcomeSkipped  = "skipped"
	OutcomeErrored  = "errored"
)

// LedgerEntry maps to the migration_ledger table: one row per record
// processed by a backfill run. Written only by the migrator.
type LedgerEntry struct {
	ID        uuid.UUID `db:"id" json:"id"`
	RunID     uuid.UUID `db:"run_id" json:"run_id"`
	Stage     string    `db:"stage" json:"stage"`
	RecordID  uuid.UUID `db:"record_id" json:"record_id"`
	Outcome   string    `db:"outcome" json:"outcome"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// StageReport aggregates outcomes for one backfill stage.
type StageReport struct {
	Migrated int `json:"migrated"`
	Skipped  int `json:"skipped"`
	Errored  int `json:"errored"`
}

func (r *StageReport) count(outcome string) {
	switch outcome {
	case OutcomeMigrated:
		r.Migrated++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeErrored:
		r.Errored++
	}
}

// Summary is the machine-readable result of one backfill run.
type Summary struct {
	RunID        uuid.UUID   `json:"run_id"`
	Doctors      StageReport `json:"doctors"`
	Patients     StageReport `json:"patients"`
	Appointments StageReport `json:"appointments"`
	StartedAt    time.Time   `json:"started_at"`
	FinishedAt   time.Time   `json:"finished_at"`
}

// HasErrors reports whether any stage recorded a per-record failure.
func (s *Summary) HasErrors() bool {
	return s.Doctors.Errored > 0 || s.Patients.Errored > 0 || s.Appointments.Errored > 0
}

// TenantViolation is an appointment whose federated links span clinics.
type TenantViolation struct {
	AppointmentID       uuid.UUID `json:"appointment_id"`
	AppointmentClinicID uuid.UUID `json:"appointment_clinic_id"`
	DoctorClinicID      uuid.UUID `json:"doctor_clinic_id"`
	PatientClinicID     uuid.UUID `json:"patient_clinic_id"`
}

// FieldDivergence is a sampled field whose legacy and federated values
// disagree.
type FieldDivergence struct {
	RecordID  uuid.UUID `json:"record_id"`
	ProfileID uuid.UUID `json:"profile_id"`
	Field     string    `json:"field"`
	Legacy    string    `json:"legacy"`
	Federated string    `json:"federated"`
}

// Report is the auditor's read-only comparison of the two shapes.
type Report struct {
	ClinicID          *uuid.UUID        `json:"clinic_id,omitempty"`
	UnmatchedDoctors  []uuid.UUID       `json:"unmatched_doctors"`
	UnmatchedPatients []uuid.UUID       `json:"unmatched_patients"`
	TenantViolations  []TenantViolation `json:"tenant_violations"`
	Divergences       []FieldDivergence `json:"divergences"`
	GeneratedAt       time.Time         `json:"generated_at"`
}

// Clean reports whether the audit found nothing to flag.
func (r *Report) Clean() bool {
	return len(r.UnmatchedDoctors) == 0 && len(r.UnmatchedPatients) == 0 &&
		len(r.TenantViolations) == 0 && len(r.Divergences) == 0
}
