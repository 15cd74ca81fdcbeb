// Package scheduling owns appointments and the dual-write path that keeps
// the legacy direct links authoritative while best-effort populating the
// federated clinic-profile links alongside them.
package scheduling

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Appointment maps to the appointment table. The legacy references
// (DoctorID, PatientID) are always present; the federated references
// (ClinicDoctorID, ClinicPatientID) are filled by enrichment or backfill
// and may lag behind.
type Appointment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	ClinicID        uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	DoctorID        uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	ClinicDoctorID  *uuid.UUID `db:"clinic_doctor_id" json:"clinic_doctor_id,omitempty"`
	ClinicPatientID *uuid.UUID `db:"clinic_patient_id" json:"clinic_patient_id,omitempty"`
	StartTime       time.Time  `db:"start_time" json:"start_time"`
	EndTime         time.Time  `db:"end_time" json:"end_time"`
	Status          string     `db:"status" json:"status"`
	Reason          *string    `db:"reason" json:"reason,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Linked reports whether both federated references are populated.
func (a *Appointment) Linked() bool {
	return a.ClinicDoctorID != nil && a.ClinicPatientID != nil
}

// FederatedLinks is the pair of clinic-profile references committed to an
// appointment by enrichment or backfill.
type FederatedLinks struct {
	ClinicDoctorID  uuid.UUID `json:"clinic_doctor_id"`
	ClinicPatientID uuid.UUID `json:"clinic_patient_id"`
}

// CreateAppointmentInput is the write request handled by the coordinator.
// ActingLoginAccountID identifies the caller for enrichment-failure logs.
// It never feeds identity resolution: the caller may be front-desk staff
// booking on a doctor's behalf, not the doctor.
type CreateAppointmentInput struct {
	ClinicID             uuid.UUID
	DoctorID             uuid.UUID
	PatientID            uuid.UUID
	ActingLoginAccountID *uuid.UUID
	StartTime            time.Time
	EndTime              time.Time
	Reason               *string
}

// EnrichmentResult reports the outcome of the best-effort federated phase.
// Err is informational only; it is never surfaced to the write's caller.
type EnrichmentResult struct {
	Applied bool            `json:"applied"`
	Links   *FederatedLinks `json:"links,omitempty"`
	Err     error           `json:"-"`
}

// CreateResult is the two-phase outcome of CreateAppointment: the
// authoritative legacy write plus whatever the enrichment phase achieved.
type CreateResult struct {
	Appointment *Appointment     `json:"appointment"`
	Enrichment  EnrichmentResult `json:"enrichment"`
}

// Query filters appointment reads.
type Query struct {
	From   *time.Time
	To     *time.Time
	Status string
}

// AppointmentView is the read contract. Both read shapes produce it with
// identical field semantics, so callers cannot tell which shape served them.
type AppointmentView struct {
	ID               uuid.UUID  `json:"id"`
	ClinicID         uuid.UUID  `json:"clinic_id"`
	DoctorFirstName  string     `json:"doctor_first_name"`
	DoctorLastName   string     `json:"doctor_last_name"`
	PatientFirstName string     `json:"patient_first_name"`
	PatientLastName  string     `json:"patient_last_name"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          time.Time  `json:"end_time"`
	Status           string     `json:"status"`
	Reason           *string    `json:"reason,omitempty"`
}
