// Package profile manages clinic-scoped profiles: the per-clinic record of
// a person identified by a GlobalPerson. A person has at most one profile
// per clinic, enforced by a unique constraint on (kind, clinic_id,
// global_person_id).
package profile

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinika/clinika/internal/domain/identity"
)

const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// ClinicProfile maps to the clinic_profile table. Profiles are never
// deleted; they are soft-disabled through Status. LegacyRecordID points at
// the legacy doctor or patient row the profile was derived from; it is what
// lets records with no phone, email or login account resolve to the same
// profile on every pass instead of minting a new identity each time.
type ClinicProfile struct {
	ID             uuid.UUID           `db:"id" json:"id"`
	Kind           identity.PersonKind `db:"kind" json:"kind"`
	ClinicID       uuid.UUID           `db:"clinic_id" json:"clinic_id"`
	GlobalPersonID uuid.UUID           `db:"global_person_id" json:"global_person_id"`
	LegacyRecordID *uuid.UUID          `db:"legacy_record_id" json:"legacy_record_id,omitempty"`
	FirstName      string              `db:"first_name" json:"first_name"`
	LastName       string              `db:"last_name" json:"last_name"`
	Specialization *string             `db:"specialization" json:"specialization,omitempty"`
	Phone          *string             `db:"phone" json:"phone,omitempty"`
	Email          *string             `db:"email" json:"email,omitempty"`
	BirthDate      *time.Time          `db:"birth_date" json:"birth_date,omitempty"`
	Notes          *string             `db:"notes" json:"notes,omitempty"`
	Status         string              `db:"status" json:"status"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at" json:"updated_at"`
}

// ProfileData carries the clinic-specific fields supplied at creation or
// merged into an existing profile.
type ProfileData struct {
	FirstName      string
	LastName       string
	Specialization *string
	Phone          *string
	Email          *string
	BirthDate      *time.Time
	Notes          *string
	LegacyRecordID *uuid.UUID
}

// merge applies data non-destructively: a non-empty input value replaces
// the stored one, an empty input never clears a stored value. Reports
// whether anything changed.
func (p *ClinicProfile) merge(data ProfileData) bool {
	changed := false
	if data.FirstName != "" && data.FirstName != p.FirstName {
		p.FirstName = data.FirstName
		changed = true
	}
	if data.LastName != "" && data.LastName != p.LastName {
		p.LastName = data.LastName
		changed = true
	}
	if mergeStr(&p.Specialization, data.Specialization) {
		changed = true
	}
	if mergeStr(&p.Phone, data.Phone) {
		changed = true
	}
	if mergeStr(&p.Email, data.Email) {
		changed = true
	}
	if mergeStr(&p.Notes, data.Notes) {
		changed = true
	}
	if data.BirthDate != nil && (p.BirthDate == nil || !p.BirthDate.Equal(*data.BirthDate)) {
		p.BirthDate = data.BirthDate
		changed = true
	}
	// The legacy link is fill-once: a profile stays bound to the first
	// legacy record that produced it, even when a later duplicate record
	// converges onto the same profile.
	if data.LegacyRecordID != nil && p.LegacyRecordID == nil {
		id := *data.LegacyRecordID
		p.LegacyRecordID = &id
		changed = true
	}
	return changed
}

func mergeStr(dst **string, src *string) bool {
	if src == nil || *src == "" {
		return false
	}
	if *dst != nil && **dst == *src {
		return false
	}
	v := *src
	*dst = &v
	return true
}
