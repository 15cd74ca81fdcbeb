// Package identity resolves clinic-scoped person records to global
// identities: one GlobalPerson per real human, shared by every clinic the
// person is associated with. Matching is deterministic so that live
// traffic and batch backfill converge on the same records.
package identity

import (
	"time"

	"github.com/google/uuid"
)

// PersonKind separates the two global identity namespaces. A doctor and a
// patient are distinct identities even when they are the same human.
type PersonKind string

const (
	KindDoctor  PersonKind = "doctor"
	KindPatient PersonKind = "patient"
)

// GlobalPerson maps to the global_person table: one record per real human
// per kind, across all clinics. A person with no login account (e.g., a
// walk-in patient) has LoginAccountID nil. At most one GlobalPerson of a
// given kind exists per login account, enforced by a partial unique index.
type GlobalPerson struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Kind           PersonKind `db:"kind" json:"kind"`
	LoginAccountID *uuid.UUID `db:"login_account_id" json:"login_account_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// MatchHints are the partial identifying attributes used for deterministic
// matching when no login account links the person.
type MatchHints struct {
	Phone     string
	Email     string
	BirthDate *time.Time
}
