package migration

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinika/clinika/internal/platform/db"
)

// Profiles written since the legacy link was introduced carry the id of the
// record that produced them, which correlates exactly. Older profiles predate
// the column, so the audit falls back to the matcher's contact correlation:
// shared phone or email within the clinic, then name for contactless records.
const doctorCounterpart = `
	SELECT 1 FROM clinic_profile cp
	WHERE cp.kind = 'doctor' AND cp.clinic_id = d.clinic_id
	  AND (cp.legacy_record_id = d.id
	    OR (d.phone IS NOT NULL AND cp.phone = d.phone)
	    OR (d.email IS NOT NULL AND cp.email = d.email)
	    OR (cp.first_name = d.first_name AND cp.last_name = d.last_name))`

const patientCounterpart = `
	SELECT 1 FROM clinic_profile cp
	WHERE cp.kind = 'patient' AND cp.clinic_id = p.clinic_id
	  AND (cp.legacy_record_id = p.id
	    OR (p.phone IS NOT NULL AND cp.phone = p.phone)
	    OR (p.email IS NOT NULL AND cp.email = p.email)
	    OR (cp.first_name = p.first_name AND cp.last_name = p.last_name))`

type auditPG struct {
	pool *pgxpool.Pool
}

func NewAuditStore(pool *pgxpool.Pool) AuditStore {
	return &auditPG{pool: pool}
}

func (s *auditPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

func (s *auditPG) UnmatchedDoctors(ctx context.Context, clinicID *uuid.UUID) ([]uuid.UUID, error) {
	return s.listIDs(ctx, `
		SELECT d.id FROM doctor d
		WHERE ($1::uuid IS NULL OR d.clinic_id = $1)
		  AND NOT EXISTS (`+doctorCounterpart+`)
		ORDER BY d.created_at ASC, d.id ASC`, clinicID)
}

func (s *auditPG) UnmatchedPatients(ctx context.Context, clinicID *uuid.UUID) ([]uuid.UUID, error) {
	return s.listIDs(ctx, `
		SELECT p.id FROM patient p
		WHERE ($1::uuid IS NULL OR p.clinic_id = $1)
		  AND NOT EXISTS (`+patientCounterpart+`)
		ORDER BY p.created_at ASC, p.id ASC`, clinicID)
}

func (s *auditPG) TenantViolations(ctx context.Context, clinicID *uuid.UUID) ([]TenantViolation, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT a.id, a.clinic_id, cd.clinic_id, cp.clinic_id
		FROM appointment a
		JOIN clinic_profile cd ON cd.id = a.clinic_doctor_id
		JOIN clinic_profile cp ON cp.id = a.clinic_patient_id
		WHERE ($1::uuid IS NULL OR a.clinic_id = $1)
		  AND (cd.clinic_id <> a.clinic_id OR cp.clinic_id <> a.clinic_id)
		ORDER BY a.created_at ASC, a.id ASC`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var violations []TenantViolation
	for rows.Next() {
		var v TenantViolation
		if err := rows.Scan(&v.AppointmentID, &v.AppointmentClinicID, &v.DoctorClinicID, &v.PatientClinicID); err != nil {
			return nil, err
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}

func (s *auditPG) SpecializationDivergences(ctx context.Context, clinicID *uuid.UUID) ([]FieldDivergence, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT d.id, cp.id, COALESCE(d.specialization, ''), COALESCE(cp.specialization, '')
		FROM doctor d
		JOIN clinic_profile cp ON cp.kind = 'doctor' AND cp.clinic_id = d.clinic_id
		  AND ((d.phone IS NOT NULL AND cp.phone = d.phone)
		    OR (d.email IS NOT NULL AND cp.email = d.email))
		WHERE ($1::uuid IS NULL OR d.clinic_id = $1)
		  AND COALESCE(d.specialization, '') <> COALESCE(cp.specialization, '')
		ORDER BY d.created_at ASC, d.id ASC`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var divergences []FieldDivergence
	for rows.Next() {
		d := FieldDivergence{Field: "specialization"}
		if err := rows.Scan(&d.RecordID, &d.ProfileID, &d.Legacy, &d.Federated); err != nil {
			return nil, err
		}
		divergences = append(divergences, d)
	}
	return divergences, rows.Err()
}

func (s *auditPG) listIDs(ctx context.Context, sql string, clinicID *uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.conn(ctx).Query(ctx, sql, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
