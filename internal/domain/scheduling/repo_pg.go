package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinika/clinika/internal/platform/apperror"
	"github.com/clinika/clinika/internal/platform/db"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

const apptCols = `id, clinic_id, doctor_id, patient_id, clinic_doctor_id,
	clinic_patient_id, start_time, end_time, status, reason, created_at, updated_at`

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment
			(id, clinic_id, doctor_id, patient_id, start_time, end_time,
			 status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.ClinicID, a.DoctorID, a.PatientID, a.StartTime, a.EndTime,
		a.Status, a.Reason, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a := &Appointment{}
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE id = $1`, id).
		Scan(&a.ID, &a.ClinicID, &a.DoctorID, &a.PatientID, &a.ClinicDoctorID,
			&a.ClinicPatientID, &a.StartTime, &a.EndTime, &a.Status, &a.Reason,
			&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("appointment", id.String())
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *repoPG) SetFederatedLinks(ctx context.Context, id uuid.UUID, links FederatedLinks) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment
		SET clinic_doctor_id = $2, clinic_patient_id = $3, updated_at = $4
		WHERE id = $1`,
		id, links.ClinicDoctorID, links.ClinicPatientID, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("appointment", id.String())
	}
	return nil
}

func (r *repoPG) ListUnlinked(ctx context.Context) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE clinic_doctor_id IS NULL OR clinic_patient_id IS NULL
		ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []*Appointment
	for rows.Next() {
		a := &Appointment{}
		if err := rows.Scan(&a.ID, &a.ClinicID, &a.DoctorID, &a.PatientID,
			&a.ClinicDoctorID, &a.ClinicPatientID, &a.StartTime, &a.EndTime,
			&a.Status, &a.Reason, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func (r *repoPG) ListLegacyViews(ctx context.Context, clinicID uuid.UUID, q Query, limit, offset int) ([]*AppointmentView, int, error) {
	where, args := buildFilter(clinicID, q)
	return r.listViews(ctx, `
		SELECT a.id, a.clinic_id, d.first_name, d.last_name,
		       p.first_name, p.last_name,
		       a.start_time, a.end_time, a.status, a.reason
		FROM appointment a
		JOIN doctor d ON d.id = a.doctor_id
		JOIN patient p ON p.id = a.patient_id
		`+where, `
		SELECT COUNT(*) FROM appointment a `+where, args, limit, offset)
}

// ListFederatedViews reads names through the clinic-profile links. Rows
// still inside the enrichment window have no links yet; they fall back to
// the legacy names so the result set stays complete under either shape.
func (r *repoPG) ListFederatedViews(ctx context.Context, clinicID uuid.UUID, q Query, limit, offset int) ([]*AppointmentView, int, error) {
	where, args := buildFilter(clinicID, q)
	return r.listViews(ctx, `
		SELECT a.id, a.clinic_id,
		       COALESCE(cd.first_name, d.first_name), COALESCE(cd.last_name, d.last_name),
		       COALESCE(cp.first_name, p.first_name), COALESCE(cp.last_name, p.last_name),
		       a.start_time, a.end_time, a.status, a.reason
		FROM appointment a
		JOIN doctor d ON d.id = a.doctor_id
		JOIN patient p ON p.id = a.patient_id
		LEFT JOIN clinic_profile cd ON cd.id = a.clinic_doctor_id
		LEFT JOIN clinic_profile cp ON cp.id = a.clinic_patient_id
		`+where, `
		SELECT COUNT(*) FROM appointment a `+where, args, limit, offset)
}

func (r *repoPG) listViews(ctx context.Context, listSQL, countSQL string, args []interface{}, limit, offset int) ([]*AppointmentView, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	n := len(args)
	listSQL += fmt.Sprintf(" ORDER BY a.start_time ASC, a.id ASC LIMIT $%d OFFSET $%d", n+1, n+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var views []*AppointmentView
	for rows.Next() {
		v := &AppointmentView{}
		if err := rows.Scan(&v.ID, &v.ClinicID, &v.DoctorFirstName, &v.DoctorLastName,
			&v.PatientFirstName, &v.PatientLastName, &v.StartTime, &v.EndTime,
			&v.Status, &v.Reason); err != nil {
			return nil, 0, err
		}
		views = append(views, v)
	}
	return views, total, rows.Err()
}

func buildFilter(clinicID uuid.UUID, q Query) (string, []interface{}) {
	conds := []string{"a.clinic_id = $1"}
	args := []interface{}{clinicID}
	if q.From != nil {
		args = append(args, *q.From)
		conds = append(conds, fmt.Sprintf("a.start_time >= $%d", len(args)))
	}
	if q.To != nil {
		args = append(args, *q.To)
		conds = append(conds, fmt.Sprintf("a.start_time < $%d", len(args)))
	}
	if q.Status != "" {
		args = append(args, q.Status)
		conds = append(conds, fmt.Sprintf("a.status = $%d", len(args)))
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}
