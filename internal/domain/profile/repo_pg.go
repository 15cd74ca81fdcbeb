package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinika/clinika/internal/domain/identity"
	"github.com/clinika/clinika/internal/platform/apperror"
	"github.com/clinika/clinika/internal/platform/db"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

const profileCols = `id, kind, clinic_id, global_person_id, legacy_record_id, first_name, last_name,
	specialization, phone, email, birth_date, notes, status, created_at, updated_at`

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

func (r *repoPG) Create(ctx context.Context, p *ClinicProfile) error {
	p.ID = uuid.New()
	if p.Status == "" {
		p.Status = StatusActive
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clinic_profile
			(id, kind, clinic_id, global_person_id, legacy_record_id, first_name, last_name,
			 specialization, phone, email, birth_date, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		p.ID, p.Kind, p.ClinicID, p.GlobalPersonID, p.LegacyRecordID, p.FirstName, p.LastName,
		p.Specialization, p.Phone, p.Email, p.BirthDate, p.Notes, p.Status,
		p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*ClinicProfile, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+profileCols+` FROM clinic_profile WHERE id = $1`, id)
	return scanProfile(row, id.String())
}

func (r *repoPG) GetByClinicAndPerson(ctx context.Context, kind identity.PersonKind, clinicID, globalPersonID uuid.UUID) (*ClinicProfile, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+profileCols+` FROM clinic_profile
		WHERE kind = $1 AND clinic_id = $2 AND global_person_id = $3`,
		kind, clinicID, globalPersonID)
	return scanProfile(row, globalPersonID.String())
}

func (r *repoPG) GetByLegacyRecord(ctx context.Context, kind identity.PersonKind, legacyRecordID uuid.UUID) (*ClinicProfile, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+profileCols+` FROM clinic_profile
		WHERE kind = $1 AND legacy_record_id = $2`,
		kind, legacyRecordID)
	return scanProfile(row, legacyRecordID.String())
}

func (r *repoPG) Update(ctx context.Context, p *ClinicProfile) error {
	p.UpdatedAt = time.Now().UTC()
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinic_profile SET
			first_name = $2, last_name = $3, specialization = $4, phone = $5,
			email = $6, birth_date = $7, notes = $8, status = $9,
			legacy_record_id = $10, updated_at = $11
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.Specialization, p.Phone,
		p.Email, p.BirthDate, p.Notes, p.Status, p.LegacyRecordID, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("clinic profile", p.ID.String())
	}
	return nil
}

func (r *repoPG) ListByClinic(ctx context.Context, kind identity.PersonKind, clinicID uuid.UUID, limit, offset int) ([]*ClinicProfile, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM clinic_profile WHERE kind = $1 AND clinic_id = $2`,
		kind, clinicID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count profiles: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+profileCols+` FROM clinic_profile
		WHERE kind = $1 AND clinic_id = $2
		ORDER BY created_at ASC, id ASC
		LIMIT $3 OFFSET $4`,
		kind, clinicID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var profiles []*ClinicProfile
	for rows.Next() {
		p := &ClinicProfile{}
		if err := rows.Scan(
			&p.ID, &p.Kind, &p.ClinicID, &p.GlobalPersonID, &p.LegacyRecordID,
			&p.FirstName, &p.LastName, &p.Specialization, &p.Phone, &p.Email,
			&p.BirthDate, &p.Notes, &p.Status, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		profiles = append(profiles, p)
	}
	return profiles, total, rows.Err()
}

func scanProfile(row pgx.Row, id string) (*ClinicProfile, error) {
	p := &ClinicProfile{}
	err := row.Scan(
		&p.ID, &p.Kind, &p.ClinicID, &p.GlobalPersonID, &p.LegacyRecordID,
		&p.FirstName, &p.LastName, &p.Specialization, &p.Phone, &p.Email,
		&p.BirthDate, &p.Notes, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("clinic profile", id)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
