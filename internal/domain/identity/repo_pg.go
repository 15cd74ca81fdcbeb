package identity

import (
	"context"
	"errors"

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

func (r *repoPG) Create(ctx context.Context, p *GlobalPerson) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO global_person (id, kind, login_account_id) VALUES ($1, $2, $3)`,
		p.ID, p.Kind, p.LoginAccountID,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*GlobalPerson, error) {
	p := &GlobalPerson{}
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, kind, login_account_id, created_at FROM global_person WHERE id = $1`, id).
		Scan(&p.ID, &p.Kind, &p.LoginAccountID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("global person", id.String())
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) GetByLoginAccount(ctx context.Context, kind PersonKind, loginAccountID uuid.UUID) (*GlobalPerson, error) {
	p := &GlobalPerson{}
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, kind, login_account_id, created_at FROM global_person
		 WHERE kind = $1 AND login_account_id = $2`, kind, loginAccountID).
		Scan(&p.ID, &p.Kind, &p.LoginAccountID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("global person", loginAccountID.String())
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) ListCandidates(ctx context.Context, kind PersonKind) ([]Candidate, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT cp.id, cp.global_person_id, cp.phone, cp.email, cp.birth_date, cp.created_at
		FROM clinic_profile cp
		JOIN global_person gp ON gp.id = cp.global_person_id
		WHERE gp.kind = $1
		ORDER BY cp.created_at ASC, cp.id ASC`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ProfileID, &c.PersonID, &c.Phone, &c.Email, &c.BirthDate, &c.CreatedAt); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}
