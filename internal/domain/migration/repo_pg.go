package migration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinika/clinika/internal/platform/db"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type ledgerPG struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) LedgerRepository {
	return &ledgerPG{pool: pool}
}

func (r *ledgerPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *ledgerPG) Record(ctx context.Context, e *LedgerEntry) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now().UTC()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO migration_ledger (id, run_id, stage, record_id, outcome, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.RunID, e.Stage, e.RecordID, e.Outcome, e.Reason, e.CreatedAt,
	)
	return err
}

func (r *ledgerPG) ListByRun(ctx context.Context, runID uuid.UUID) ([]*LedgerEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, run_id, stage, record_id, outcome, reason, created_at
		FROM migration_ledger
		WHERE run_id = $1
		ORDER BY created_at ASC, id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*LedgerEntry
	for rows.Next() {
		e := &LedgerEntry{}
		if err := rows.Scan(&e.ID, &e.RunID, &e.Stage, &e.RecordID, &e.Outcome, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
