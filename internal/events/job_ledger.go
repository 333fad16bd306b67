package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ledgerDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// JobLedger remembers which dispatch jobs finished, per job kind, so a
// redelivered queue message is acknowledged without running its side effect
// again.
type JobLedger struct {
	db ledgerDB
}

func NewJobLedger(pool *pgxpool.Pool) *JobLedger {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &JobLedger{db: pool}
}

func newJobLedger(db ledgerDB) *JobLedger {
	if db == nil {
		panic("events: ledger db required")
	}
	return &JobLedger{db: db}
}

// Completed reports whether a job of this kind already finished.
func (l *JobLedger) Completed(ctx context.Context, kind, jobID string) (bool, error) {
	var done bool
	err := l.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM processed_jobs WHERE kind = $1 AND job_id = $2)`,
		kind, jobID,
	).Scan(&done)
	if err != nil {
		return false, fmt.Errorf("events: lookup %s job %s: %w", kind, jobID, err)
	}
	return done, nil
}

// Complete records a finished job with the number of attempts it took. It
// returns false when another worker recorded the same job first.
func (l *JobLedger) Complete(ctx context.Context, kind, jobID string, attempts int) (bool, error) {
	if attempts < 1 {
		attempts = 1
	}
	tag, err := l.db.Exec(ctx,
		`INSERT INTO processed_jobs (kind, job_id, attempts) VALUES ($1, $2, $3)
		 ON CONFLICT (kind, job_id) DO NOTHING`,
		kind, jobID, attempts,
	)
	if err != nil {
		return false, fmt.Errorf("events: record %s job %s: %w", kind, jobID, err)
	}
	return tag.RowsAffected() == 1, nil
}
