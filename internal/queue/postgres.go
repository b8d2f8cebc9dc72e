package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

// PostgresQueue stores jobs in the jobs table. Concurrent workers lease rows
// with FOR UPDATE SKIP LOCKED; an expired lease makes the job runnable again.
type PostgresQueue struct {
	pool        *pgxpool.Pool
	maxAttempts int
	lease       time.Duration
}

// NewPostgresQueue builds a queue over pool.
func NewPostgresQueue(pool *pgxpool.Pool, maxAttempts int, lease time.Duration) *PostgresQueue {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &PostgresQueue{pool: pool, maxAttempts: maxAttempts, lease: lease}
}

func (q *PostgresQueue) Enqueue(ctx context.Context, jobType string, payload any) (Job, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("encode payload: %w", err)
	}

	query := `
INSERT INTO jobs (job_type, payload, max_attempts)
VALUES ($1, $2, $3)
RETURNING id, job_type, payload, state, attempts, max_attempts, run_at, COALESCE(last_error, ''), created_at;`

	job, err := scanJob(q.pool.QueryRow(ctx, query, jobType, raw, q.maxAttempts))
	if err != nil {
		return Job{}, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

func (q *PostgresQueue) Dequeue(ctx context.Context) (*Job, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
UPDATE jobs
SET state = 'running',
    attempts = attempts + 1,
    locked_until = NOW() + ($1 * INTERVAL '1 millisecond'),
    updated_at = NOW()
WHERE id = (
    SELECT id FROM jobs
    WHERE (state = 'pending' AND run_at <= NOW())
       OR (state = 'running' AND locked_until < NOW() AND attempts < max_attempts)
    ORDER BY run_at, id
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
RETURNING id, job_type, payload, state, attempts, max_attempts, run_at, COALESCE(last_error, ''), created_at;`

	job, err := scanJob(q.pool.QueryRow(ctx, query, q.lease.Milliseconds()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue job: %w", err)
	}
	return &job, nil
}

func (q *PostgresQueue) Complete(ctx context.Context, id int64) error {
	return q.exec(ctx, "complete job",
		`UPDATE jobs SET state = 'done', locked_until = NULL, updated_at = NOW() WHERE id = $1;`, id)
}

func (q *PostgresQueue) Retry(ctx context.Context, id int64, runAt time.Time, reason string) error {
	return q.exec(ctx, "retry job",
		`UPDATE jobs SET state = 'pending', run_at = $2, last_error = $3, locked_until = NULL, updated_at = NOW() WHERE id = $1;`,
		id, runAt, reason)
}

func (q *PostgresQueue) Fail(ctx context.Context, id int64, reason string) error {
	return q.exec(ctx, "fail job",
		`UPDATE jobs SET state = 'failed', last_error = $2, locked_until = NULL, updated_at = NOW() WHERE id = $1;`,
		id, reason)
}

func (q *PostgresQueue) ReapExpired(ctx context.Context) ([]Job, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
UPDATE jobs
SET state = 'failed',
    last_error = $1,
    locked_until = NULL,
    updated_at = NOW()
WHERE state = 'running'
  AND locked_until < NOW()
  AND attempts >= max_attempts
RETURNING id, job_type, payload, state, attempts, max_attempts, run_at, COALESCE(last_error, ''), created_at;`

	rows, err := q.pool.Query(ctx, query, ErrLeaseExpired.Error())
	if err != nil {
		return nil, fmt.Errorf("reap expired jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reaped job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reap expired jobs: %w", err)
	}
	return jobs, nil
}

func (q *PostgresQueue) exec(ctx context.Context, op, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := q.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (Job, error) {
	var (
		job   Job
		state string
	)
	err := row.Scan(
		&job.ID,
		&job.Type,
		&job.Payload,
		&state,
		&job.Attempts,
		&job.MaxAttempts,
		&job.RunAt,
		&job.LastError,
		&job.CreatedAt,
	)
	job.State = State(state)
	return job, err
}
