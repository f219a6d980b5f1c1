// Package store persists skills matching results in PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/skillmatch/internal/skills"
)

const schema = `
CREATE TABLE IF NOT EXISTS match_results (
	run_id             UUID        NOT NULL,
	job_id             TEXT        NOT NULL,
	overall_score      DOUBLE PRECISION NOT NULL,
	required_coverage  DOUBLE PRECISION NOT NULL,
	preferred_coverage DOUBLE PRECISION NOT NULL,
	missing_count      INTEGER     NOT NULL,
	result             JSONB       NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (run_id, job_id)
);
CREATE INDEX IF NOT EXISTS match_results_job_id_idx ON match_results (job_id, created_at DESC);
`

// StoredResult is a persisted matching result.
type StoredResult struct {
	RunID     uuid.UUID
	JobID     string
	Result    *skills.Result
	CreatedAt time.Time
}

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// EnsureSchema creates the results table when it does not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveResult stores the result for a job within a run. Saving the same
// (run, job) pair again replaces the previous document.
func (db *DB) SaveResult(ctx context.Context, runID uuid.UUID, jobID string, result *skills.Result) error {
	if result == nil {
		return errors.New("result is nil")
	}

	doc, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO match_results (run_id, job_id, overall_score, required_coverage, preferred_coverage, missing_count, result)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (run_id, job_id) DO UPDATE SET
		   overall_score = $3, required_coverage = $4, preferred_coverage = $5,
		   missing_count = $6, result = $7, created_at = NOW()`,
		runID, jobID, result.OverallScore, result.RequiredCoverage, result.PreferredCoverage,
		len(result.MissingSkills), doc,
	)
	if err != nil {
		return fmt.Errorf("failed to save result for job %s: %w", jobID, err)
	}
	return nil
}

// GetResult returns the result of a job within a run, or nil when absent.
func (db *DB) GetResult(ctx context.Context, runID uuid.UUID, jobID string) (*StoredResult, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT run_id, job_id, result, created_at FROM match_results WHERE run_id = $1 AND job_id = $2`,
		runID, jobID,
	)

	stored, err := scanResult(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get result for job %s: %w", jobID, err)
	}
	return stored, nil
}

// ListByJob returns every stored result for the job, newest first.
func (db *DB) ListByJob(ctx context.Context, jobID string, limit int) ([]*StoredResult, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.pool.Query(ctx,
		`SELECT run_id, job_id, result, created_at FROM match_results
		 WHERE job_id = $1 ORDER BY created_at DESC LIMIT $2`,
		jobID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list results for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var results []*StoredResult
	for rows.Next() {
		stored, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list results for job %s: %w", jobID, err)
	}
	return results, nil
}

func scanResult(row pgx.Row) (*StoredResult, error) {
	var (
		stored StoredResult
		doc    []byte
	)
	if err := row.Scan(&stored.RunID, &stored.JobID, &doc, &stored.CreatedAt); err != nil {
		return nil, err
	}

	stored.Result = &skills.Result{}
	if err := json.Unmarshal(doc, stored.Result); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &stored, nil
}
