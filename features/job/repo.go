package job

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

type Repository interface {
	Save(ctx context.Context, job *Job) error
	List(ctx context.Context) ([]Job, error)
	Get(ctx context.Context, id string) (*Job, error)
	Sources(ctx context.Context) ([]string, error)
	DeleteBySources(ctx context.Context, sources []string) (int64, error)
	Count(ctx context.Context) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Save inserts a failure, or bumps the retry counter of the existing row for
// the same source and stage.
func (r *PostgresRepo) Save(ctx context.Context, job *Job) error {
	query := `INSERT INTO failed_items (source, stage, error) VALUES ($1, $2, $3)
ON CONFLICT (source, stage) DO UPDATE SET error = EXCLUDED.error, retries = failed_items.retries + 1, updated_at = NOW()
RETURNING id, retries, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query, job.Source, job.Stage, job.Error).
		Scan(&job.ID, &job.Retries, &job.CreatedAt, &job.UpdatedAt)
}

func (r *PostgresRepo) List(ctx context.Context) ([]Job, error) {
	query := `SELECT id, source, stage, error, retries, created_at, updated_at FROM failed_items ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.Source, &j.Stage, &j.Error, &j.Retries, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Job, error) {
	j := &Job{}
	query := `SELECT id, source, stage, error, retries, created_at, updated_at FROM failed_items WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&j.ID, &j.Source, &j.Stage, &j.Error, &j.Retries, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Sources lists every source with an unresolved failure.
func (r *PostgresRepo) Sources(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT source FROM failed_items ORDER BY source`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// DeleteBySources clears the failures of sources that have since been
// ingested.
func (r *PostgresRepo) DeleteBySources(ctx context.Context, sources []string) (int64, error) {
	if len(sources) == 0 {
		return 0, nil
	}
	query := `DELETE FROM failed_items WHERE source = ANY($1)`
	res, err := r.db.ExecContext(ctx, query, pq.Array(sources))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM failed_items`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}
