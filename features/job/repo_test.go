package job_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexfren/backend/features/job"
)

var jobColumns = []string{"id", "source", "stage", "error", "retries", "created_at", "updated_at"}

func TestPostgresRepo_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	j := &job.Job{Source: "https://youtu.be/abc", Stage: "transcript", Error: "captions disabled"}
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO failed_items (source, stage, error) VALUES ($1, $2, $3)")).
		WithArgs(j.Source, j.Stage, j.Error).
		WillReturnRows(sqlmock.NewRows([]string{"id", "retries", "created_at", "updated_at"}).AddRow("7", 2, now, now))

	require.NoError(t, repo.Save(context.Background(), j))
	assert.Equal(t, "7", j.ID)
	assert.Equal(t, 2, j.Retries)
	assert.Equal(t, now, j.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, source, stage, error, retries, created_at, updated_at FROM failed_items ORDER BY updated_at DESC")).
		WillReturnRows(sqlmock.NewRows(jobColumns).
			AddRow("1", "guide.pdf", "extract", "no extractable text", 0, now, now).
			AddRow("2", "https://docs.dexkit.com/x", "fetch", "404", 1, now, now))

	jobs, err := job.NewPostgresRepo(db).List(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "guide.pdf", jobs[0].Source)
	assert.Equal(t, "fetch", jobs[1].Stage)
	assert.Equal(t, 1, jobs[1].Retries)
}

func TestPostgresRepo_GetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM failed_items WHERE id = $1")).
		WithArgs("404").
		WillReturnError(sql.ErrNoRows)

	_, err = job.NewPostgresRepo(db).Get(context.Background(), "404")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPostgresRepo_DeleteBySources(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)
	sources := []string{"a.pdf", "b.pdf"}

	t.Run("Deletes", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM failed_items WHERE source = ANY($1)")).
			WithArgs(pq.Array(sources)).
			WillReturnResult(sqlmock.NewResult(0, 2))

		n, err := repo.DeleteBySources(context.Background(), sources)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
	})

	t.Run("Empty is a no-op", func(t *testing.T) {
		n, err := repo.DeleteBySources(context.Background(), nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_SourcesAndCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT source FROM failed_items")).
		WillReturnRows(sqlmock.NewRows([]string{"source"}).AddRow("guide.pdf").AddRow("https://youtu.be/abc"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM failed_items")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	sources, err := repo.Sources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"guide.pdf", "https://youtu.be/abc"}, sources)

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
