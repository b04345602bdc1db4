package job

import (
	"context"
	"log/slog"

	"dexfren/backend/internal/loader"
	"dexfren/backend/internal/worker"
)

type Service struct {
	repo   Repository
	pub    worker.Publisher
	logger *slog.Logger
}

func NewService(repo Repository, pub worker.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pub: pub, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

// RecordFailure stores a skipped ingestion item.
func (s *Service) RecordFailure(ctx context.Context, f loader.Failure) error {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	j := &Job{Source: f.Source, Stage: f.Stage, Error: msg}
	if err := s.repo.Save(ctx, j); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "ingestion failure recorded", "id", j.ID, "source", j.Source, "stage", j.Stage, "retries", j.Retries)
	return nil
}

// ResolveFailures forgets the failures of sources that ingested cleanly.
func (s *Service) ResolveFailures(ctx context.Context, sources []string) error {
	n, err := s.repo.DeleteBySources(ctx, sources)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "ingestion failures resolved", "count", n)
	}
	return nil
}

// Retry asks the worker for an incremental reindex, which reloads the
// failed item. The record stays until a run ingests the source cleanly; a
// failure that persists bumps its retry count.
func (s *Service) Retry(ctx context.Context, id string) error {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- worker.PublishReindex(ctx, s.pub, worker.ModeIncremental, "retry "+job.Source)
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	s.logger.InfoContext(ctx, "ingestion retry queued", "id", job.ID, "source", job.Source)
	return nil
}

// PendingSources lists sources whose failures are still unresolved. The
// pipeline reloads their families even after a restart.
func (s *Service) PendingSources(ctx context.Context) ([]string, error) {
	return s.repo.Sources(ctx)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
