package worker_test

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/stretchr/testify/mock"

	"dexfren/backend/internal/ingest"
	"dexfren/backend/internal/worker"
)

type MockIndexer struct{ mock.Mock }

func (m *MockIndexer) Build(ctx context.Context) (ingest.Report, error) {
	args := m.Called(ctx)
	return args.Get(0).(ingest.Report), args.Error(1)
}

func (m *MockIndexer) Update(ctx context.Context) (ingest.Report, error) {
	args := m.Called(ctx)
	return args.Get(0).(ingest.Report), args.Error(1)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

// recordingPublisher collects published tasks for tests that run goroutines.
type recordingPublisher struct {
	mu    sync.Mutex
	tasks []worker.ReindexTask
}

func (p *recordingPublisher) Publish(_ string, body []byte) error {
	var task worker.ReindexTask
	if err := json.Unmarshal(body, &task); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, task)
	return nil
}

func (p *recordingPublisher) published() []worker.ReindexTask {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]worker.ReindexTask(nil), p.tasks...)
}
