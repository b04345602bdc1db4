package reindex_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"dexfren/backend/features/reindex"
	"dexfren/backend/internal/config"
	"dexfren/backend/internal/middleware"
	"dexfren/backend/internal/worker"
)

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

func modeIs(mode string) interface{} {
	return mock.MatchedBy(func(body []byte) bool {
		var task worker.ReindexTask
		return json.Unmarshal(body, &task) == nil && task.Mode == mode && task.Reason == "api"
	})
}

func TestHandler_Trigger(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		setup      func(*MockPublisher)
		wantStatus int
	}{
		{
			name:       "defaults to incremental",
			url:        "/reindex",
			setup:      func(p *MockPublisher) { p.On("Publish", config.TopicReindex, modeIs("incremental")).Return(nil) },
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "full rebuild",
			url:        "/reindex?mode=full",
			setup:      func(p *MockPublisher) { p.On("Publish", config.TopicReindex, modeIs("full")).Return(nil) },
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "invalid mode",
			url:        "/reindex?mode=partial",
			setup:      func(*MockPublisher) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "nsq down",
			url:  "/reindex?mode=full",
			setup: func(p *MockPublisher) {
				p.On("Publish", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := new(MockPublisher)
			tt.setup(pub)

			w := httptest.NewRecorder()
			handler := middleware.CorrelationID(http.HandlerFunc(reindex.NewHandler(pub).Trigger))
			handler.ServeHTTP(w, httptest.NewRequest("POST", tt.url, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			pub.AssertExpectations(t)
		})
	}
}
