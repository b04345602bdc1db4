package retrieval

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryLogger_ThreadSafety(t *testing.T) {
	var buf bytes.Buffer
	logger := NewQueryLogger(&buf)

	concurrency := 50
	iterations := 100
	var wg sync.WaitGroup

	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				logger.Log(QueryLogEntry{
					Query:    "how do I swap",
					Duration: time.Millisecond,
				})
			}
		}()
	}
	wg.Wait()

	decoder := json.NewDecoder(&buf)
	count := 0
	for decoder.More() {
		var entry QueryLogEntry
		require.NoError(t, decoder.Decode(&entry), "entry %d", count)
		count++
	}
	assert.Equal(t, concurrency*iterations, count)
}

func TestQueryLogger_StampsTimeAndLatency(t *testing.T) {
	var buf bytes.Buffer
	logger := NewQueryLogger(&buf)
	fixed := time.Date(2025, 5, 4, 10, 0, 0, 0, time.UTC)
	logger.now = func() time.Time { return fixed }

	logger.Log(QueryLogEntry{Query: "nft", Mode: "rank", Duration: 1500 * time.Millisecond})

	var entry QueryLogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.True(t, fixed.Equal(entry.Timestamp))
	assert.Equal(t, int64(1500), entry.LatencyMs)
	assert.Equal(t, "rank", entry.Mode)
}

func TestNewFileQueryLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "query.log")
	logger, closer, err := NewFileQueryLogger(path)
	require.NoError(t, err)

	logger.Log(QueryLogEntry{Query: "wallet"})
	logger.Log(QueryLogEntry{Query: "token"})
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 2)
}
