package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/bcnelson/campaign-agent-api/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agentPrefix = "/api/agent/v1"

type flakyWriter struct {
	mu       sync.Mutex
	failures int
	calls    int
	entries  []*domain.AuditLogEntry
}

func (w *flakyWriter) CreateAuditLog(ctx context.Context, entry *domain.AuditLogEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.calls <= w.failures {
		return errors.New("connection reset")
	}
	w.entries = append(w.entries, entry)
	return nil
}

func (w *flakyWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// blockingWriter waits until released or its context ends.
type blockingWriter struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingWriter() *blockingWriter {
	return &blockingWriter{started: make(chan struct{}), release: make(chan struct{})}
}

func (w *blockingWriter) CreateAuditLog(ctx context.Context, entry *domain.AuditLogEntry) error {
	w.once.Do(func() { close(w.started) })
	select {
	case <-w.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func testConfig(t *testing.T) Config {
	return Config{
		PathPrefix:     agentPrefix,
		QueueSize:      16,
		Workers:        2,
		MaxRetries:     3,
		RetryBackoff:   time.Millisecond,
		MaxBodyBytes:   10000,
		DeadLetterPath: filepath.Join(t.TempDir(), "audit", "dead-letter.jsonl"),
	}
}

func campaignRecord() Record {
	return Record{
		RequestID:      "req-1",
		APIKeyID:       "key-1",
		OrganizationID: "org-1",
		Method:         "POST",
		Path:           agentPrefix + "/campaigns",
		RequestBody:    []byte(`{"name":"Autumn","budget":4000,"auth_token":"t0p"}`),
		ResponseBody:   []byte(`{"success":true,"data":{"id":"c-1","name":"Autumn"}}`),
		StatusCode:     201,
		StartedAt:      time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC),
		Duration:       42 * time.Millisecond,
		IPAddress:      "10.0.0.1",
		UserAgent:      "agent/1.0",
	}
}

func readDeadLetters(t *testing.T, path string) []deadLetterLine {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []deadLetterLine
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line deadLetterLine
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestBuildEntry(t *testing.T) {
	l := &Logger{cfg: Config{PathPrefix: agentPrefix, MaxBodyBytes: 10000}}

	entry := l.BuildEntry(campaignRecord())

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "campaign.create", entry.Action)
	assert.Equal(t, "campaign", entry.ResourceType)
	assert.Equal(t, "c-1", entry.ResourceID)
	assert.Equal(t, int64(42), entry.DurationMS)
	assert.Equal(t, "org-1", entry.OrganizationID)
	assert.Equal(t, time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC), entry.CreatedAt)

	req := entry.RequestBody.V.(map[string]any)
	assert.Equal(t, RedactedValue, req["auth_token"])
	assert.Equal(t, float64(4000), req["budget"])
}

func TestBuildEntryTruncatesLargeBodies(t *testing.T) {
	l := &Logger{cfg: Config{PathPrefix: agentPrefix, MaxBodyBytes: 64}}
	rec := campaignRecord()
	rec.ResponseBody = []byte(`{"success":true,"data":{"id":"c-1","description":"` + strings.Repeat("a", 200) + `"}}`)

	entry := l.BuildEntry(rec)

	resp := entry.ResponseBody.V.(map[string]any)
	assert.Equal(t, true, resp["_truncated"])
	// resource id comes from the body before truncation
	assert.Equal(t, "c-1", entry.ResourceID)
}

func TestBuildEntryNeverStoresMalformedBodies(t *testing.T) {
	l := &Logger{cfg: Config{PathPrefix: agentPrefix, MaxBodyBytes: 10000}}
	rec := campaignRecord()
	rec.RequestBody = []byte(`{"name":"x","api_key":"cak_supersecret","password":"hunter2",`)

	entry := l.BuildEntry(rec)

	raw, err := json.Marshal(entry.RequestBody)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "cak_supersecret")
	assert.NotContains(t, string(raw), "hunter2")

	req := entry.RequestBody.V.(map[string]any)
	assert.Equal(t, true, req["_unparseable"])
	assert.Equal(t, len(rec.RequestBody), req["_original_size"])
	assert.NotContains(t, req, "_preview")
}

func TestLoggerPersists(t *testing.T) {
	store := memory.New()
	cfg := testConfig(t)
	l, err := NewLogger(store, cfg)
	require.NoError(t, err)

	l.Log(campaignRecord())
	require.NoError(t, l.Shutdown(context.Background()))

	logs := store.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "campaign.create", logs[0].Action)

	stats := l.Stats()
	assert.Equal(t, uint64(1), stats.Enqueued)
	assert.Equal(t, uint64(1), stats.Persisted)
	assert.Equal(t, uint64(0), stats.DeadLettered)
}

func TestLoggerRetriesThenSucceeds(t *testing.T) {
	writer := &flakyWriter{failures: 2}
	l, err := NewLogger(writer, testConfig(t))
	require.NoError(t, err)

	l.Log(campaignRecord())
	require.NoError(t, l.Shutdown(context.Background()))

	assert.Equal(t, 1, writer.count())
	stats := l.Stats()
	assert.Equal(t, uint64(2), stats.Retried)
	assert.Equal(t, uint64(1), stats.Persisted)
	assert.Equal(t, uint64(0), stats.DeadLettered)
}

func TestLoggerDeadLettersAfterRetries(t *testing.T) {
	writer := &flakyWriter{failures: 100}
	cfg := testConfig(t)
	l, err := NewLogger(writer, cfg)
	require.NoError(t, err)

	l.Log(campaignRecord())
	require.NoError(t, l.Shutdown(context.Background()))

	assert.Equal(t, 0, writer.count())
	writer.mu.Lock()
	assert.Equal(t, cfg.MaxRetries+1, writer.calls)
	writer.mu.Unlock()

	lines := readDeadLetters(t, cfg.DeadLetterPath)
	require.Len(t, lines, 1)
	assert.Equal(t, "connection reset", lines[0].Reason)
	assert.Equal(t, "req-1", lines[0].Entry.RequestID)
	assert.Equal(t, "campaign.create", lines[0].Entry.Action)
	assert.Equal(t, RedactedValue, lines[0].Entry.RequestBody.V.(map[string]any)["auth_token"])
}

func TestLoggerDeadLettersWhenQueueFull(t *testing.T) {
	writer := newBlockingWriter()
	cfg := testConfig(t)
	cfg.QueueSize = 1
	cfg.Workers = 1
	l, err := NewLogger(writer, cfg)
	require.NoError(t, err)

	l.Log(campaignRecord())
	<-writer.started

	l.Log(campaignRecord()) // fills the queue
	overflow := campaignRecord()
	overflow.RequestID = "req-overflow"
	l.Log(overflow)

	assert.Equal(t, uint64(1), l.Stats().DeadLettered)

	close(writer.release)
	require.NoError(t, l.Shutdown(context.Background()))

	lines := readDeadLetters(t, cfg.DeadLetterPath)
	require.Len(t, lines, 1)
	assert.Equal(t, "req-overflow", lines[0].Entry.RequestID)
	assert.Equal(t, uint64(2), l.Stats().Persisted)
}

func TestLoggerShutdownTimeoutDeadLettersBacklog(t *testing.T) {
	writer := newBlockingWriter()
	cfg := testConfig(t)
	cfg.Workers = 1
	l, err := NewLogger(writer, cfg)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		l.Log(campaignRecord())
	}
	<-writer.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = l.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Len(t, readDeadLetters(t, cfg.DeadLetterPath), 3)
	assert.Equal(t, uint64(3), l.Stats().DeadLettered)
}

func TestLogAfterShutdownIsNotLost(t *testing.T) {
	store := memory.New()
	cfg := testConfig(t)
	cfg.DeadLetterPath = ""
	l, err := NewLogger(store, cfg)
	require.NoError(t, err)
	require.NoError(t, l.Shutdown(context.Background()))

	assert.NotPanics(t, func() { l.Log(campaignRecord()) })
	assert.Equal(t, uint64(1), l.Stats().DeadLettered)
	assert.NoError(t, l.Shutdown(context.Background()))
}
