// Package audit records every Agent API request without ever blocking or
// failing the request that produced it.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/bcnelson/campaign-agent-api/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Writer persists audit entries.
type Writer interface {
	CreateAuditLog(ctx context.Context, entry *domain.AuditLogEntry) error
}

// Record is what the HTTP layer captures about one request.
type Record struct {
	RequestID      string
	APIKeyID       string
	OrganizationID string
	Method         string
	Path           string
	RequestBody    []byte
	ResponseBody   []byte
	StatusCode     int
	ErrorMessage   string
	StartedAt      time.Time
	Duration       time.Duration
	IPAddress      string
	UserAgent      string
}

// Config tunes the logger.
type Config struct {
	// PathPrefix is stripped from request paths before deriving actions.
	PathPrefix     string
	QueueSize      int
	Workers        int
	MaxRetries     int
	RetryBackoff   time.Duration
	MaxBodyBytes   int
	DeadLetterPath string
}

// Stats counts records by outcome.
type Stats struct {
	Enqueued     uint64 `json:"enqueued"`
	Persisted    uint64 `json:"persisted"`
	Retried      uint64 `json:"retried"`
	DeadLettered uint64 `json:"dead_lettered"`
	Pending      int    `json:"pending"`
}

// Logger persists records on background workers with bounded retries.
// Records that cannot be persisted are appended to a dead-letter file.
type Logger struct {
	cfg    Config
	writer Writer
	queue  chan Record

	// mu guards closed; senders hold it shared so Shutdown can close the
	// queue without racing them.
	mu     sync.RWMutex
	closed bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	dlMu       sync.Mutex
	deadLetter *os.File

	enqueued     atomic.Uint64
	persisted    atomic.Uint64
	retried      atomic.Uint64
	deadLettered atomic.Uint64
}

// NewLogger starts the workers. An empty DeadLetterPath keeps exhausted
// records in the process log only.
func NewLogger(writer Writer, cfg Config) (*Logger, error) {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	l := &Logger{
		cfg:    cfg,
		writer: writer,
		queue:  make(chan Record, cfg.QueueSize),
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())

	if cfg.DeadLetterPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DeadLetterPath), 0o750); err != nil {
			return nil, fmt.Errorf("creating dead-letter directory: %w", err)
		}
		f, err := os.OpenFile(cfg.DeadLetterPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening dead-letter file: %w", err)
		}
		l.deadLetter = f
	}

	for i := 0; i < cfg.Workers; i++ {
		l.wg.Add(1)
		go l.worker(i)
	}

	log.Info().
		Int("workers", cfg.Workers).
		Int("queue_size", cfg.QueueSize).
		Str("dead_letter", cfg.DeadLetterPath).
		Msg("Audit logger started")

	return l, nil
}

// Log queues a record and returns immediately. When the queue is full or
// the logger is shut down the record is dead-lettered instead.
func (l *Logger) Log(rec Record) {
	l.mu.RLock()
	if !l.closed {
		select {
		case l.queue <- rec:
			l.mu.RUnlock()
			l.enqueued.Add(1)
			metrics.AuditEntries.WithLabelValues("enqueued").Inc()
			metrics.AuditQueueDepth.Set(float64(len(l.queue)))
			return
		default:
		}
	}
	l.mu.RUnlock()

	log.Warn().Str("request_id", rec.RequestID).Msg("Audit queue unavailable, dead-lettering record")
	l.writeDeadLetter(l.BuildEntry(rec), "queue unavailable")
}

func (l *Logger) worker(id int) {
	defer l.wg.Done()

	for rec := range l.queue {
		metrics.AuditQueueDepth.Set(float64(len(l.queue)))
		entry := l.BuildEntry(rec)
		if err := l.persist(entry); err != nil {
			log.Error().Err(err).
				Int("worker", id).
				Str("request_id", entry.RequestID).
				Str("action", entry.Action).
				Msg("Audit entry could not be persisted")
			l.writeDeadLetter(entry, err.Error())
		}
	}
}

func (l *Logger) persist(entry *domain.AuditLogEntry) error {
	var err error
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			l.retried.Add(1)
			metrics.AuditEntries.WithLabelValues("retried").Inc()

			timer := time.NewTimer(l.cfg.RetryBackoff * time.Duration(attempt))
			select {
			case <-l.ctx.Done():
				timer.Stop()
				return fmt.Errorf("shutting down: %w", err)
			case <-timer.C:
			}
		}

		ctx, cancel := context.WithTimeout(l.ctx, 5*time.Second)
		err = l.writer.CreateAuditLog(ctx, entry)
		cancel()
		if err == nil {
			l.persisted.Add(1)
			metrics.AuditEntries.WithLabelValues("persisted").Inc()
			return nil
		}
	}
	return err
}

type deadLetterLine struct {
	Entry  *domain.AuditLogEntry `json:"entry"`
	Reason string                `json:"reason"`
	At     time.Time             `json:"dead_lettered_at"`
}

func (l *Logger) writeDeadLetter(entry *domain.AuditLogEntry, reason string) {
	l.deadLettered.Add(1)
	metrics.AuditEntries.WithLabelValues("dead_lettered").Inc()

	data, err := json.Marshal(deadLetterLine{Entry: entry, Reason: reason, At: time.Now().UTC()})
	if err != nil {
		log.Error().Err(err).Str("request_id", entry.RequestID).Msg("Failed to marshal dead-letter entry")
		return
	}

	l.dlMu.Lock()
	defer l.dlMu.Unlock()

	if l.deadLetter == nil {
		log.Error().RawJSON("audit_entry", data).Msg("Audit entry lost (no dead-letter file)")
		return
	}
	if _, err := fmt.Fprintf(l.deadLetter, "%s\n", data); err != nil {
		log.Error().Err(err).RawJSON("audit_entry", data).Msg("Failed to write dead-letter entry")
		return
	}
	if err := l.deadLetter.Sync(); err != nil {
		log.Error().Err(err).Msg("Failed to sync dead-letter file")
	}
}

// BuildEntry turns a record into a sanitized, size-bounded entry.
func (l *Logger) BuildEntry(rec Record) *domain.AuditLogEntry {
	route := strings.TrimPrefix(rec.Path, l.cfg.PathPrefix)
	reqBody := decodeBody(rec.RequestBody)
	respBody := decodeBody(rec.ResponseBody)

	createdAt := rec.StartedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return &domain.AuditLogEntry{
		ID:             uuid.New().String(),
		RequestID:      rec.RequestID,
		APIKeyID:       rec.APIKeyID,
		OrganizationID: rec.OrganizationID,
		Action:         DeriveAction(rec.Method, route),
		ResourceType:   ResourceType(route),
		ResourceID:     ExtractResourceID(respBody, route),
		Method:         rec.Method,
		Path:           rec.Path,
		RequestBody:    domain.JSONValue{V: Truncate(Sanitize(reqBody), l.cfg.MaxBodyBytes)},
		ResponseBody:   domain.JSONValue{V: Truncate(Sanitize(respBody), l.cfg.MaxBodyBytes)},
		StatusCode:     rec.StatusCode,
		ErrorMessage:   rec.ErrorMessage,
		DurationMS:     rec.Duration.Milliseconds(),
		IPAddress:      rec.IPAddress,
		UserAgent:      rec.UserAgent,
		CreatedAt:      createdAt.UTC(),
	}
}

// Stats returns the current counters.
func (l *Logger) Stats() Stats {
	return Stats{
		Enqueued:     l.enqueued.Load(),
		Persisted:    l.persisted.Load(),
		Retried:      l.retried.Load(),
		DeadLettered: l.deadLettered.Load(),
		Pending:      len(l.queue),
	}
}

// Shutdown stops accepting records and waits for the queue to drain. If
// ctx expires first, whatever is still queued is dead-lettered.
func (l *Logger) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		// Abort retries; workers dead-letter their current entry and
		// drain the rest alongside this loop.
		l.cancel()
		for rec := range l.queue {
			l.writeDeadLetter(l.BuildEntry(rec), "shutdown timeout")
		}
		<-done
		err = ctx.Err()
	}
	l.cancel()

	stats := l.Stats()
	log.Info().
		Uint64("persisted", stats.Persisted).
		Uint64("dead_lettered", stats.DeadLettered).
		Msg("Audit logger stopped")

	l.dlMu.Lock()
	if l.deadLetter != nil {
		if cerr := l.deadLetter.Close(); cerr != nil && err == nil {
			err = cerr
		}
		l.deadLetter = nil
	}
	l.dlMu.Unlock()
	return err
}
