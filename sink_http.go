package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// httpLogEntry is the wire format for one record in an HTTPSink batch POST,
// matching original_source/include/sink/HttpSink.h's FormatMessageToJson.
type httpLogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	ThreadID  uint64 `json:"thread_id"`
	File      string `json:"file"`
	Line      int    `json:"line"`
	Content   string `json:"content"`
}

// HTTPSinkConfig configures an HTTPSink. Transport details beyond the
// batch/retry/overflow policy are intentionally minimal: spec.md §1 and
// §4.5.3 place the transport itself out of scope for the core.
type HTTPSinkConfig struct {
	Endpoint   string
	BatchSize  int
	MaxRetries int
	Timeout    time.Duration
	Client     *http.Client
}

// HTTPSink buffers records, JSON-encodes a batch, and POSTs it when the
// pending count reaches BatchSize, on Flush, or at the end of every
// LogBatch call. Retries up to MaxRetries
// with linear backoff; on persistent failure it drops the oldest overflow
// beyond 2*BatchSize, per spec.md §4.5.3.
type HTTPSink struct {
	mu      sync.Mutex
	cfg     HTTPSinkConfig
	client  *http.Client
	pending []httpLogEntry
	limiter *rate.Limiter
}

// NewHTTPSink constructs an HTTPSink. As an external collaborator (per
// spec.md §1), it is safe to construct with a zero-value client; a default
// one is supplied.
func NewHTTPSink(cfg HTTPSinkConfig) *HTTPSink {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPSink{
		cfg:    cfg,
		client: client,
		// One token per attempt; linear backoff is expressed by waiting
		// attempt*baseInterval on the same limiter rather than sleeping
		// directly, so a future multi-sink fan-out can share it.
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}
}

func (h *HTTPSink) Name() string { return "http" }

func (h *HTTPSink) Log(r *Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = append(h.pending, h.toEntry(r))
	h.enforceOverflowLocked()
	if len(h.pending) >= h.cfg.BatchSize {
		return h.flushLocked()
	}
	return nil
}

func (h *HTTPSink) LogBatch(rs []*Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range rs {
		h.pending = append(h.pending, h.toEntry(r))
	}
	h.enforceOverflowLocked()
	return h.flushLocked()
}

func (h *HTTPSink) toEntry(r *Record) httpLogEntry {
	content := ""
	if r.Buf != nil {
		content = string(r.Buf.Bytes())
	}
	return httpLogEntry{
		Timestamp: time.Unix(0, r.TimeNS).UTC().Format(time.RFC3339Nano),
		Level:     levelString(r.Level),
		ThreadID:  r.ThreadHash,
		File:      r.File,
		Line:      r.Line,
		Content:   content,
	}
}

// enforceOverflowLocked drops the oldest overflow beyond 2*batch_size, per
// spec.md §4.5.3's persistent-failure policy.
func (h *HTTPSink) enforceOverflowLocked() {
	limit := 2 * h.cfg.BatchSize
	if len(h.pending) > limit {
		drop := len(h.pending) - limit
		diag("http sink: dropping %d overflow records", drop)
		h.pending = h.pending[drop:]
	}
}

func (h *HTTPSink) Flush() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.flushLocked()
}

func (h *HTTPSink) flushLocked() error {
	if len(h.pending) == 0 {
		return nil
	}
	body, err := json.Marshal(h.pending)
	if err != nil {
		diag("http sink: marshal failed: %v", err)
		h.pending = h.pending[:0]
		return nil
	}

	if h.post(body) {
		h.pending = h.pending[:0]
	}
	// On persistent failure the records stay pending; enforceOverflowLocked
	// will trim them on the next call if they accumulate past 2*batch_size.
	return nil
}

func (h *HTTPSink) post(body []byte) bool {
	for attempt := 0; attempt <= h.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), h.cfg.Timeout)
			// Linear backoff: wait `attempt` limiter intervals before retrying.
			for i := 0; i < attempt; i++ {
				_ = h.limiter.Wait(ctx)
			}
			cancel()
		}

		req, err := http.NewRequest(http.MethodPost, h.cfg.Endpoint, bytes.NewReader(body))
		if err != nil {
			diag("http sink: build request: %v", err)
			return false
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := h.client.Do(req)
		if err != nil {
			diag("http sink: attempt %d failed: %v", attempt, err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return true
		}
		diag("http sink: attempt %d got status %d", attempt, resp.StatusCode)
	}
	return false
}

// Sync is a no-op for the HTTP sink: there is no local durable storage to
// fsync, per spec.md §4.5's "no-op for Http".
func (h *HTTPSink) Sync() error { return nil }

// ApplyConfig is a no-op: level filtering is global (spec.md §9 preserves
// the source's global-only threshold) and the HTTP sink has no other
// runtime-mutable field.
func (h *HTTPSink) ApplyConfig(cfg SinkConfig) error { return nil }
