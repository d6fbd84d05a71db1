package shipper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/obsidianstack/winsight/agent/internal/config"
	"github.com/obsidianstack/winsight/agent/internal/source"
	"github.com/obsidianstack/winsight/pkg/types"
)

// ReportsPath is the server ingest route.
const ReportsPath = "/api/v1/reports"

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second
)

// Shipper buffers reports and posts them to winsight-server.
// Ship() is non-blocking; when the buffer is full the oldest report is evicted.
// Run() must be called in a goroutine to drain the buffer.
type Shipper struct {
	url    string
	client *http.Client
	enc    *zstd.Encoder
	buf    chan *types.Report

	initialBackoff time.Duration
}

// New creates a Shipper for the given server config.
func New(cfg config.ServerConfig) (*Shipper, error) {
	client, err := source.BuildHTTPClient(cfg.Auth, cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("shipper: build http client: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("shipper: zstd encoder: %w", err)
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = config.DefaultBufferSize
	}
	return &Shipper{
		url:            strings.TrimRight(cfg.Endpoint, "/") + ReportsPath,
		client:         client,
		enc:            enc,
		buf:            make(chan *types.Report, size),
		initialBackoff: backoffInitial,
	}, nil
}

// Ship enqueues r. If the buffer is full the oldest entry is evicted to make room.
func (s *Shipper) Ship(r *types.Report) {
	select {
	case s.buf <- r:
	default:
		select {
		case old := <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest report",
				"report", old.ID, "buffer_cap", cap(s.buf))
		default:
		}
		s.buf <- r
	}
}

// Run drains the buffer, posting reports to the server and backing off while
// delivery fails. Run blocks until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff(s.initialBackoff)

	for {
		err := s.drain(ctx, bo)
		if ctx.Err() != nil {
			return
		}

		wait := bo.next()
		slog.Warn("shipper: delivery failed, will retry",
			"url", s.url,
			"err", err,
			"retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// drain sends reports until a transient failure or ctx is cancelled. Each
// delivery resets bo.
func (s *Shipper) drain(ctx context.Context, bo *backoff) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case r := <-s.buf:
			err := s.send(ctx, r)
			if err == nil {
				bo.reset()
				slog.Debug("shipper: report delivered", "report", r.ID, "host", r.Host)
				continue
			}

			var perm *permanentError
			if errors.As(err, &perm) {
				slog.Error("shipper: permanent send error, discarding report",
					"report", r.ID, "err", err)
				continue
			}

			// Requeue if there's room; a newer report supersedes it otherwise.
			select {
			case s.buf <- r:
			default:
			}
			return err
		}
	}
}

// permanentError marks a response the server will never accept.
type permanentError struct {
	status int
	body   string
}

func (e *permanentError) Error() string {
	return fmt.Sprintf("server rejected report: %d %s", e.status, e.body)
}

// isPermanentStatus reports whether code means the report itself is
// unacceptable and should not be retried.
func isPermanentStatus(code int) bool {
	if code < 400 || code >= 500 {
		return false
	}
	return code != http.StatusRequestTimeout && code != http.StatusTooManyRequests
}

func (s *Shipper) send(ctx context.Context, r *types.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return &permanentError{body: err.Error()}
	}
	body := s.enc.EncodeAll(data, nil)

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(sendCtx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return &permanentError{body: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "zstd")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	switch {
	case resp.StatusCode/100 == 2:
		return nil
	case isPermanentStatus(resp.StatusCode):
		return &permanentError{status: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	default:
		return fmt.Errorf("post: unexpected status %d", resp.StatusCode)
	}
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	initial time.Duration
	current time.Duration
}

func newBackoff(initial time.Duration) *backoff {
	return &backoff{initial: initial, current: initial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// Apply ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = b.initial
}
