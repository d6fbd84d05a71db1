package receiver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/obsidianstack/winsight/pkg/types"
	"github.com/obsidianstack/winsight/server/internal/metrics"
	"github.com/obsidianstack/winsight/server/internal/store"
)

// Evaluator receives every accepted report.
type Evaluator interface {
	Evaluate(r *types.Report)
}

// Receiver is the report ingest handler.
type Receiver struct {
	store   *store.Store
	eval    Evaluator
	metrics *metrics.Metrics
	maxBody int64
}

// New creates a Receiver that writes accepted reports to st. eval and m may
// be nil.
func New(st *store.Store, eval Evaluator, m *metrics.Metrics, maxBody int64) *Receiver {
	return &Receiver{store: st, eval: eval, metrics: m, maxBody: maxBody}
}

var errTooLarge = errors.New("report body too large")

// ServeHTTP validates the report, stores it, and answers 202.
func (rc *Receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := rc.readBody(r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		rc.reject(w, "body", status, err)
		return
	}

	var rep types.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		rc.reject(w, "decode", http.StatusBadRequest, fmt.Errorf("decode report: %w", err))
		return
	}
	if rep.Host == "" {
		rc.reject(w, "invalid", http.StatusBadRequest, errors.New("host is required"))
		return
	}

	rc.store.Put(&rep)
	if rc.eval != nil {
		rc.eval.Evaluate(&rep)
	}
	if rc.metrics != nil {
		rc.metrics.ReportsReceived.Inc()
	}

	slog.Debug("receiver: report stored",
		"host", rep.Host,
		"report", rep.ID,
		"score", rep.PerformanceScore,
		"risk", rep.RiskGrade,
		"hints", len(rep.Hints),
	)
	w.WriteHeader(http.StatusAccepted)
}

// readBody returns the decoded request body, at most maxBody bytes.
func (rc *Receiver) readBody(r *http.Request) ([]byte, error) {
	var body io.Reader = r.Body
	switch enc := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
	case "zstd":
		dec, err := zstd.NewReader(r.Body, zstd.WithDecoderMaxMemory(uint64(rc.maxBody)))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()
		body = dec
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", enc)
	}

	data, err := io.ReadAll(io.LimitReader(body, rc.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > rc.maxBody {
		return nil, errTooLarge
	}
	return data, nil
}

func (rc *Receiver) reject(w http.ResponseWriter, reason string, status int, err error) {
	if rc.metrics != nil {
		rc.metrics.ReportsRejected.WithLabelValues(reason).Inc()
	}
	slog.Warn("receiver: report rejected", "reason", reason, "err", err)
	http.Error(w, err.Error(), status)
}
