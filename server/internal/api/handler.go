package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/obsidianstack/winsight/pkg/types"
	"github.com/obsidianstack/winsight/server/internal/alerts"
	"github.com/obsidianstack/winsight/server/internal/store"
)

// AlertSource lists the alerts to expose. *alerts.Engine satisfies it.
type AlertSource interface {
	Active() []*alerts.Alert
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads host reports from the store and returns JSON responses.
type Handler struct {
	store  *store.Store
	alerts AlertSource
	mux    *http.ServeMux
}

// New creates a Handler wired to the given store and alert source and
// registers all routes. al may be nil, in which case /api/v1/alerts is empty.
func New(st *store.Store, al AlertSource) http.Handler {
	h := &Handler{store: st, alerts: al, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/hosts", h.listHosts)
	h.mux.HandleFunc("/api/v1/hosts/", h.hostSubtree) // {id} and {id}/hints
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// BuildSnapshot returns the summaries of all live hosts. The WebSocket hub
// broadcasts the same payload.
func BuildSnapshot(st *store.Store) SnapshotResponse {
	entries := st.List()
	hosts := make([]HostSummary, 0, len(entries))
	for _, e := range entries {
		hosts = append(hosts, toHostSummary(e))
	}
	return SnapshotResponse{
		Hosts:       hosts,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}

	entries := h.store.List()
	resp := HealthResponse{HostCount: len(entries), RiskGrade: "unknown"}
	if h.alerts != nil {
		for _, a := range h.alerts.Active() {
			if a.State == alerts.StateFiring {
				resp.AlertCount++
			}
		}
	}
	if len(entries) == 0 {
		jsonResp(w, http.StatusOK, resp)
		return
	}

	var totalScore, worst int
	for _, e := range entries {
		totalScore += e.Report.PerformanceScore
		level := types.RiskLevel(e.Report.RiskGrade)
		switch level {
		case 1:
			resp.LowCount++
		case 2:
			resp.MediumCount++
		case 3:
			resp.HighCount++
		case 4:
			resp.CriticalCount++
		}
		if level > worst {
			worst = level
			resp.RiskGrade = e.Report.RiskGrade
		}
	}
	resp.OverallScore = float64(totalScore) / float64(len(entries))
	jsonResp(w, http.StatusOK, resp)
}

// listHosts returns GET /api/v1/hosts.
func (h *Handler) listHosts(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store).Hosts)
}

// hostSubtree dispatches /api/v1/hosts/{id} and /api/v1/hosts/{id}/hints.
func (h *Handler) hostSubtree(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/hosts/"), "/")
	if rest == "" {
		h.listHosts(w, r)
		return
	}
	id, sub, _ := strings.Cut(rest, "/")

	e, ok := h.liveEntry(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "host not found")
		return
	}

	switch sub {
	case "":
		jsonResp(w, http.StatusOK, HostResponse{
			LastSeen: e.UpdatedAt.UTC().Format(time.RFC3339),
			Report:   e.Report,
		})
	case "hints":
		jsonResp(w, http.StatusOK, filterHints(e.Report.Hints,
			r.URL.Query().Get("severity"), r.URL.Query().Get("category")))
	default:
		jsonErr(w, http.StatusNotFound, "not found")
	}
}

// listAlerts returns GET /api/v1/alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	out := []*alerts.Alert{}
	if h.alerts != nil {
		out = append(out, h.alerts.Active()...)
	}
	jsonResp(w, http.StatusOK, out)
}

// snapshot returns GET /api/v1/snapshot.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store))
}

// --- helpers ----------------------------------------------------------------

// liveEntry returns the entry for id unless it is missing or stale.
func (h *Handler) liveEntry(id string) (*store.Entry, bool) {
	e, ok := h.store.Get(id)
	if !ok {
		return nil, false
	}
	if ttl := h.store.TTL(); ttl > 0 && time.Since(e.UpdatedAt) > ttl {
		return nil, false
	}
	return e, true
}

func requireGET(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// filterHints keeps hints matching severity and category (case-insensitive).
// Empty filters match everything.
func filterHints(hints []types.Hint, severity, category string) []types.Hint {
	out := make([]types.Hint, 0, len(hints))
	for _, hint := range hints {
		if severity != "" && !strings.EqualFold(hint.Severity, severity) {
			continue
		}
		if category != "" && !strings.EqualFold(hint.Category, category) {
			continue
		}
		out = append(out, hint)
	}
	return out
}

// toHostSummary maps a store.Entry to its JSON summary.
func toHostSummary(e *store.Entry) HostSummary {
	rep := e.Report
	s := HostSummary{
		Host:             rep.Host,
		ReportID:         rep.ID,
		PerformanceScore: rep.PerformanceScore,
		RiskGrade:        rep.RiskGrade,
		Total:            rep.Total,
		Errors:           rep.Errors,
		Warnings:         rep.Warnings,
		Dropped:          rep.Dropped,
		HintCount:        len(rep.Hints),
		WindowStart:      rep.WindowStart.UTC().Format(time.RFC3339),
		WindowEnd:        rep.WindowEnd.UTC().Format(time.RFC3339),
		LastSeen:         e.UpdatedAt.UTC().Format(time.RFC3339),
	}
	for _, hint := range rep.Hints {
		if hint.Severity == types.SeverityHigh {
			s.HighHints++
		}
	}
	if len(rep.Categories) > 0 {
		s.TopCategory = rep.Categories[0].Key
	}
	return s
}
