package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/obsidianstack/winsight/pkg/types"
	"github.com/obsidianstack/winsight/server/internal/config"
)

const (
	defaultCooldown   = 15 * time.Minute
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	Host       string     `json:"host"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"`

	// Report describes the report that fired or resolved the alert.
	Report ReportContext `json:"report"`
}

// ReportContext is the slice of a report quoted in alert notifications.
type ReportContext struct {
	ReportID         string      `json:"report_id"`
	PerformanceScore int         `json:"performance_score"`
	RiskGrade        string      `json:"risk_grade"`
	TopHint          *types.Hint `json:"top_hint,omitempty"`
}

// contextOf extracts the notification context from r. The top hint is the
// one with the highest probability, earliest in report order on ties.
func contextOf(r *types.Report) ReportContext {
	rc := ReportContext{
		ReportID:         r.ID,
		PerformanceScore: r.PerformanceScore,
		RiskGrade:        r.RiskGrade,
	}
	for i := range r.Hints {
		if rc.TopHint == nil || r.Hints[i].Probability > rc.TopHint.Probability {
			h := r.Hints[i]
			rc.TopHint = &h
		}
	}
	return rc
}

// Engine evaluates alert rules against incoming reports and delivers
// webhook notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules    []config.AlertRule
	webhooks []config.WebhookConfig

	mu       sync.Mutex
	active   map[string]*Alert    // key: "ruleName:host"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts
	client   *http.Client
	now      func() time.Time
	deliverF func(*Alert)
}

// New creates an Engine from the server alert configuration.
// An Engine with empty rules is valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	e := &Engine{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
	e.deliverF = func(a *Alert) { go e.deliver(a) }
	return e
}

// Evaluate tests all configured rules against r.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing but whose condition is now false are resolved.
func (e *Engine) Evaluate(r *types.Report) {
	if len(e.rules) == 0 {
		return
	}

	now := e.now()
	rc := contextOf(r)
	for _, rule := range e.rules {
		key := rule.Name + ":" + r.Host
		fires, value := evalCondition(rule.Condition, r)

		e.mu.Lock()
		var notify *Alert
		if fires {
			notify = e.fire(rule, key, r.Host, value, rc, now)
		} else {
			notify = e.resolve(key, rc, now)
		}
		e.mu.Unlock()

		if notify != nil {
			e.deliverF(notify)
		}
	}
}

// fire records a firing alert unless the rule is cooling down for this host.
// It returns a copy to deliver, or nil. e.mu must be held.
func (e *Engine) fire(rule config.AlertRule, key, host string, value float64, rc ReportContext, now time.Time) *Alert {
	cooldown := rule.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if last, ok := e.lastFire[key]; ok && now.Sub(last) <= cooldown {
		return nil
	}
	sev := rule.Severity
	if sev == "" {
		sev = "warning"
	}
	a := &Alert{
		ID:       fmt.Sprintf("%s:%s:%d", rule.Name, host, now.UnixNano()),
		RuleName: rule.Name,
		Host:     host,
		Severity: sev,
		Value:    value,
		Message: fmt.Sprintf("[%s] %s fired on %s: %s (value %.0f)",
			sev, rule.Name, host, rule.Condition, value),
		FiredAt: now,
		State:   StateFiring,
		Report:  rc,
	}
	e.active[key] = a
	e.lastFire[key] = now

	slog.Warn("alert fired",
		"rule", rule.Name,
		"host", host,
		"value", value,
		"severity", sev,
	)
	cp := *a
	return &cp
}

// resolve moves a firing alert to history. It returns a copy to deliver, or
// nil when nothing was firing. e.mu must be held.
func (e *Engine) resolve(key string, rc ReportContext, now time.Time) *Alert {
	a, ok := e.active[key]
	if !ok {
		return nil
	}
	resolved := now
	a.State = StateResolved
	a.ResolvedAt = &resolved
	a.Report = rc
	delete(e.active, key)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}

	slog.Info("alert resolved", "rule", a.RuleName, "host", a.Host)
	cp := *a
	return &cp
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FiredAt.Equal(out[j].FiredAt) {
			return out[i].FiredAt.After(out[j].FiredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
