package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// renderFunc encodes an alert as the request body for one webhook type.
type renderFunc func(a *Alert) ([]byte, error)

var renderers = map[string]renderFunc{
	"slack": renderSlack,
	"teams": renderTeams,
	"http":  renderHTTP,
}

// deliver posts a to every configured webhook whose URL resolves.
// Failures are logged; the caller never sees them.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		render, ok := renderers[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}
		body, err := render(a)
		if err == nil {
			err = e.post(url, body)
		}
		if err != nil {
			slog.Error("alerts: webhook delivery failed", "type", wh.Type, "rule", a.RuleName, "host", a.Host, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "rule", a.RuleName, "state", a.State)
	}
}

// headline is the one-line summary shared by chat targets.
func headline(a *Alert) string {
	if a.State == StateResolved {
		return fmt.Sprintf("[RESOLVED] %s on %s", a.RuleName, a.Host)
	}
	return fmt.Sprintf("%s %s on %s", severityLabel(a.Severity), a.RuleName, a.Host)
}

// facts lists the report fields quoted in chat notifications, in display order.
func facts(a *Alert) [][2]string {
	rc := a.Report
	out := [][2]string{
		{"Performance score", fmt.Sprintf("%d/100", rc.PerformanceScore)},
		{"Risk grade", orNone(rc.RiskGrade)},
	}
	if h := rc.TopHint; h != nil {
		out = append(out, [2]string{"Top hint", fmt.Sprintf("[%s/%s] %s (%d%%)", h.Category, h.Severity, h.Message, h.Probability)})
	}
	if rc.ReportID != "" {
		out = append(out, [2]string{"Report", rc.ReportID})
	}
	return out
}

func renderSlack(a *Alert) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*", headline(a))
	if a.State == StateFiring && a.Message != "" {
		fmt.Fprintf(&b, "\n%s", a.Message)
	}
	for _, f := range facts(a) {
		fmt.Fprintf(&b, "\n• %s: %s", f[0], f[1])
	}
	return json.Marshal(map[string]string{"text": b.String()})
}

type teamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type teamsSection struct {
	Facts []teamsFact `json:"facts"`
}

type teamsCard struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor"`
	Summary    string         `json:"summary"`
	Title      string         `json:"title"`
	Text       string         `json:"text,omitempty"`
	Sections   []teamsSection `json:"sections"`
}

func renderTeams(a *Alert) ([]byte, error) {
	card := teamsCard{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		ThemeColor: severityColor(a.Severity),
		Summary:    a.RuleName,
		Title:      "Winsight: " + headline(a),
		Text:       a.Message,
	}
	if a.State == StateResolved {
		card.ThemeColor = resolvedColor
	}
	var sec teamsSection
	for _, f := range facts(a) {
		sec.Facts = append(sec.Facts, teamsFact{Name: f[0], Value: f[1]})
	}
	card.Sections = []teamsSection{sec}
	return json.Marshal(card)
}

// renderHTTP sends the alert as-is; the report context travels in alert.report.
func renderHTTP(a *Alert) ([]byte, error) {
	return json.Marshal(struct {
		Alert *Alert `json:"alert"`
	}{a})
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}

const resolvedColor = "2EB67D"

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func severityColor(s string) string {
	switch s {
	case "critical":
		return "FF4F6A"
	case "warning":
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
