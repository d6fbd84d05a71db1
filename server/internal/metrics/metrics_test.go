package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/obsidianstack/winsight/pkg/types"
	"github.com/obsidianstack/winsight/server/internal/store"
)

func family(t *testing.T, m *Metrics, name string) *dto.MetricFamily {
	t.Helper()
	fams, err := m.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range fams {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestHostCollector(t *testing.T) {
	st := store.New(time.Hour)
	st.Put(&types.Report{
		Host:             "ws-01",
		PerformanceScore: 55,
		RiskGrade:        types.RiskHigh,
		Categories:       []types.CountRow{{Key: "Storage", Count: 3}, {Key: "Network", Count: 1}},
	})
	st.Put(&types.Report{Host: "ws-02", PerformanceScore: 5, RiskGrade: types.RiskLow})
	m := New(st)

	score := family(t, m, "winsight_host_performance_score")
	if score == nil || len(score.GetMetric()) != 2 {
		t.Fatalf("winsight_host_performance_score = %v, want 2 samples", score)
	}
	risk := family(t, m, "winsight_host_risk_level")
	for _, s := range risk.GetMetric() {
		host := s.GetLabel()[0].GetValue()
		want := map[string]float64{"ws-01": 3, "ws-02": 1}[host]
		if got := s.GetGauge().GetValue(); got != want {
			t.Errorf("risk_level{host=%s} = %v, want %v", host, got, want)
		}
	}
	if hints := family(t, m, "winsight_host_hints"); hints == nil || len(hints.GetMetric()) != 2 {
		t.Errorf("winsight_host_hints = %v, want 2 samples", hints)
	}
}

func TestReportsReceived(t *testing.T) {
	m := New(store.New(time.Hour))
	m.ReportsReceived.Inc()
	m.ReportsReceived.Inc()
	m.ReportsRejected.WithLabelValues("decode").Inc()

	f := family(t, m, "winsight_reports_received_total")
	if f == nil || f.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Errorf("winsight_reports_received_total = %v, want 2", f)
	}
	if f := family(t, m, "winsight_reports_rejected_total"); f == nil {
		t.Error("winsight_reports_rejected_total missing")
	}
}

func TestHandler(t *testing.T) {
	st := store.New(time.Hour)
	st.Put(&types.Report{Host: "ws-01", PerformanceScore: 42, RiskGrade: types.RiskMedium})
	m := New(st)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `winsight_host_performance_score{host="ws-01"} 42`) {
		t.Errorf("/metrics body missing host score:\n%s", body)
	}
}
