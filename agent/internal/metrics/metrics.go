// Package metrics exports the latest report in the Prometheus text format so
// node_exporter's textfile collector can pick it up.
package metrics

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/obsidianstack/winsight/pkg/types"
)

// Metric names.
const (
	PerformanceScore = "winsight_performance_score"
	RiskLevel        = "winsight_risk_level"
	Events           = "winsight_events"
	Hints            = "winsight_hints"
	SignalPoints     = "winsight_score_signal_points"
	ReportTimestamp  = "winsight_report_timestamp_seconds"
)

// Families converts r into metric families sorted by name. Every sample
// carries a host label.
func Families(r *types.Report) []*dto.MetricFamily {
	host := label("host", r.Host)

	events := gaugeFamily(Events, "Events in the analysis window by kind.")
	for _, kv := range []struct {
		kind string
		n    int
	}{
		{"total", r.Total},
		{"error", r.Errors},
		{"warning", r.Warnings},
		{"dropped", r.Dropped},
	} {
		events.Metric = append(events.Metric, gauge(float64(kv.n), host, label("kind", kv.kind)))
	}

	hints := gaugeFamily(Hints, "Hint match counts by category.")
	for _, c := range r.Categories {
		hints.Metric = append(hints.Metric, gauge(float64(c.Count), host, label("category", c.Key)))
	}

	signals := gaugeFamily(SignalPoints, "Points contributed to the performance score by each signal.")
	for _, s := range r.ScoreSignals {
		signals.Metric = append(signals.Metric, gauge(float64(s.Points), host, label("signal", s.Name)))
	}

	score := gaugeFamily(PerformanceScore, "Composite degradation score, 0 to 100.")
	score.Metric = append(score.Metric, gauge(float64(r.PerformanceScore), host))

	risk := gaugeFamily(RiskLevel, "Risk grade as a number: 1 Low, 2 Medium, 3 High, 4 Critical.")
	risk.Metric = append(risk.Metric, gauge(float64(types.RiskLevel(r.RiskGrade)), host))

	ts := gaugeFamily(ReportTimestamp, "Unix time the report was generated.")
	ts.Metric = append(ts.Metric, gauge(float64(r.GeneratedAt.Unix()), host))

	fams := []*dto.MetricFamily{events, hints, score, risk, signals, ts}
	out := fams[:0]
	for _, f := range fams {
		if len(f.Metric) > 0 {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

// WriteTextfile renders r to path atomically.
func WriteTextfile(path string, r *types.Report) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("metrics: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	for _, mf := range Families(r) {
		if _, err := expfmt.MetricFamilyToText(bw, mf); err != nil {
			tmp.Close()
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("metrics: close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("metrics: rename %s: %w", path, err)
	}
	return nil
}

func gaugeFamily(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: &name,
		Help: &help,
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func gauge(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: labels, Gauge: &dto.Gauge{Value: &v}}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: &name, Value: &value}
}
