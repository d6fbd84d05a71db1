// Package metrics exposes winsight-server state on /metrics. Per-host gauges
// are read from the report store at scrape time, so evicted hosts disappear
// without explicit cleanup.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/obsidianstack/winsight/pkg/types"
	"github.com/obsidianstack/winsight/server/internal/store"
)

// Metrics owns the server registry.
type Metrics struct {
	registry *prometheus.Registry

	// ReportsReceived counts accepted reports.
	ReportsReceived prometheus.Counter
	// ReportsRejected counts rejected ingest requests by reason.
	ReportsRejected *prometheus.CounterVec
}

// New registers the ingest counters and a collector over st.
func New(st *store.Store) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ReportsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "winsight_reports_received_total",
			Help: "Reports accepted from agents.",
		}),
		ReportsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "winsight_reports_rejected_total",
			Help: "Report ingest requests rejected, by reason.",
		}, []string{"reason"}),
	}
	m.registry.MustRegister(m.ReportsReceived, m.ReportsRejected, newHostCollector(st))
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gather returns the current metric families.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	return m.registry.Gather()
}

// hostCollector reports the latest report of every live host.
type hostCollector struct {
	st *store.Store

	score *prometheus.Desc
	risk  *prometheus.Desc
	hints *prometheus.Desc
}

func newHostCollector(st *store.Store) *hostCollector {
	return &hostCollector{
		st: st,
		score: prometheus.NewDesc("winsight_host_performance_score",
			"Latest composite degradation score per host, 0 to 100.",
			[]string{"host"}, nil),
		risk: prometheus.NewDesc("winsight_host_risk_level",
			"Latest risk grade per host: 1 Low, 2 Medium, 3 High, 4 Critical.",
			[]string{"host"}, nil),
		hints: prometheus.NewDesc("winsight_host_hints",
			"Hint match counts per host and category.",
			[]string{"host", "category"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *hostCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.score
	ch <- c.risk
	ch <- c.hints
}

// Collect implements prometheus.Collector.
func (c *hostCollector) Collect(ch chan<- prometheus.Metric) {
	for _, e := range c.st.List() {
		r := e.Report
		ch <- prometheus.MustNewConstMetric(c.score, prometheus.GaugeValue, float64(r.PerformanceScore), r.Host)
		ch <- prometheus.MustNewConstMetric(c.risk, prometheus.GaugeValue, float64(types.RiskLevel(r.RiskGrade)), r.Host)
		for _, cat := range r.Categories {
			ch <- prometheus.MustNewConstMetric(c.hints, prometheus.GaugeValue, float64(cat.Count), r.Host, cat.Key)
		}
	}
}
