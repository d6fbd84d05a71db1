// Package pipeline wires sources, the normalizer, the correlation engine and
// the report builder into one analysis pass.
//
// Once mode analyses everything the sources return. Watch mode (Tick) feeds a
// sliding window and re-runs the full pass over its contents; hints are never
// updated incrementally.
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/obsidianstack/winsight/agent/internal/correlate"
	"github.com/obsidianstack/winsight/agent/internal/decode"
	"github.com/obsidianstack/winsight/agent/internal/devices"
	"github.com/obsidianstack/winsight/agent/internal/event"
	"github.com/obsidianstack/winsight/agent/internal/report"
	"github.com/obsidianstack/winsight/agent/internal/rules"
	"github.com/obsidianstack/winsight/agent/internal/source"
	"github.com/obsidianstack/winsight/agent/internal/window"
	"github.com/obsidianstack/winsight/pkg/types"
)

// Options configures a Pipeline.
type Options struct {
	Host          string
	Window        time.Duration
	TopN          int
	Resolver      devices.Resolver
	EventPatterns []string
	Samples       report.SampleOptions
	BDFOverrides  []devices.BDFOverride
	Rules         *rules.Set
}

// Result is the outcome of one pass.
type Result struct {
	Report *types.Report
	// Events are the analysed events, ordered by time.
	Events []event.CanonicalEvent
}

// Pipeline runs analysis passes. Tick and Once must not be called
// concurrently; SetRules may be called at any time.
type Pipeline struct {
	host    string
	sources []source.Source
	bdf     devices.BDFOverrides
	engine  atomic.Pointer[correlate.Engine]
	builder *report.Builder
	win     *window.Window
	now     func() time.Time
}

// New builds a Pipeline over sources.
func New(opts Options, sources []source.Source) *Pipeline {
	p := &Pipeline{
		host:    opts.Host,
		sources: sources,
		bdf:     devices.NewBDFOverrides(opts.BDFOverrides),
		builder: report.NewBuilder(report.Options{
			TopN:          opts.TopN,
			Resolver:      opts.Resolver,
			EventPatterns: opts.EventPatterns,
			Samples:       opts.Samples,
		}),
		win: window.New(opts.Window),
		now: time.Now,
	}
	p.SetRules(opts.Rules)
	return p
}

// SetRules swaps the declared rule set used by subsequent passes.
func (p *Pipeline) SetRules(set *rules.Set) {
	opts := []correlate.Option{correlate.WithBDFOverrides(p.bdf)}
	if set != nil {
		opts = append(opts, correlate.WithRules(set))
	}
	p.engine.Store(correlate.New(opts...))
}

// collected is the normalized output of every source for one pass.
type collected struct {
	events  []event.CanonicalEvent
	dropped int
	terms   []types.FileTerm
}

// collect reads every source. A failing source is logged and skipped.
func (p *Pipeline) collect(ctx context.Context) collected {
	var c collected
	for _, src := range p.sources {
		b, err := src.Collect(ctx)
		if err != nil {
			slog.Warn("pipeline: collect failed", "source", src.ID(), "err", err)
			continue
		}
		c.dropped += b.Skipped
		c.terms = append(c.terms, b.FileTerms...)
		for _, rec := range b.Records {
			ev, ok := Normalize(rec)
			if !ok {
				c.dropped++
				continue
			}
			c.events = append(c.events, ev)
		}
		slog.Debug("pipeline: collected", "source", src.ID(), "records", len(b.Records), "skipped", b.Skipped)
	}
	return c
}

// Normalize turns one acquired record into an enriched canonical event.
func Normalize(rec source.Record) (event.CanonicalEvent, bool) {
	var ev event.CanonicalEvent
	if rec.Event != nil {
		ev = *rec.Event
		if ev.Channel == "" {
			ev.Channel = rec.Channel
		}
	} else {
		parsed, ok := event.Normalize(rec.Raw, rec.Channel)
		if !ok {
			return event.CanonicalEvent{}, false
		}
		ev = *parsed
	}
	return decode.Enrich(ev), true
}

// Once collects from every source and analyses all of it. The window bounds
// are the trailing window [now-span, now], widened to cover any event that
// falls outside it, so timeline granularity follows the configured window.
func (p *Pipeline) Once(ctx context.Context) *Result {
	c := p.collect(ctx)
	sort.SliceStable(c.events, func(i, j int) bool { return c.events[i].Time.Before(c.events[j].Time) })
	end := p.now().UTC()
	start := end.Add(-p.win.Span())
	if n := len(c.events); n > 0 {
		if first := c.events[0].Time; first.Before(start) {
			start = first
		}
		if last := c.events[n-1].Time; last.After(end) {
			end = last
		}
	}
	return p.analyze(c, c.events, start, end)
}

// Tick collects new records into the sliding window, evicts expired events
// and analyses the window contents.
func (p *Pipeline) Tick(ctx context.Context) *Result {
	c := p.collect(ctx)
	added := p.win.Add(c.events)
	evicted := p.win.Evict(p.now())
	slog.Debug("pipeline: window updated", "added", added, "evicted", evicted, "held", p.win.Len())
	start, end := p.win.Bounds()
	return p.analyze(c, p.win.Events(), start, end)
}

func (p *Pipeline) analyze(c collected, events []event.CanonicalEvent, start, end time.Time) *Result {
	hints := p.engine.Load().Correlate(events)
	r := p.builder.Build(report.Input{
		Host:        p.host,
		Events:      events,
		Hints:       hints,
		WindowStart: start,
		WindowEnd:   end,
		Dropped:     c.dropped,
		FileTerms:   c.terms,
	})
	return &Result{Report: r, Events: events}
}
