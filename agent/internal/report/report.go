package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/obsidianstack/winsight/agent/internal/compute"
	"github.com/obsidianstack/winsight/agent/internal/devices"
	"github.com/obsidianstack/winsight/agent/internal/event"
	"github.com/obsidianstack/winsight/agent/internal/rules"
	"github.com/obsidianstack/winsight/pkg/types"
)

// DefaultTopN caps breakdowns when Options.TopN is not positive.
const DefaultTopN = 10

// deviceFields are the payload keys that name a device, in lookup order.
var deviceFields = []string{"DeviceName", "TargetDevice", "Device", "InstancePath", "PhysicalDeviceObjectName"}

// Options configures a Builder.
type Options struct {
	TopN int
	// Resolver labels device ids in the device breakdown. Nil resolves nothing.
	Resolver devices.Resolver
	// EventPatterns are counted over event content, case-insensitively.
	EventPatterns []string
	Samples       SampleOptions
}

// Builder assembles Reports. It is safe for concurrent use.
type Builder struct {
	topN     int
	resolver devices.Resolver
	terms    []string
	patterns []*regexp.Regexp
	samples  SampleOptions

	newID func() string
	now   func() time.Time
}

// NewBuilder compiles opts.EventPatterns, skipping invalid ones.
func NewBuilder(opts Options) *Builder {
	b := &Builder{
		topN:     opts.TopN,
		resolver: opts.Resolver,
		samples:  opts.Samples,
		newID:    uuid.NewString,
		now:      time.Now,
	}
	if b.topN <= 0 {
		b.topN = DefaultTopN
	}
	if b.samples.Count == 0 {
		b.samples.Count = b.topN
	}
	if b.resolver == nil {
		b.resolver = devices.NopResolver
	}
	b.terms, b.patterns = rules.CompilePatterns(opts.EventPatterns)
	return b
}

// Input is one finalized pass.
type Input struct {
	Host        string
	Events      []event.CanonicalEvent
	Hints       []types.Hint
	WindowStart time.Time
	WindowEnd   time.Time
	// Dropped counts raw records the normalizer rejected.
	Dropped   int
	FileTerms []types.FileTerm
}

// Build derives the Report for in.
func (b *Builder) Build(in Input) *types.Report {
	r := &types.Report{
		ID:          b.newID(),
		Host:        in.Host,
		GeneratedAt: b.now().UTC(),
		WindowStart: in.WindowStart.UTC(),
		WindowEnd:   in.WindowEnd.UTC(),
		Total:       len(in.Events),
		Dropped:     in.Dropped,
		FileTerms:   in.FileTerms,
		Hints:       in.Hints,
	}
	if r.Hints == nil {
		r.Hints = []types.Hint{}
	}

	providers := newCounter()
	channels := newCounter()
	ids := newCounter()
	devs := newCounter()
	domains := newCounter()
	for i := range in.Events {
		ev := &in.Events[i]
		switch ev.Level {
		case event.LevelError:
			r.Errors++
		case event.LevelWarning:
			r.Warnings++
		}
		providers.add(ev.Provider)
		channels.add(ev.Channel)
		ids.add(strconv.Itoa(ev.EventID))
		if d := b.deviceLabel(ev); d != "" {
			devs.add(d)
		}
		domains.add(ClassifyDomain(ev))
	}
	r.ByProvider = providers.top(b.topN)
	r.ByChannel = channels.top(b.topN)
	r.ByEventID = ids.top(b.topN)
	r.ByDevice = devs.top(b.topN)
	r.ByDomain = domains.top(b.topN)
	r.MatchedTerms = b.matchTerms(in.Events)
	r.Perf = Perf(in.Events)
	r.Samples = samples(in.Events, b.samples)

	compute.Compute(compute.Input{
		Events:      in.Events,
		Hints:       in.Hints,
		WindowStart: in.WindowStart,
		WindowEnd:   in.WindowEnd,
	}).Apply(r)
	return r
}

// DeviceKey returns the first non-empty device field of ev's payload.
func DeviceKey(ev *event.CanonicalEvent) string {
	return ev.Field(deviceFields...)
}

func (b *Builder) deviceLabel(ev *event.CanonicalEvent) string {
	id := DeviceKey(ev)
	if id == "" {
		return ""
	}
	if name, ok := b.resolver.Resolve(id); ok {
		return name + " (" + id + ")"
	}
	return id
}

// matchTerms counts, per pattern, the events whose content matches it.
// Patterns with no matches are omitted.
func (b *Builder) matchTerms(events []event.CanonicalEvent) []types.CountRow {
	c := newCounter()
	for i, re := range b.patterns {
		for j := range events {
			if re.MatchString(events[j].Content) {
				c.add(b.terms[i])
			}
		}
	}
	return c.top(0)
}

// WriteFile writes r as indented JSON to path via a temporary file and rename.
func WriteFile(path string, r *types.Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal: %w", err)
	}
	return writeAtomic(path, append(data, '\n'))
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("report: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("report: close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("report: rename %s: %w", path, err)
	}
	return nil
}

// counter tallies string keys.
type counter map[string]int

func newCounter() counter { return make(counter) }

func (c counter) add(k string) { c[k]++ }

// top returns rows sorted by count descending, then key, truncated to n.
// n <= 0 keeps every row.
func (c counter) top(n int) []types.CountRow {
	rows := make([]types.CountRow, 0, len(c))
	for k, v := range c {
		rows = append(rows, types.CountRow{Key: k, Count: v})
	}
	sortRows(rows)
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

func sortRows(rows []types.CountRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Key < rows[j].Key
	})
}
