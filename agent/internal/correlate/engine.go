package correlate

import (
	"strings"

	"github.com/obsidianstack/winsight/agent/internal/devices"
	"github.com/obsidianstack/winsight/agent/internal/event"
	"github.com/obsidianstack/winsight/agent/internal/rules"
	"github.com/obsidianstack/winsight/pkg/types"
)

// Composite hint raised when a batch shows both aborted shadow copies and
// NTFS corruption.
const CompositeMessage = "Shadow copies aborted and NTFS corruption detected (sequence)"

// Engine evaluates the rule registry over event batches. An Engine is
// immutable after New and safe for concurrent use; each Correlate call owns
// its accumulator.
type Engine struct {
	registry *Registry
	declared []Rule
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	bdf   devices.BDFOverrides
	rules *rules.Set
}

// WithBDFOverrides sets the operator labels for PCI bus/device/function triples.
func WithBDFOverrides(o devices.BDFOverrides) Option {
	return func(opts *options) { opts.bdf = o }
}

// WithRules adds declared rules, evaluated after the built-in rules.
func WithRules(set *rules.Set) Option {
	return func(opts *options) { opts.rules = set }
}

// New builds an Engine with the built-in registry.
func New(opts ...Option) *Engine {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	reg := NewRegistry()
	registerBuiltins(reg, o.bdf)
	registerCrossCutting(reg)

	e := &Engine{registry: reg}
	if o.rules != nil {
		for i := range o.rules.Rules {
			e.declared = append(e.declared, FromDeclared(&o.rules.Rules[i]))
		}
	}
	return e
}

// FromDeclared converts a compiled declarative rule into a Rule.
func FromDeclared(c *rules.Compiled) Rule {
	r := Rule{
		Provider: c.Provider,
		Any:      c.Substrings,
		Regex:    c.Regex,
		Category: c.Category,
		Severity: c.Severity,
		Message:  c.Message,
	}
	if c.HasEventID {
		r.EventIDs = []int{c.EventID}
	}
	return r
}

// Correlate runs one pass over events and returns the finalized hints.
func (e *Engine) Correlate(events []event.CanonicalEvent) []types.Hint {
	acc := newAccumulator()
	var volsnapAborted, ntfsCorrupt bool

	for i := range events {
		in := newInput(&events[i])

		for _, r := range e.registry.For(in.Event.Provider) {
			evaluate(r, in, acc)
		}
		for _, r := range e.registry.Cross() {
			evaluate(r, in, acc)
		}
		if sev, msg, ok := devices.SmartHint(in.Lower); ok {
			acc.push(CatStorage, sev, msg, "")
		}
		for j := range e.declared {
			evaluate(&e.declared[j], in, acc)
		}

		provider := strings.ToLower(in.Event.Provider)
		if provider == "volsnap" && strings.Contains(in.Lower, "aborted") {
			volsnapAborted = true
		}
		if provider == "microsoft-windows-ntfs" && in.Event.EventID == 55 {
			ntfsCorrupt = true
		}
	}

	if volsnapAborted && ntfsCorrupt {
		acc.push(CatStorage, types.SeverityHigh, CompositeMessage, "")
	}
	return acc.finalize()
}
