package correlate

import (
	"regexp"
	"strings"

	"github.com/obsidianstack/winsight/agent/internal/event"
)

// Input is the per-event view shared by all rules.
type Input struct {
	Event *event.CanonicalEvent
	// Text is the event's match text; Lower is its lowercase form.
	Text  string
	Lower string
}

func newInput(ev *event.CanonicalEvent) *Input {
	text := ev.Text()
	return &Input{Event: ev, Text: text, Lower: strings.ToLower(text)}
}

// Field returns the first non-empty payload value among keys.
func (in *Input) Field(keys ...string) string { return in.Event.Field(keys...) }

// Has reports whether the lowercase text contains any of subs.
func (in *Input) Has(subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(in.Lower, s) {
			return true
		}
	}
	return false
}

// Rule matches events and names the hint they produce. All set filters must
// pass. Any and Regex are alternatives: when either is set, the text must
// contain one of Any or match Regex.
type Rule struct {
	// Provider restricts the rule to one exact provider name. Rules stored
	// under a provider in the Registry leave it empty.
	Provider string
	// EventIDs restricts the rule to these ids; empty means any id.
	EventIDs []int
	// Any holds lowercase substrings.
	Any   []string
	Regex *regexp.Regexp
	// When is an extra predicate.
	When func(in *Input) bool

	Category string
	Severity string
	Message  string
	// Build overrides Severity and Message for rules whose wording depends
	// on the event.
	Build func(in *Input) (severity, message string)
	// Evidence returns the example string recorded with the match.
	Evidence func(in *Input) string
}

// matches applies the rule's filters to in.
func (r *Rule) matches(in *Input) bool {
	ev := in.Event
	if r.Provider != "" && r.Provider != ev.Provider {
		return false
	}
	if len(r.EventIDs) > 0 && !containsID(r.EventIDs, ev.EventID) {
		return false
	}
	if len(r.Any) > 0 || r.Regex != nil {
		if !in.Has(r.Any...) && (r.Regex == nil || !r.Regex.MatchString(in.Text)) {
			return false
		}
	}
	if r.When != nil && !r.When(in) {
		return false
	}
	return true
}

// evaluate pushes the rule's hint into acc when it matches in.
func evaluate(r *Rule, in *Input, acc *accumulator) bool {
	if !r.matches(in) {
		return false
	}
	sev, msg := r.Severity, r.Message
	if r.Build != nil {
		sev, msg = r.Build(in)
	}
	var evidence string
	if r.Evidence != nil {
		evidence = r.Evidence(in)
	}
	acc.push(r.Category, sev, msg, evidence)
	return true
}

func containsID(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// field builds an Evidence func reading the first non-empty payload key.
func field(keys ...string) func(in *Input) string {
	return func(in *Input) string { return in.Field(keys...) }
}

// hasAll builds a When predicate requiring every group to have a match.
func hasAll(groups ...[]string) func(in *Input) bool {
	return func(in *Input) bool {
		for _, g := range groups {
			if !in.Has(g...) {
				return false
			}
		}
		return true
	}
}
