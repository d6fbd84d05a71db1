package rules

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Rule defaults.
const (
	DefaultCategory = "General"
	DefaultSeverity = "medium"
)

// ErrNoMatchers is returned for a rule that declares neither contains_any nor regex.
var ErrNoMatchers = errors.New("rule has neither contains_any nor regex")

// Document is the on-disk rules file.
type Document struct {
	EventPatterns []string `json:"event_patterns,omitempty" yaml:"event_patterns"`
	FilePatterns  []string `json:"file_patterns,omitempty" yaml:"file_patterns"`
	HintRules     []Rule   `json:"hint_rules,omitempty" yaml:"hint_rules"`
}

// Rule is one declarative hint rule. Provider and EventID filters are ANDed;
// ContainsAny (case-insensitive) and Regex are ORed.
type Rule struct {
	Provider    string   `json:"provider,omitempty" yaml:"provider"`
	EventID     *int     `json:"event_id,omitempty" yaml:"event_id"`
	ContainsAny []string `json:"contains_any,omitempty" yaml:"contains_any"`
	Regex       string   `json:"regex,omitempty" yaml:"regex"`
	Category    string   `json:"category,omitempty" yaml:"category"`
	Severity    string   `json:"severity,omitempty" yaml:"severity"`
	Message     string   `json:"message" yaml:"message"`
}

// Compiled is a validated Rule ready for matching.
type Compiled struct {
	Provider string
	EventID  int
	// HasEventID is false when the rule matches any event id.
	HasEventID bool
	// Substrings are lowercased.
	Substrings []string
	Regex      *regexp.Regexp
	Category   string
	Severity   string
	Message    string
}

// Set is the compiled content of one rules file.
type Set struct {
	Rules         []Compiled
	EventPatterns []string
	FilePatterns  []string
}

// Empty reports whether s declares nothing.
func (s *Set) Empty() bool {
	return s == nil || (len(s.Rules) == 0 && len(s.EventPatterns) == 0 && len(s.FilePatterns) == 0)
}

// Compile checks and compiles one rule.
func Compile(r Rule) (Compiled, error) {
	if strings.TrimSpace(r.Message) == "" {
		return Compiled{}, errors.New("rule message is required")
	}
	subs := make([]string, 0, len(r.ContainsAny))
	for _, s := range r.ContainsAny {
		if s != "" {
			subs = append(subs, strings.ToLower(s))
		}
	}
	var re *regexp.Regexp
	if r.Regex != "" {
		var err error
		if re, err = regexp.Compile(r.Regex); err != nil {
			if len(subs) == 0 {
				return Compiled{}, fmt.Errorf("%w: compile regex %q: %v", ErrNoMatchers, r.Regex, err)
			}
			slog.Warn("rules: skipping invalid regex, keeping substrings", "message", r.Message, "regex", r.Regex, "err", err)
		}
	}
	if len(subs) == 0 && re == nil {
		return Compiled{}, ErrNoMatchers
	}

	c := Compiled{
		Provider:   r.Provider,
		Substrings: subs,
		Regex:      re,
		Category:   r.Category,
		Severity:   strings.ToLower(r.Severity),
		Message:    r.Message,
	}
	if c.Category == "" {
		c.Category = DefaultCategory
	}
	if c.Severity == "" {
		c.Severity = DefaultSeverity
	}
	if r.EventID != nil {
		c.EventID, c.HasEventID = *r.EventID, true
	}
	return c, nil
}

// CompileDocument compiles every rule in doc, skipping and logging the ones
// that fail.
func CompileDocument(doc Document) *Set {
	set := &Set{
		EventPatterns: doc.EventPatterns,
		FilePatterns:  doc.FilePatterns,
	}
	for i, r := range doc.HintRules {
		c, err := Compile(r)
		if err != nil {
			slog.Warn("rules: skipping invalid rule", "index", i, "message", r.Message, "err", err)
			continue
		}
		set.Rules = append(set.Rules, c)
	}
	return set
}

// CompilePatterns compiles case-insensitive keyword patterns, skipping and
// logging any that fail. The returned slices are index-aligned.
func CompilePatterns(patterns []string) ([]string, []*regexp.Regexp) {
	names := make([]string, 0, len(patterns))
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			slog.Warn("rules: skipping invalid pattern", "pattern", p, "err", err)
			continue
		}
		names = append(names, p)
		out = append(out, re)
	}
	return names, out
}
