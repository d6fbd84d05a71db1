// Package rules loads externally declared hint rules.
//
// A rules file (JSON, or YAML when the extension is .yaml/.yml) holds
// hint_rules plus the event_patterns and file_patterns used for keyword
// counting. Load validates the document against an embedded JSON Schema,
// then compiles each rule. A rule whose regex does not compile, or that has
// neither contains_any nor regex, is skipped and logged; the rest load.
//
// LoadOrEmpty never fails: a missing or invalid file yields an empty Set so
// the analysis continues with built-in rules only. Watch reloads the file on
// change, keeping the previous Set when a reload fails.
package rules
