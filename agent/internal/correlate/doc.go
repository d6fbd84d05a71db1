// Package correlate runs the hint rules over a batch of canonical events.
//
// Rules live in a Registry: an ordered rule list per provider (several
// provider names may share one list) plus a cross-cutting list applied to
// every event. Built-in and declared rules are the same Rule type and go
// through the same evaluate function.
//
// For each event, in order: the provider rules, the cross-cutting rules,
// the SMART wording check, then declared rules. Every match is pushed into
// one accumulator keyed by (category, severity, message): count increments
// and up to three non-empty evidence strings are kept. After the pass a
// composite storage hint is added when the batch holds both an aborted
// shadow copy and NTFS corruption (event 55), probabilities are computed,
// and hints are sorted by count, then category, then message.
//
// One event may feed several hints in different categories; category totals
// are therefore not a partition of the events.
package correlate
