// Package report assembles the read-only Report aggregate for one analysis
// pass: totals, top-N breakdowns by provider, channel, event id, device and
// domain, matched keyword counts, boot/logon/resume durations, and the
// scored summary from package compute.
//
// compare.go diffs two NDJSON exports.
package report
