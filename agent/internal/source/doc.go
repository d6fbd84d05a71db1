// Package source acquires raw event records for the analysis pipeline.
//
// Each Source returns a Batch per Collect call. Records are either raw event
// XML plus a channel hint, left for the normalizer, or events that arrive
// already structured (NDJSON replay, log-file matches).
//
// Implemented sources: archive (archive.go) reads exported event XML, plain
// or zstd-compressed; replay (replay.go) reads NDJSON exports; http (http.go)
// polls a collector endpoint; logfile (logfile.go) scans text logs with the
// configured file patterns. Factory: New(config.Source, filePatterns).
//
// HTTP authentication (mTLS, API key, bearer, basic) is handled by the shared
// authRoundTripper in base.go.
package source
