// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config{Agent}: the full tree parsed from YAML
//   - AgentConfig: id, interval, window, log_level, top_n, sources[],
//     rules_file, bdf_overrides, devices, event_patterns, file_patterns,
//     output, server
//   - Source: id, type (archive|replay|http|logfile), path, glob, channel,
//     endpoint, auth, tls
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none); Key(), Token() and
//     Password() resolve secrets from environment variables
//
// Load(path) reads the YAML file, applies defaults (5m interval, 24h window,
// top 10, buffer 100, info logging), then validates required fields and enums.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It re-adds the watch after each
// event so atomic-save editors (rename then create) keep being tracked.
package config
