// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `agent:` key is ignored by the server binary).
//
// Config fields:
//   - HTTPPort             port for ingest, REST API, WebSocket hub and /metrics (default 8080)
//   - LogLevel             slog level (default info)
//   - Auth.Mode            "apikey" or "none"
//   - Auth.KeyEnv          environment variable holding the expected API key
//   - Auth.Header          HTTP header name (default "x-api-key")
//   - Report.TTL           how long a host's report remains live (default 30m)
//   - Report.MaxBodyBytes  decoded ingest body limit (default 8 MiB)
//   - BroadcastInterval    WebSocket push period (default 5s)
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
