// Package shipper delivers finished reports to winsight-server with an HTTP
// POST to /api/v1/reports. Bodies are JSON, zstd-compressed.
//
// Shipper.Ship() is non-blocking: reports are placed in an in-memory channel
// (agent.server.buffer_size). When the buffer is full the oldest report is
// evicted so the latest analysis is always preserved.
//
// Shipper.Run() drains the buffer in a loop, retrying with truncated
// exponential backoff (1s→60s, ±25% jitter) on connection errors and 5xx,
// 408 or 429 responses. Any other 4xx discards the report immediately.
//
// Auth: mTLS, API key header, bearer token or basic auth, configured the same
// way as http sources.
package shipper
