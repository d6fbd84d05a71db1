// Package api implements the HTTP REST API for winsight-server.
//
// New(store, alerts) returns an http.Handler that serves:
//
//	GET /api/v1/health            overall score, worst risk grade, per-grade counts
//	GET /api/v1/hosts             all live hosts ([]HostSummary)
//	GET /api/v1/hosts/{id}        latest full report for one host; 404 if unknown or stale
//	GET /api/v1/hosts/{id}/hints  hints of that report, filterable by ?severity= and ?category=
//	GET /api/v1/alerts            firing and recently resolved alerts
//	GET /api/v1/snapshot          all live host summaries plus generated_at
//
// All endpoints respond with Content-Type: application/json and return 405
// for non-GET methods. Lists only include live store entries.
package api
