// Package receiver implements POST /api/v1/reports, the endpoint that accepts
// reports from winsight-agent instances.
//
// Bodies are JSON, optionally zstd-compressed (Content-Encoding: zstd), and
// capped at the configured size after decoding. A report without a host is
// rejected with 400. Accepted reports are stored by host and handed to the
// alert evaluator. Authentication is enforced upstream by the auth middleware
// (see package auth), so the receiver itself only performs structural
// validation.
package receiver
