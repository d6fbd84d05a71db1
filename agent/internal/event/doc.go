// Package event turns raw Windows event records into CanonicalEvent values.
//
// Normalize runs a strict encoding/xml token walk over the record and falls
// back to a tolerant literal scan when the markup is malformed. Records with
// no parseable TimeCreated are dropped: Normalize reports false and never
// returns an error for bad input.
//
// ParsePayload extracts the EventData Name/value pairs the same way: a strict
// walk first, replaced wholesale by a fallback scan only when the strict walk
// finds nothing.
package event
