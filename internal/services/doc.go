// Package services defines shared utilities consumed by the conversion
// pipeline and its external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, document identifiers, and stage
//     names for logging.
//   - Structured error markers plus the Wrap helper that classify per-document
//     failures (source lookup, conversion, timeout, registration) and the
//     run-fatal catalog failure.
//
// Use these helpers when wiring new pipeline steps so failure classification
// and observability stay uniform across the run.
package services
