// Package services defines shared utilities consumed by the conversion
// pipeline components.
//
// Key responsibilities:
//   - Context helpers that stamp queue job IDs, component names, and attempt
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the closed fatal/retryable/startup/path taxonomy the retry policy
//     and exit codes are built on.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform across components.
package services
