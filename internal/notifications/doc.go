// Package notifications delivers pipeline events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the configured topic
// and degrades to a no-op when no topic is set. Per-event config flags
// suppress categories an operator does not care about, so callers publish
// unconditionally and the service decides what goes out.
package notifications
