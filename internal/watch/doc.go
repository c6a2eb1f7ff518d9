// Package watch surfaces candidate media files from the configured roots.
//
// Discovery merges two sources: a one-time enumeration at startup that
// covers files already present, and live fsnotify events for files that
// arrive afterwards. Both feed a single goroutine that owns the seen set,
// so a path is emitted at most once per process run no matter which source
// saw it first.
//
// Patterns match against the base name case-insensitively. Recursive roots
// pick up directories created while running. A missing root is a warning,
// not a failure; the remaining roots keep working.
package watch
