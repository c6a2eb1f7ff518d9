// Package config loads, normalizes, and validates hopper's TOML
// configuration.
//
// Load owns every concern the rest of the codebase is not allowed to care
// about: locating the file, folding legacy watch_roots lists into [[watch]]
// entries, expanding ~ in paths, applying environment overrides for secrets,
// and rejecting unusable values. Components downstream receive a *Config that
// is already valid and never re-check it.
package config
