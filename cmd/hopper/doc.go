// Package main hosts the hopper CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the foreground daemon, queue
// maintenance, encoder detection, environment preflight, and configuration
// scaffolding. It centralizes configuration resolution so subcommands can
// focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
