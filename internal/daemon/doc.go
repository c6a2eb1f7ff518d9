// Package daemon assembles the conversion pipeline behind the instance
// lock. Start acquires the lock, verifies external binaries, opens the job
// store, and launches the workflow manager; Stop tears everything down and
// releases the lock on every exit path.
package daemon
