// Package preflight provides readiness checks for the directories, binaries,
// and queue database the daemon depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll once at startup and logs the results before the
//     pipeline begins claiming jobs.
//   - The CLI "hopper doctor" command renders the same results for an
//     operator diagnosing a host.
//
// Checks never abort the process themselves; the daemon decides which
// failures are startup-fatal.
package preflight
