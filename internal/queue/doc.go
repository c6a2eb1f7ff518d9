// Package queue persists conversion jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, crash recovery, and the status transitions the workflow manager
// relies on. Claiming is transactional so concurrent workers never hold the
// same job, and a partial unique index keeps at most one non-terminal job
// per source path.
//
// The database is treated as transient storage for in-flight jobs rather than
// a long-term archive. Schema changes bump the version in schema.go; users
// clear the database to adopt the new schema.
package queue
