/*
Package ledger maintains the per-message status ledger in a single SQLite
file.

One row exists per mail_id. Rows are created as pending when the orchestrator
enqueues a batch and finalized (success or failure with a reason) when a
worker terminates it. All writes for one batch commit in a single
transaction, so a crash never leaves a batch half-recorded.

# Schema

	mail_status (
		mail_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		is_completed INTEGER NOT NULL,
		is_success INTEGER NOT NULL,
		received_time TEXT NOT NULL,
		error_message TEXT NULL
	)

with indexes on (domain, is_completed, is_success),
(user_id, is_completed, is_success) and (received_time, is_completed) backing
the read-only aggregations (DomainStats, UserStats, LastCompletedTime) that
the status CLI uses.

# Concurrency

Every holder (each worker, the orchestrator, the status CLI) opens its own
SQLiteStore; handles are never shared across goroutines. The file runs in WAL
mode so readers never block writers. Contended writes retry transient busy
errors with capped backoff for up to five seconds before surfacing the error.
*/
package ledger
