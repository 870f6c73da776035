/*
Package worker implements the pool of batch consumers that drive mail files
to their terminal state.

Each worker runs a dequeue-process loop until it observes a poison pill. A
worker exclusively owns its resources for its whole lifetime: one ledger
handle and one vector-sink client, created at pool start and released on
exit, so no lock is ever shared between workers.

# Batch state machine

	     [files in run/]
	          |
	       parse JSON
	        /       \
	      ok         fail(parse)
	       |              \
	   accumulate     ledger failure row; move to buggy/
	       v
	  ensure tenant, one bulk import per batch
	        /              \
	  per-object ok    per-object fail
	      |                  |
	  ledger success     ledger failure
	  delete file        move to buggy/

A connection-level import error is terminal for every object in the batch.
Ledger rows for a batch commit in one transaction before the corresponding
file moves or deletes; if the commit fails even after busy retries, the files
stay in run/ and the next startup's recovery re-ingests them. Workers never
abort mid-batch: a shutdown signal only takes effect between batches, so the
filesystem and ledger are always consistent with each other.
*/
package worker
