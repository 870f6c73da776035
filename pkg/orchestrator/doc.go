/*
Package orchestrator runs the ingest pipeline end to end.

Startup order matters: the collection is ensured before any worker could
touch a tenant, then files stranded in run/ by a previous crash are moved
back to wait/, and only then does the worker pool start. The main loop
polls wait/ on a fixed interval, builds domain batches up to the queue's
remaining capacity, claims each batch's files into run/, records pending
ledger rows, and enqueues.

Shutdown is cooperative: one poison pill per worker, then a bounded wait.
Workers finish their in-flight batch; anything still queued or in run/
after the deadline is reclaimed by the next startup's recovery pass.
*/
package orchestrator
