/*
Package batcher turns a list of pending mail files into domain batches ready
for the work queue.

Domain resolution tries three sources in order: the domain=<value> filename
token, an @<value> filename token, and finally the JSON record itself (domain
field, else the host part of user_id). Files that fail all three are reported
as unroutable; the orchestrator routes them straight to buggy/ without ever
admitting them to run/.

Resolved files are grouped by domain and split into chunks of at most
types.BatchMax. Selection is greedy largest-first against the caller's
remaining queue capacity, with ties broken by ascending domain name so the
outcome is deterministic. Under-filled chunks are only selected when no full
chunk remains, which amortizes the vector-import round-trip.

Build is a pure function over its inputs apart from the JSON fallback reads;
it performs no moves and no enqueues.
*/
package batcher
