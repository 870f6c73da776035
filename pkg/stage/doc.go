/*
Package stage owns the three staging directories of the ingest pipeline and
the atomic moves between them.

	wait/   files dropped by the external producer, awaiting pickup
	run/    files claimed by an in-flight batch
	buggy/  terminal failures kept for inspection

A file's location is its state: the orchestrator moves wait/ files into run/
when it enqueues a batch, workers either delete run/ files (success) or move
them to buggy/ (failure), and startup recovery returns any run/ residue back
to wait/. Moves use rename when possible and fall back to copy+delete across
filesystems; a partial fallback failure surfaces to the caller rather than
being papered over.

Scans are bounded (ListPending) and never block. Dot-prefixed temp files and
non-.json extensions are ignored, which lets producers write-then-rename into
wait/ safely.
*/
package stage
