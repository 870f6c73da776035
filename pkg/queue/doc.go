/*
Package queue provides the bounded work queue between the orchestrator and
the worker pool.

The queue is a thin wrapper over a buffered channel: FIFO, capacity fixed at
construction, blocking Put/Get cancellable through a context. The bound is
the pipeline's backpressure: in-flight work never exceeds queue capacity plus
the worker count, so memory stays bounded when harvesting outruns importing.

Shutdown uses poison pills rather than closing the channel: the orchestrator
enqueues one nil batch per worker, and each worker exits after observing
exactly one. This lets in-flight batches finish cleanly while the pills drain
behind them.
*/
package queue
