/*
Package log provides structured logging for mailvec using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers and configurable log levels. All logs include
timestamps and support filtering by severity level for production debugging.

# Usage

Initializing the logger:

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Structured logging:

	log.Logger.Info().
		Str("domain", "example.com").
		Int("size", 50).
		Msg("Batch enqueued")

Component loggers:

	workerLog := log.WithWorker("worker-2")
	workerLog.Info().Msg("Worker started")

	batchLog := log.WithDomain("example.com")
	batchLog.Error().Err(err).Msg("Import failed")

# Integration Points

This package integrates with:

  - pkg/orchestrator: Logs recovery, polling and shutdown milestones
  - pkg/worker: Logs per-batch processing outcomes
  - pkg/ledger: Logs busy-retry exhaustion
  - pkg/vectordb: Logs collection and tenant management

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing

Context Logger Pattern:
  - Create child loggers with context fields (component, worker, domain)
  - Pass context loggers to functions
  - Automatically includes context in all logs
*/
package log
