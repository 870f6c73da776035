/*
Package events provides a lightweight publish/subscribe broker for pipeline
lifecycle events.

The orchestrator publishes enqueue, recovery and shutdown events; workers
publish batch completion and failure events with per-batch counters. The
orchestrator's event watcher subscribes and writes the structured event
trail. Subscribers receive events on buffered channels; a slow subscriber
drops events rather than blocking the pipeline.
*/
package events
