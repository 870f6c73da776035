/*
Package metrics provides Prometheus instrumentation for the ingest pipeline.

Collectors are package-level and registered in init(), covering scans,
enqueues, queue depth, bulk import outcomes and durations, and terminal file
transitions by state (success, parse_failure, import_failure, unroutable).

Collector samples the queue depth gauge on a fixed interval. Server exposes
/metrics and /healthz on the optional listener configured via
metrics.listen_addr; when the address is empty no server is started and the
counters are simply never scraped.
*/
package metrics
