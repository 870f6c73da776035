/*
Package config loads and validates the mailvec YAML configuration.

The config file describes the staging directories, the status ledger path,
the Weaviate connection, and the queue/worker tuning knobs:

	paths:
	  wait_dir: /var/lib/mailvec/wait
	  run_dir: /var/lib/mailvec/run
	  buggy_dir: /var/lib/mailvec/buggy
	  sqlite_path: /var/lib/mailvec/status.db
	weaviate:
	  host: http://localhost:8080
	  api_key: ""            # optional
	  collection_name: MailDoc
	  embedding:
	    provider: ollama     # openai | ollama
	    model: nomic-embed-text
	    vector_dimensions: 768
	queue:
	  maxsize: 100
	worker:
	  threads: 4
	  poll_interval: 2.0
	logging:
	  level: info
	  json: true
	metrics:
	  listen_addr: ":9090"   # optional; empty disables the endpoint

Load applies defaults for collection name, queue size, worker count, poll
interval and log level, then validates required fields. Validation failures
are fatal at startup: the process exits non-zero before any worker starts.
*/
package config
