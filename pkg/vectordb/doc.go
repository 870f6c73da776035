/*
Package vectordb is the pipeline's facade over the multi-tenant Weaviate
collection.

The Sink interface covers the three operations the pipeline needs: ensure
the collection exists (orchestrator, once at startup), ensure a per-domain
tenant exists (workers, lazily per batch), and bulk-import a batch of mails
with per-object failure reporting. The sink never retries; a transport-level
error fails the whole batch and the worker records every object as failed.

Each worker constructs its own WeaviateSink so no client is ever shared
between goroutines. Vectors are produced server-side by the collection's
vectorizer module (text2vec-openai or text2vec-ollama, selected by config);
objects carry only text properties.

Schema changes to the filter_* field set are manual: extend filterProperties
here, extend the property mapping in pkg/types, and drop-and-recreate the
collection when it already exists with a conflicting schema.
*/
package vectordb
