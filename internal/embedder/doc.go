// Package embedder generates vector embeddings for change records and
// search queries.
//
// Three providers implement the Embedder interface: Jina AI and OpenAI over
// their HTTP APIs, and a local Ollama instance for offline use. Provider
// selection is explicit via configuration or auto-detected from the
// environment (EDITTRAIL_EMBEDDING_PROVIDER, JINA_API_KEY, OPENAI_API_KEY),
// falling back to Ollama.
//
// Query text is embedded with the QueryPrefix marker; document text is
// embedded bare, matching asymmetric embedding conventions.
//
// All providers share a bounded LRU cache keyed by content hash and retry
// transient failures with exponential backoff. A provider that stays
// unavailable surfaces ErrProviderFailed; callers are expected to degrade
// the vector search leg rather than fail the query.
package embedder
