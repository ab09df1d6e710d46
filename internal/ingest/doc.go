// Package ingest handles the write side of the history store: validating
// and persisting change records, and backfilling vector embeddings for
// records the embedder has not seen yet. Recording never waits on the
// embedding provider.
package ingest
