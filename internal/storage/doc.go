// Package storage persists recorded file changes in SQLite and serves the
// three collaborator roles the retrieval core depends on: the relational
// metadata store (changes table), the lexical store (FTS5 index over file
// path, symbols, summary and search text), and the vector index
// (change_embeddings table, queried with cosine similarity either through
// the sqlite-vec extension or a pure-Go fallback).
//
// Records are append-only: after insert, only the embedding pointer and the
// summary may be attached by async post-processing. Deletion happens only
// through retention sweeps (PruneBefore) or an explicit history clear.
//
// Two SQLite drivers are supported via build tags; see build_cgo.go and
// build_purego.go.
package storage
