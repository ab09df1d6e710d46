//go:build purego || !sqlite_vec
// +build purego !sqlite_vec

package storage

// Compiled when building without CGO or with the purego tag. Vector
// similarity is computed in Go over a full scan of stored embeddings;
// slower, but needs no C compiler and cross-compiles everywhere.
//
// Build command:
//   CGO_ENABLED=0 go build -tags "purego" ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
