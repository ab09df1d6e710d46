// Package types defines the shared data model for edit-history recording
// and retrieval: the immutable ChangeRecord, search filters and hybrid
// parameters, and the hydrated SearchResult returned to callers.
package types
