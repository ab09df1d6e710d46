package types

import "errors"

// Domain errors for type validation and named not-found conditions.
var (
	// Record validation errors
	ErrInvalidChangeID  = errors.New("invalid change ID")
	ErrMissingFilePath  = errors.New("file path is required")
	ErrInvalidEventKind = errors.New("unknown event kind")
	ErrInvalidTimestamp = errors.New("timestamp must be positive")

	// Search result errors
	ErrMissingRecord = errors.New("search result has no record")
	ErrInvalidScore  = errors.New("relevance score must be >= 0")

	// Named failures distinct from empty results
	ErrChangeNotFound = errors.New("change not found")
	ErrNoEmbedding    = errors.New("change has no embedding")
)
