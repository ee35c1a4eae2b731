package domain

import "errors"

var (
	// ErrConfiguration indicates missing credentials or invalid settings.
	// It is fatal at startup and never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrEmbedding is the single failure kind reported by embedding clients,
	// whatever the underlying cause.
	ErrEmbedding = errors.New("embedding failure")

	// ErrCompletion is the single failure kind reported by completion clients.
	ErrCompletion = errors.New("completion failure")

	// ErrInvalidInput indicates malformed caller input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownKind indicates an ingest kind that has no target document.
	ErrUnknownKind = errors.New("unknown ingest kind")

	// ErrDimensionMismatch indicates a vector of the wrong size.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
