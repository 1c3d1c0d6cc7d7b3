package corpus

import "errors"

var (
	// ErrConfiguration indicates invalid parameters or an unknown vertical.
	ErrConfiguration = errors.New("configuration error")

	// ErrEmbeddingFailure indicates the embedder errored or returned malformed vectors.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrBackendUnavailable indicates the index backend could not serve the request.
	ErrBackendUnavailable = errors.New("index backend unavailable")

	// ErrAuthorizationViolation indicates a chunk outside the authorization set
	// reached the retriever. It is logged and dropped, never returned to callers.
	ErrAuthorizationViolation = errors.New("authorization violation")
)
