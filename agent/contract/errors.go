package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")

	ErrSafetyRejected         = errors.New("safety check rejected the message")
	ErrRetrievalUnavailable   = errors.New("retrieval index unavailable")
	ErrIdentificationNotFound = errors.New("customer identification not found")
	ErrToolInvocationFailed   = errors.New("tool invocation failed")
	ErrMalformedInput         = errors.New("malformed input")
)
