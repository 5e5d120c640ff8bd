package gemini

import "errors"

// Generator errors.
var (
	// ErrInvalidConfig indicates the generator configuration is incomplete.
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrEmptyResponse indicates the model returned no usable text.
	ErrEmptyResponse = errors.New("empty model response")
)
