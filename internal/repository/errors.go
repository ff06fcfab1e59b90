package repository

import "errors"

// Типизированные ошибки хранилища для маппинга в delivery-слое.
var (
	// ErrValidation marks malformed input to the storage boundary
	// (missing required key fields). Never retried.
	ErrValidation = errors.New("validation error")
)
