package models

import "errors"

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("no display name set")
	ErrNotFound     = errors.New("post not found")
	ErrStorage      = errors.New("storage unavailable")
)

// ValidationError reports a malformed, oversized or missing field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
