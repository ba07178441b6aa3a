package services

// ValidationError rejects malformed caller input before any backend work.
// The HTTP layer maps it to a 400; everything else stays a 500 or degrades.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}
