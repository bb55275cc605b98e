package zones

import (
	"errors"
	"fmt"
)

var (
	// ErrZoneNotFound is returned when no zone has the requested id
	ErrZoneNotFound = errors.New("zone not found")
	// ErrZoneExists is returned when creating a zone whose id is already taken
	ErrZoneExists = errors.New("zone already exists")
	// ErrInvalidRadius is returned for a center-based draft whose radius is not positive
	ErrInvalidRadius = errors.New("radius must be greater than zero")
	// ErrInvalidCoordinates is returned when a draft has neither a usable center nor a parsable polygon
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrInvalidDraft is returned when a draft field fails validation
	ErrInvalidDraft = errors.New("invalid zone draft")
	// ErrConfirmationRequired guards destructive operations
	ErrConfirmationRequired = errors.New("confirmation required")
)

// ValidationError reports a user-entered value that blocks a mutation.
// Err is one of the sentinel errors above.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Err: err}
}
