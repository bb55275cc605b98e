package locations

import "errors"

var (
	// ErrLocationNotFound is returned when no location has the requested id
	ErrLocationNotFound = errors.New("location not found")
	// ErrInvalidConnection is returned for a connection without two distinct endpoints
	ErrInvalidConnection = errors.New("invalid connection")
	// ErrInvalidRadius is returned for an enabled membrane whose radius is not positive
	ErrInvalidRadius = errors.New("membrane radius must be greater than zero")
	// ErrInvalidLocation is returned when a location draft fails validation
	ErrInvalidLocation = errors.New("invalid location")
)
