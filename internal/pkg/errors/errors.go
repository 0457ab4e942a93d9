package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate create.
	ErrAlreadyExists = errors.New("already exists")
	// ErrDraftNotFound signals a draft id that appears in no example.
	ErrDraftNotFound = errors.New("draft not found")
	// ErrTypeMismatch signals an example whose modality conflicts with the concept type.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrUnsupportedModality signals a scoring attempt through a non-text signal.
	ErrUnsupportedModality = errors.New("unsupported modality")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
)
