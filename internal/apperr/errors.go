package apperr

import "errors"

// ErrInvalid is returned when input fails domain validation.
var ErrInvalid = errors.New("invalid input")

// ErrConflict indicates a state conflict, e.g. a transition the server
// rejected because another driver already took the job.
var ErrConflict = errors.New("conflict")

// ErrNotFound indicates that the requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnauthorized indicates a request the server refused even after the
// one permitted authorization retry.
var ErrUnauthorized = errors.New("unauthorized")

// ErrSessionExpired indicates the refresh credential was rejected; the
// session is over and the driver must sign in again.
var ErrSessionExpired = errors.New("session expired")

// ErrTransitionInFlight indicates a transition for the same delivery is
// already outstanding.
var ErrTransitionInFlight = errors.New("transition already in flight")
