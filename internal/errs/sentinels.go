// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Business-rule outcomes. Callers distinguish them with errors.Is and
// translate to user feedback; they never crash the process.
var (
	// ErrEventNotFound indicates the requested event does not exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrEventFull indicates the attendee list reached maxAttendees.
	ErrEventFull = errors.New("event is full")

	// ErrAlreadyJoined indicates the user is already on the attendee list.
	ErrAlreadyJoined = errors.New("user already joined this event")

	// ErrNotJoined indicates the user is not on the attendee list.
	ErrNotJoined = errors.New("user not joined to this event")

	// ErrUserNotFound indicates no user exists for the given email.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidToken indicates a shared-secret or session token mismatch.
	ErrInvalidToken = errors.New("invalid security token")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)

// Transport-level conditions surfaced by the mirror client.
var (
	// ErrOffline indicates the client refused network I/O while offline.
	ErrOffline = errors.New("no internet connection available")

	// ErrTimeout indicates the request was aborted by the fixed timeout.
	ErrTimeout = errors.New("request timeout")
)
