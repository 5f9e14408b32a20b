package domain

import "errors"

var (
	// ErrInvalidToken is returned when a bearer token is unknown or malformed.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a bearer token has expired.
	ErrTokenExpired = errors.New("token expired")

	// ErrEventScope is returned when an event does not carry the scope
	// the emit entry point requires.
	ErrEventScope = errors.New("event scope missing or ambiguous")

	// ErrNotFound is returned by repositories when a row is absent.
	ErrNotFound = errors.New("not found")
)
