package domain

import "errors"

// Authentication failures. These are fatal to a connection attempt.
var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrTokenInvalid    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")
)

// Authorization and validation failures. These refuse a single operation and
// leave the connection open.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidBody          = errors.New("message body must not be empty")
)
