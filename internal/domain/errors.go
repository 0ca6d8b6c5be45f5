package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")

	// ErrUnknownItem is returned when a dock command names an item the dock
	// does not trade.
	ErrUnknownItem = errors.New("unknown item")
	// ErrNotLoggedIn is returned for commands issued on a session id that has
	// not been admitted by Login.
	ErrNotLoggedIn = errors.New("session not logged in")
	// ErrInvalidSessionID is returned by Login for empty or oversized ids.
	ErrInvalidSessionID = errors.New("invalid session id")
)
