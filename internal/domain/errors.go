package domain

import "errors"

var (
	// ErrNotConnected is returned when an operation requires a live connection.
	ErrNotConnected = errors.New("client is not connected to Telegram")

	// ErrNotAuthorized is returned when the stored session token is no longer
	// accepted by Telegram.
	ErrNotAuthorized = errors.New("session is not authorized")

	// ErrSessionExists is returned by the registry when a session for the
	// user id is already running.
	ErrSessionExists = errors.New("session already exists for user")

	// ErrPasswordRequired is returned by code confirmation when the account
	// has a second factor enabled.
	ErrPasswordRequired = errors.New("two-factor password required")

	// ErrPeerNotResolved is returned when a chat id cannot be mapped to an
	// input peer yet.
	ErrPeerNotResolved = errors.New("peer not resolved for chat id")
)
