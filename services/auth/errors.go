package auth

import "errors"

var (
	// ErrAuthentication means no usable session could be derived: no tokens,
	// no identity, or a refresh that produced nothing.
	ErrAuthentication = errors.New("authentication failed")

	// ErrSessionExpired means a session was derived but every token on it had
	// already expired.
	ErrSessionExpired = errors.New("session expired")
)
