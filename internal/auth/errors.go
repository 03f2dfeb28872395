package auth

import "errors"

var (
	// ErrUserNotFound indicates no user matches the login handle.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrUserDisabled signals that the user has been deactivated.
	ErrUserDisabled = errors.New("auth: user disabled")
	// ErrBadCredentials is returned when the password does not match.
	ErrBadCredentials = errors.New("auth: bad credentials")
	// ErrUnknownSurface is returned for login surfaces other than manager and open.
	ErrUnknownSurface = errors.New("auth: unknown login surface")

	// ErrSessionNotFound indicates that no session row matches the session id.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionConflict is returned when inserting a session id that already exists.
	ErrSessionConflict = errors.New("session: duplicate session id")
	// ErrSessionExpired signals that the refresh lifetime of a session has elapsed.
	ErrSessionExpired = errors.New("session: expired")
	// ErrSessionInactive means the session id is absent from the allowlist cache.
	ErrSessionInactive = errors.New("session: not active")

	// ErrMissingToken is returned when no bearer token accompanies the request.
	ErrMissingToken = errors.New("token: missing")
	// ErrTokenKind is returned when an access token is used where a refresh token is required, or vice versa.
	ErrTokenKind = errors.New("token: wrong kind")
	// ErrTokenExpired signals that the token's expiry claim has passed.
	ErrTokenExpired = errors.New("token: expired")
	// ErrInvalidSignature is returned when the token signature does not verify.
	ErrInvalidSignature = errors.New("token: invalid signature")
	// ErrMalformedToken is returned when the token cannot be parsed.
	ErrMalformedToken = errors.New("token: malformed")
)
