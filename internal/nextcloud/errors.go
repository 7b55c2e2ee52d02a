package nextcloud

import (
	"errors"
)

var (
	// ErrUnreachable is returned when the server could not be reached at
	// all: timeout, TLS failure or connection failure. Callers treat this
	// as an ambiguous outcome, never as a credential rejection.
	ErrUnreachable = errors.New("nextcloud server unreachable")

	// ErrUnauthorized is returned when the server explicitly rejected the
	// supplied credentials.
	ErrUnauthorized = errors.New("nextcloud rejected credentials")

	// ErrForbidden is returned when the authenticated user lacks
	// permission for the requested operation.
	ErrForbidden = errors.New("operation forbidden")

	// ErrUserNotFound is returned when the server does not know the user.
	ErrUserNotFound = errors.New("user not found on nextcloud")

	// ErrInvalidResponse is returned when a response body could not be
	// decoded as either OCS JSON or the legacy OCS XML envelope. Callers
	// must treat this as failure, never assume success.
	ErrInvalidResponse = errors.New("unparseable ocs response")

	// ErrUnexpectedStatus is returned for any response code outside the
	// documented contract of an endpoint.
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// ErrChangeRejected is returned when a password change came back with
	// transport success but an OCS meta status other than ok.
	ErrChangeRejected = errors.New("password change rejected by server")
)
