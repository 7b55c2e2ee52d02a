package passwd

import "errors"

var (
	// ErrInvalidOldPassword is returned when the old password fails
	// verification; the remote change endpoint is never contacted then.
	ErrInvalidOldPassword = errors.New("invalid old password")

	// ErrEmptyPassword is returned when a username or password is empty.
	ErrEmptyPassword = errors.New("empty username or password")

	// ErrNoParkedPassword is returned when the update phase finds no
	// verified old password from a preceding prelim phase.
	ErrNoParkedPassword = errors.New("no verified old password available")
)
