// Package localdir wraps the local OS account directory: user and group
// lookups plus the privileged mutations the broker needs. Mutations go
// through the system tools (groupadd, gpasswd, useradd, passwd), which are
// individually atomic; the broker adds no locking of its own and reports
// failures from concurrent external mutation instead.
package localdir

import "errors"

// User is the slice of a passwd entry the broker cares about.
type User struct {
	Name    string
	UID     int
	GID     int
	HomeDir string
}

// Directory is the local account directory capability. The system
// implementation shells out; tests substitute a fake.
type Directory interface {
	UserExists(username string) bool
	LookupUser(username string) (User, error)

	GroupExists(group string) bool
	// GroupMembers reads the member set fresh; it is never cached because
	// group state can change between invocations.
	GroupMembers(group string) ([]string, error)
	GroupNames() ([]string, error)

	CreateGroup(group string) error
	AddUserToGroup(username, group string) error
	RemoveUserFromGroup(username, group string) error

	CreateUser(username, comment string, createHome bool) error
	LockPassword(username string) error
}

// ErrUnknownGroup is returned when a group lookup finds nothing.
var ErrUnknownGroup = errors.New("unknown group")
