package localdir

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"os/user"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const commandTimeout = 5 * time.Second

// System is the Directory implementation backed by the host's NSS database
// and the shadow utilities.
type System struct {
	Timeout time.Duration
}

// NewSystem creates a system directory with the default command timeout.
func NewSystem() *System {
	return &System{Timeout: commandTimeout}
}

func (s *System) UserExists(username string) bool {
	if _, err := user.Lookup(username); err == nil {
		return true
	}

	// NSS sources outside libc coverage still answer through getent
	return s.run("getent", "passwd", username) == nil
}

func (s *System) LookupUser(username string) (User, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return User{}, fmt.Errorf("lookup user %s: %w", username, err)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return User{}, fmt.Errorf("parse uid of %s: %w", username, err)
	}

	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return User{}, fmt.Errorf("parse gid of %s: %w", username, err)
	}

	return User{Name: u.Username, UID: uid, GID: gid, HomeDir: u.HomeDir}, nil
}

func (s *System) GroupExists(group string) bool {
	if _, err := user.LookupGroup(group); err == nil {
		return true
	}

	return s.run("getent", "group", group) == nil
}

func (s *System) GroupMembers(group string) ([]string, error) {
	out, err := s.output("getent", "group", group)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, group)
	}

	return parseGroupMembers(out), nil
}

func (s *System) GroupNames() ([]string, error) {
	out, err := s.output("getent", "group")
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	var names []string

	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if name, _, ok := strings.Cut(line, ":"); ok && name != "" {
			names = append(names, name)
		}
	}

	return names, nil
}

func (s *System) CreateGroup(group string) error {
	if err := s.run("groupadd", "--system", group); err != nil {
		return err
	}

	log.Info().Str("group", group).Msg("created group")

	return nil
}

func (s *System) AddUserToGroup(username, group string) error {
	// gpasswd is more reliable than usermod -aG for single additions
	if err := s.run("gpasswd", "-a", username, group); err != nil {
		return err
	}

	log.Info().Str("username", username).Str("group", group).Msg("added user to group")

	return nil
}

func (s *System) RemoveUserFromGroup(username, group string) error {
	if err := s.run("gpasswd", "-d", username, group); err != nil {
		return err
	}

	log.Info().Str("username", username).Str("group", group).Msg("removed user from group")

	return nil
}

func (s *System) CreateUser(username, comment string, createHome bool) error {
	args := []string{}
	if createHome {
		args = append(args, "-m")
	}

	if comment == "" {
		comment = "Nextcloud user"
	}

	args = append(args, "-s", "/bin/bash", "-c", comment, username)

	if err := s.run("useradd", args...); err != nil {
		return err
	}

	log.Info().Str("username", username).Msg("created user")

	return nil
}

// LockPassword disables the local password so the account can only be
// entered through the broker.
func (s *System) LockPassword(username string) error {
	if err := s.run("passwd", "-l", username); err == nil {
		return nil
	}

	return s.run("usermod", "-L", username)
}

func (s *System) run(name string, args ...string) error {
	_, err := s.output(name, args...)

	return err
}

func (s *System) output(name string, args ...string) (string, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = commandTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s %v: %s", name, args, msg)
		}

		return "", fmt.Errorf("%s %v: %w", name, args, err)
	}

	return stdout.String(), nil
}

// parseGroupMembers extracts the member list from a "name:x:gid:a,b,c"
// group database line.
func parseGroupMembers(line string) []string {
	fields := strings.Split(strings.TrimSpace(line), ":")
	if len(fields) < 4 || fields[3] == "" {
		return nil
	}

	members := strings.Split(fields[3], ",")
	for i := range members {
		members[i] = strings.TrimSpace(members[i])
	}

	return members
}
