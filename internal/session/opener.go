// Package session implements the session open hook: home directory fixups,
// group reconciliation for the freshly authenticated user, and the desktop
// integration trigger. From the host's point of view opening a session
// always succeeds - a user who just authenticated must never be locked out
// by a failing side integration - so everything here is logged, contained
// and bounded in time.
package session

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pam-nextcloud/ncbroker/internal/desktop"
	"github.com/pam-nextcloud/ncbroker/internal/groupsync"
	"github.com/pam-nextcloud/ncbroker/internal/localdir"
)

const defaultBudget = 5 * time.Second

// standard directories seeded from /etc/skel whose ownership is repaired
var standardDirs = []string{".config", ".cache", ".local", ".local/share", ".local/state"}

// Opener runs the session open integrations. A nil syncer disables group
// reconciliation.
type Opener struct {
	serverURL string
	dir       localdir.Directory
	syncer    *groupsync.Syncer
	groups    GroupStore
	budget    time.Duration
}

// NewOpener creates a session opener.
func NewOpener(serverURL string, dir localdir.Directory, syncer *groupsync.Syncer, groups GroupStore) *Opener {
	return &Opener{
		serverURL: serverURL,
		dir:       dir,
		syncer:    syncer,
		groups:    groups,
		budget:    defaultBudget,
	}
}

// Open runs the integrations for username. It never returns an error.
func (o *Opener) Open(username string) {
	user, err := o.dir.LookupUser(username)
	if err != nil {
		log.Warn().Str("username", username).Err(err).Msg("session open for unknown local user")

		return
	}

	o.fixHomePermissions(user)

	// slow side integrations get a bounded wait; a hung group edit or
	// desktop setup must not stall the login
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("username", username).Interface("panic", r).Msg("session integration panicked")
			}
		}()

		o.syncGroups(username)
		desktop.New(user, o.serverURL).Setup()
	}()

	select {
	case <-done:
	case <-time.After(o.budget):
		log.Warn().Str("username", username).Msg("session integrations still running, detaching")
	}
}

func (o *Opener) syncGroups(username string) {
	if o.syncer == nil {
		return
	}

	groups, err := o.groups.Take(username)
	if err != nil {
		log.Warn().Str("username", username).Err(err).Msg("could not read parked group list")

		return
	}

	if len(groups) == 0 {
		return
	}

	res := o.syncer.Sync(username, groups)
	if len(res.Failed) > 0 {
		log.Warn().
			Str("username", username).
			Strs("groups", res.Failed).
			Msg("some groups failed to sync")
	}
}

// fixHomePermissions repairs ownership and mode of the home directory and
// the standard dot directories, a safeguard for accounts provisioned
// before their first login.
func (o *Opener) fixHomePermissions(user localdir.User) {
	if _, err := os.Stat(user.HomeDir); err != nil {
		return
	}

	o.chownChmod(user.HomeDir, user)

	for _, dir := range standardDirs {
		path := filepath.Join(user.HomeDir, dir)
		if _, err := os.Stat(path); err == nil {
			o.chownChmod(path, user)
		}
	}
}

func (o *Opener) chownChmod(path string, user localdir.User) {
	if err := os.Chown(path, user.UID, user.GID); err != nil {
		log.Warn().Str("path", path).Err(err).Msg("could not fix ownership")
	}

	if err := os.Chmod(path, 0o755); err != nil {
		log.Warn().Str("path", path).Err(err).Msg("could not fix permissions")
	}
}
