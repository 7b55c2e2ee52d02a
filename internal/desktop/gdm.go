package desktop

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/renameio"
	"github.com/rs/zerolog/log"
)

// DefaultDconfDir is the GDM dconf profile database directory.
const DefaultDconfDir = "/etc/dconf/db/gdm.d"

const gdmUserListFile = "00-show-user-list"

// ConfigureGDMUserList makes GDM show the user list on the login screen,
// which matters once accounts are provisioned without local passwords.
// Every step is optional: a missing dconf binary just means false. The dir
// parameter exists for tests, empty means the system location.
func ConfigureGDMUserList(dir string) bool {
	if _, err := exec.LookPath("dconf"); err != nil {
		return false
	}

	if dir == "" {
		dir = DefaultDconfDir
	}

	lockDir := filepath.Join(dir, "locks")

	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		log.Debug().Err(err).Msg("could not create gdm dconf directories")

		return false
	}

	conf := "[org/gnome/login-screen]\ndisable-user-list=false\n"
	if err := renameio.WriteFile(filepath.Join(dir, gdmUserListFile), []byte(conf), 0o644); err != nil {
		log.Debug().Err(err).Msg("could not write gdm user list config")

		return false
	}

	// the lock keeps user sessions from overriding the setting; optional
	lock := "/org/gnome/login-screen/disable-user-list\n"
	if err := renameio.WriteFile(filepath.Join(lockDir, gdmUserListFile), []byte(lock), 0o644); err != nil {
		log.Debug().Err(err).Msg("could not write gdm user list lock")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := exec.CommandContext(ctx, "dconf", "update").Run(); err != nil {
		log.Debug().Err(err).Msg("dconf update failed, config file still in place")
	}

	return true
}
