// Package desktop performs the minor desktop environment integrations that
// run after login: setup markers for GNOME Online Accounts and KDE
// kaccounts, AccountsService entries so provisioned users appear on the
// greeter, and the GDM user list switch. Everything here is best effort;
// nothing may fail a login.
package desktop

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"github.com/rs/zerolog/log"

	"github.com/pam-nextcloud/ncbroker/internal/localdir"
)

// Integration prepares one user's desktop environment for the Nextcloud
// account they just logged in with.
type Integration struct {
	user      localdir.User
	serverURL string
}

// New creates a desktop integration for the given local user.
func New(user localdir.User, serverURL string) *Integration {
	return &Integration{user: user, serverURL: strings.TrimRight(serverURL, "/")}
}

// Setup writes the marker for whichever desktop environment the session
// reports; without a recognizable environment both markers are written so a
// later graphical login finds one.
func (i *Integration) Setup() {
	switch DetectEnvironment() {
	case "gnome":
		i.setupGNOME()
	case "kde":
		i.setupKDE()
	default:
		i.setupGNOME()
		i.setupKDE()
	}
}

// DetectEnvironment inspects the session environment variables.
func DetectEnvironment() string {
	desktop := strings.ToLower(os.Getenv("XDG_CURRENT_DESKTOP"))
	session := strings.ToLower(os.Getenv("DESKTOP_SESSION"))

	switch {
	case strings.Contains(desktop, "gnome") || strings.Contains(session, "gnome"):
		return "gnome"
	case strings.Contains(desktop, "kde") || strings.Contains(desktop, "plasma") ||
		strings.Contains(session, "kde"):
		return "kde"
	case desktop != "" || session != "":
		return "other"
	default:
		return ""
	}
}

type marker struct {
	Username  string `json:"username"`
	Server    string `json:"server"`
	AccountID string `json:"account_id,omitempty"`
	Type      string `json:"type,omitempty"`
}

// setupGNOME leaves a setup marker for GNOME Online Accounts. The user
// completes authentication in GNOME Settings; if an account for this server
// is already configured nothing is written.
func (i *Integration) setupGNOME() {
	goaDir := filepath.Join(i.user.HomeDir, ".config", "goa-1.0")
	if err := os.MkdirAll(goaDir, 0o755); err != nil {
		log.Warn().Str("username", i.user.Name).Err(err).Msg("could not create goa directory")

		return
	}

	if i.goaAccountConfigured(filepath.Join(goaDir, "accounts.conf")) {
		log.Debug().Str("username", i.user.Name).Msg("gnome online account already configured")

		return
	}

	id := i.accountID()

	path := filepath.Join(goaDir, ".nextcloud-setup-"+id)
	if err := i.writeMarker(path, marker{Username: i.user.Name, Server: i.serverURL, AccountID: id}); err != nil {
		log.Warn().Str("username", i.user.Name).Err(err).Msg("could not write goa setup marker")

		return
	}

	i.chownToUser(goaDir, path)
}

// setupKDE leaves a setup marker for KDE kaccounts.
func (i *Integration) setupKDE() {
	kdeDir := filepath.Join(i.user.HomeDir, ".local", "share", "kaccounts")
	if err := os.MkdirAll(kdeDir, 0o755); err != nil {
		log.Warn().Str("username", i.user.Name).Err(err).Msg("could not create kaccounts directory")

		return
	}

	path := filepath.Join(kdeDir, ".nextcloud-setup")
	if err := i.writeMarker(path, marker{Username: i.user.Name, Server: i.serverURL, Type: "nextcloud"}); err != nil {
		log.Warn().Str("username", i.user.Name).Err(err).Msg("could not write kde setup marker")

		return
	}

	i.chownToUser(kdeDir, path)
}

// goaAccountConfigured scans accounts.conf for an existing account pointing
// at the same server.
func (i *Integration) goaAccountConfigured(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	content := string(data)

	return strings.Contains(content, "owncloud") && strings.Contains(content, i.serverURL)
}

func (i *Integration) writeMarker(path string, m marker) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	return renameio.WriteFile(path, data, 0o600)
}

func (i *Integration) chownToUser(paths ...string) {
	for _, p := range paths {
		if err := os.Chown(p, i.user.UID, i.user.GID); err != nil {
			log.Debug().Str("path", p).Err(err).Msg("could not chown to user")
		}
	}
}

// accountID derives a stable identifier from user and server so repeated
// logins touch the same marker.
func (i *Integration) accountID() string {
	sum := sha256.Sum256([]byte(i.user.Name + "@" + i.serverURL))

	return hex.EncodeToString(sum[:])[:16]
}
