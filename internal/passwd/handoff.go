package passwd

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/user"
	"path/filepath"

	"github.com/google/renameio"
)

// DefaultHandoffDir is where verified old passwords wait between the two
// PAM invocations of a password change.
const DefaultHandoffDir = "/run/ncbroker"

// Handoff parks the verified old password between the prelim and update
// invocations when the host runs them as separate processes. The secret
// lives in a 0600 file under a per-uid 0700 directory and is deleted on
// first read; it never survives the transaction.
type Handoff struct {
	dir string
}

// NewHandoff creates a handoff store rooted at dir; empty means the default.
func NewHandoff(dir string) Handoff {
	if dir == "" {
		dir = DefaultHandoffDir
	}

	return Handoff{dir: dir}
}

// Park stores the verified old password for username.
func (h Handoff) Park(username, oldPassword string) error {
	dir, err := h.userDir(username)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	return renameio.WriteFile(filepath.Join(dir, "old_password"), []byte(oldPassword), 0o600)
}

// Take returns the parked password and deletes it. A second Take fails.
func (h Handoff) Take(username string) (string, error) {
	dir, err := h.userDir(username)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, "old_password")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoParkedPassword
		}

		return "", err
	}

	_ = os.Remove(path)

	// returned byte for byte as parked: any trimming already happened when
	// the secret was read from the host
	return string(data), nil
}

// userDir keys the store by uid. Accounts the local directory does not know
// yet are keyed by a hash of the name, never the raw name: the name comes
// from the remote side and must not be able to place a path outside the
// store root.
func (h Handoff) userDir(username string) (string, error) {
	u, err := user.Lookup(username)
	if err != nil {
		sum := sha256.Sum256([]byte(username))

		return filepath.Join(h.dir, hex.EncodeToString(sum[:])), nil //nolint: nilerr
	}

	return filepath.Join(h.dir, u.Uid), nil
}
