package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"os/user"
	"path/filepath"

	"github.com/google/renameio"
)

// DefaultRuntimeDir is the runtime directory shared with the password
// change handoff.
const DefaultRuntimeDir = "/run/ncbroker"

// GroupStore carries the user's remote group list from the authentication
// phase, where credentials are at hand, to the session phase, which has
// none. Entries are read once and deleted.
type GroupStore struct {
	dir string
}

// NewGroupStore creates a group store rooted at dir; empty means the default.
func NewGroupStore(dir string) GroupStore {
	if dir == "" {
		dir = DefaultRuntimeDir
	}

	return GroupStore{dir: dir}
}

// Park stores the remote group list for username.
func (g GroupStore) Park(username string, groups []string) error {
	dir := g.userDir(username)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := json.Marshal(groups)
	if err != nil {
		return err
	}

	return renameio.WriteFile(filepath.Join(dir, "groups"), data, 0o600)
}

// Take returns the parked group list and deletes it. Missing means nil, nil.
func (g GroupStore) Take(username string) ([]string, error) {
	path := filepath.Join(g.userDir(username), "groups")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	_ = os.Remove(path)

	var groups []string
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, err
	}

	return groups, nil
}

// userDir keys the store by uid. Unknown accounts are keyed by a hash of
// the name, never the raw name: the name comes from the remote side and
// must not be able to place a path outside the store root.
func (g GroupStore) userDir(username string) string {
	if u, err := user.Lookup(username); err == nil {
		return filepath.Join(g.dir, u.Uid)
	}

	sum := sha256.Sum256([]byte(username))

	return filepath.Join(g.dir, hex.EncodeToString(sum[:]))
}
