// Package credcache persists a verifier of the last password the server
// accepted, one entry per user, so logins can still be decided when the
// server is unreachable.
//
// Entries are only ever written right after the remote accepted the
// password (or confirmed a password change). The read path is consulted
// solely on ambiguous remote outcomes; an explicit remote reject never
// reaches the cache.
package credcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio"
	"github.com/rs/zerolog/log"
)

const (
	dirMode   = 0o700
	entryMode = 0o600

	entrySuffix = ".cache"
)

// entry is the on-disk record for one user. The username is stored again
// inside the record as an integrity check against file substitution.
type entry struct {
	Username  string `json:"username"`
	Verifier  string `json:"verifier"`
	CreatedAt int64  `json:"created_at"`
}

// Store is the on-disk credential cache. ExpiryDays of 0 means entries
// never expire.
type Store struct {
	dir        string
	expiryDays int
}

// New creates a cache store rooted at dir.
func New(dir string, expiryDays int) *Store {
	return &Store{dir: dir, expiryDays: expiryDays}
}

// Put writes or replaces the entry for username. The write is atomic so an
// interrupted invocation can never leave a half written entry behind.
func (s *Store) Put(username, password string) error {
	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return err
	}

	// tighten permissions in case the directory pre-existed
	if err := os.Chmod(s.dir, dirMode); err != nil {
		return err
	}

	verifier, err := hashPassword(password)
	if err != nil {
		return err
	}

	data, err := json.Marshal(entry{
		Username:  username,
		Verifier:  verifier,
		CreatedAt: time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	if err := renameio.WriteFile(s.entryPath(username), data, entryMode); err != nil {
		return err
	}

	log.Debug().Str("username", username).Msg("cached credentials")

	return nil
}

// Validate checks password against the cached entry for username. Any
// irregularity - missing file, corrupt record, expired entry, username
// mismatch - counts as a miss. An expired entry is deleted on the way out.
func (s *Store) Validate(username, password string) bool {
	path := s.entryPath(username)

	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		log.Error().Str("username", username).Err(err).Msg("corrupt cache entry")

		return false
	}

	if s.expired(e) {
		log.Info().Str("username", username).Msg("cached credentials expired")

		if err := os.Remove(path); err != nil {
			log.Error().Str("username", username).Err(err).Msg("could not remove expired cache entry")
		}

		return false
	}

	if e.Username != username {
		log.Warn().Str("username", username).Msg("cache entry username mismatch")

		return false
	}

	if !verifyPassword(password, e.Verifier) {
		return false
	}

	age := time.Since(time.Unix(e.CreatedAt, 0))
	log.Info().
		Str("username", username).
		Float64("cache_age_days", age.Hours()/24).
		Msg("cached authentication successful")

	return true
}

// Invalidate removes the entry for username if present.
func (s *Store) Invalidate(username string) error {
	err := os.Remove(s.entryPath(username))
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

func (s *Store) expired(e entry) bool {
	if s.expiryDays == 0 {
		return false
	}

	expiry := time.Unix(e.CreatedAt, 0).Add(time.Duration(s.expiryDays) * 24 * time.Hour)

	return time.Now().After(expiry)
}

// entryPath derives the entry file name from a one way hash of the
// username, never the raw name, to rule out path traversal and charset
// surprises.
func (s *Store) entryPath(username string) string {
	sum := sha256.Sum256([]byte(username))

	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+entrySuffix)
}
