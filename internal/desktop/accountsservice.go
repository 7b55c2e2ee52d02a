package desktop

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"github.com/rs/zerolog/log"
)

// DefaultAccountsServiceDir is where AccountsService keeps per user entries.
const DefaultAccountsServiceDir = "/var/lib/AccountsService/users"

// EnsureAccountsServiceEntry writes or updates the AccountsService record
// for username so greeters list the account. SystemAccount is forced to
// false; a non empty displayName becomes the RealName. The dir parameter
// exists for tests, empty means the system location.
func EnsureAccountsServiceEntry(dir, username, displayName string) error {
	if dir == "" {
		dir = DefaultAccountsServiceDir
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create accountsservice dir: %w", err)
	}

	path := filepath.Join(dir, username)

	entry := readKeyFile(path)
	entry.set("User", "SystemAccount", "false")

	if displayName != "" {
		entry.set("User", "RealName", displayName)
	}

	if err := renameio.WriteFile(path, []byte(entry.render()), 0o644); err != nil {
		return fmt.Errorf("write accountsservice entry: %w", err)
	}

	log.Debug().Str("username", username).Msg("ensured accountsservice entry")

	return nil
}

// AccountsService files use the glib keyfile syntax: INI-like sections with
// bare unquoted values. The minimal reader/writer below preserves keys it
// does not manage.

type keyFileSection struct {
	name string
	keys []string
	vals map[string]string
}

type keyFile struct {
	sections []*keyFileSection
}

func readKeyFile(path string) *keyFile {
	kf := &keyFile{}

	data, err := os.ReadFile(path)
	if err != nil {
		return kf
	}

	var current *keyFileSection

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)

		switch {
		case line == "" || strings.HasPrefix(line, "#"):
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			current = kf.section(strings.Trim(line, "[]"))
		default:
			if current == nil {
				continue
			}

			if key, val, ok := strings.Cut(line, "="); ok {
				current.put(strings.TrimSpace(key), strings.TrimSpace(val))
			}
		}
	}

	return kf
}

func (kf *keyFile) section(name string) *keyFileSection {
	for _, s := range kf.sections {
		if s.name == name {
			return s
		}
	}

	s := &keyFileSection{name: name, vals: map[string]string{}}
	kf.sections = append(kf.sections, s)

	return s
}

func (kf *keyFile) set(section, key, value string) {
	kf.section(section).put(key, value)
}

func (s *keyFileSection) put(key, value string) {
	if _, ok := s.vals[key]; !ok {
		s.keys = append(s.keys, key)
	}

	s.vals[key] = value
}

func (kf *keyFile) render() string {
	var b strings.Builder

	for _, s := range kf.sections {
		fmt.Fprintf(&b, "[%s]\n", s.name)

		for _, key := range s.keys {
			fmt.Fprintf(&b, "%s=%s\n", key, s.vals[key])
		}
	}

	return b.String()
}
