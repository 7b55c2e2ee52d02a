// Package groupsync reconciles remote group membership onto local groups:
// name mapping, per user sync after login, and the bulk add/remove sync the
// command line tooling runs.
package groupsync

import (
	"strings"

	"github.com/pam-nextcloud/ncbroker/internal/localdir"
)

// adminNames are the remote group names the sudo heuristic recognizes.
var adminNames = map[string]bool{
	"admin":          true,
	"admins":         true,
	"administrators": true,
}

// sudoCandidates is the preference order of local admin groups.
var sudoCandidates = []string{"sudo", "wheel", "admin"}

// Mapper resolves a remote group name to one or more local group names.
// Resolution is deterministic and total: the explicit table wins, then the
// optional admin heuristic, then normalization - so every remote name maps
// to at least one candidate.
type Mapper struct {
	table       map[string][]string
	prefix      string
	sudoMapping bool
	dir         localdir.Directory
}

// NewMapper creates a mapper. The directory is consulted only by the admin
// heuristic, to pick the first of sudo, wheel or admin that exists.
func NewMapper(table map[string][]string, prefix string, sudoMapping bool, dir localdir.Directory) *Mapper {
	return &Mapper{
		table:       table,
		prefix:      prefix,
		sudoMapping: sudoMapping,
		dir:         dir,
	}
}

// Map returns the local group candidates for a remote group name.
func (m *Mapper) Map(remoteGroup string) []string {
	if mapped, ok := m.table[remoteGroup]; ok && len(mapped) > 0 {
		out := make([]string, len(mapped))
		copy(out, mapped)

		return out
	}

	if m.sudoMapping && adminNames[strings.ToLower(remoteGroup)] {
		for _, candidate := range sudoCandidates {
			if m.dir.GroupExists(candidate) {
				return []string{candidate}
			}
		}
	}

	return []string{m.normalize(remoteGroup)}
}

// normalize converts a remote group name into a safe local one: lowercase,
// anything outside [a-z0-9-_] becomes an underscore, leading and trailing
// underscores are trimmed, then the configured prefix is applied.
func (m *Mapper) normalize(remoteGroup string) string {
	var b strings.Builder

	for _, r := range strings.ToLower(remoteGroup) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	normalized := strings.Trim(b.String(), "_")

	if m.prefix != "" && !strings.HasPrefix(normalized, m.prefix) {
		normalized = m.prefix + normalized
	}

	return normalized
}
