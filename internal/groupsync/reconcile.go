package groupsync

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/pam-nextcloud/ncbroker/internal/localdir"
)

// Result reports one sync run: the local groups the user now verifiably
// belongs to and the candidates that failed. Both sets are sorted.
type Result struct {
	Applied []string
	Failed  []string
}

// Syncer applies mapped remote group membership to the local directory.
type Syncer struct {
	mapper        *Mapper
	dir           localdir.Directory
	createMissing bool
}

// NewSyncer creates a group syncer.
func NewSyncer(mapper *Mapper, dir localdir.Directory, createMissing bool) *Syncer {
	return &Syncer{mapper: mapper, dir: dir, createMissing: createMissing}
}

// Sync makes username a member of every local group its remote groups map
// to. Each candidate is handled independently: an existing membership is an
// idempotent no-op, a missing group is created or skipped per policy, and
// one failure never aborts the remaining candidates. Remote groups are
// processed in lexicographic order so repeated runs produce identical
// operation sequences.
func (s *Syncer) Sync(username string, remoteGroups []string) Result {
	var res Result

	if len(remoteGroups) == 0 {
		log.Info().Str("username", username).Msg("no groups to sync")

		return res
	}

	sorted := make([]string, len(remoteGroups))
	copy(sorted, remoteGroups)
	sort.Strings(sorted)

	seen := map[string]bool{}

	for _, remoteGroup := range sorted {
		for _, group := range s.mapper.Map(remoteGroup) {
			if seen[group] {
				continue
			}

			seen[group] = true

			s.syncCandidate(username, group, &res)
		}
	}

	sort.Strings(res.Applied)
	sort.Strings(res.Failed)

	if len(res.Applied) > 0 {
		log.Info().
			Str("username", username).
			Strs("groups", res.Applied).
			Msg("synced groups")
	}

	return res
}

func (s *Syncer) syncCandidate(username, group string, res *Result) {
	if s.memberOf(username, group) {
		log.Debug().Str("username", username).Str("group", group).Msg("already a member")

		res.Applied = append(res.Applied, group)

		return
	}

	if !s.dir.GroupExists(group) {
		if !s.createMissing {
			log.Warn().Str("group", group).Msg("group does not exist and auto-creation is disabled")

			return
		}

		if err := s.dir.CreateGroup(group); err != nil {
			log.Error().Str("group", group).Err(err).Msg("failed to create group")

			res.Failed = append(res.Failed, group)

			return
		}
	}

	if err := s.dir.AddUserToGroup(username, group); err != nil {
		log.Warn().Str("username", username).Str("group", group).Err(err).Msg("failed to add user to group")

		res.Failed = append(res.Failed, group)

		return
	}

	res.Applied = append(res.Applied, group)
}

func (s *Syncer) memberOf(username, group string) bool {
	members, err := s.dir.GroupMembers(group)
	if err != nil {
		return false
	}

	for _, m := range members {
		if m == username {
			return true
		}
	}

	return false
}
