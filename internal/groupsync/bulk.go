package groupsync

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
)

// MemberSource enumerates remote groups and their members. The app layer
// wraps the Nextcloud client plus admin credentials into this.
type MemberSource interface {
	Groups(ctx context.Context) ([]string, error)
	GroupMembers(ctx context.Context, group string) ([]string, error)
}

// Delta is the membership change computed for one remote group and the
// local group it maps to. Both slices are sorted; the delta is transient
// and recomputed every run.
type Delta struct {
	RemoteGroup string
	LocalGroup  string
	ToAdd       []string
	ToRemove    []string
}

// Empty reports whether the delta carries no work.
func (d Delta) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0
}

// PlanAll computes deltas for every remote group whose mapping resolves to
// an existing local group. Users are only added or removed when they exist
// locally: remote membership of a never provisioned account is not a
// trigger to create it here. Pairs come back sorted by remote group name so
// two runs over unchanged state produce identical sequences.
func (s *Syncer) PlanAll(ctx context.Context, src MemberSource) ([]Delta, error) {
	remoteGroups, err := src.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote groups: %w", err)
	}

	localNames, err := s.dir.GroupNames()
	if err != nil {
		return nil, fmt.Errorf("list local groups: %w", err)
	}

	localSet := map[string]bool{}
	for _, name := range localNames {
		localSet[name] = true
	}

	sort.Strings(remoteGroups)

	var deltas []Delta

	for _, remoteGroup := range remoteGroups {
		localGroup := ""

		for _, candidate := range s.mapper.Map(remoteGroup) {
			if localSet[candidate] {
				localGroup = candidate

				break
			}
		}

		if localGroup == "" {
			log.Debug().Str("group", remoteGroup).Msg("no matching local group, skipping")

			continue
		}

		remoteMembers, err := src.GroupMembers(ctx, remoteGroup)
		if err != nil {
			log.Error().Str("group", remoteGroup).Err(err).Msg("could not list remote members")

			continue
		}

		delta, err := s.PlanGroup(remoteGroup, localGroup, remoteMembers)
		if err != nil {
			log.Error().Str("group", remoteGroup).Err(err).Msg("could not plan group delta")

			continue
		}

		deltas = append(deltas, delta)
	}

	return deltas, nil
}

// PlanGroup computes one group's delta against the freshly read local state.
func (s *Syncer) PlanGroup(remoteGroup, localGroup string, remoteMembers []string) (Delta, error) {
	localMembers, err := s.dir.GroupMembers(localGroup)
	if err != nil {
		return Delta{}, err
	}

	localSet := map[string]bool{}
	for _, m := range localMembers {
		localSet[m] = true
	}

	// only users provisioned locally take part in either direction
	remoteSet := map[string]bool{}

	for _, m := range remoteMembers {
		if s.dir.UserExists(m) {
			remoteSet[m] = true
		}
	}

	delta := Delta{RemoteGroup: remoteGroup, LocalGroup: localGroup}

	for m := range remoteSet {
		if !localSet[m] {
			delta.ToAdd = append(delta.ToAdd, m)
		}
	}

	for m := range localSet {
		if !remoteSet[m] && s.dir.UserExists(m) {
			delta.ToRemove = append(delta.ToRemove, m)
		}
	}

	sort.Strings(delta.ToAdd)
	sort.Strings(delta.ToRemove)

	return delta, nil
}

// Apply executes one delta. Additions and removals are independent per
// user: a failed operation is counted and logged, the rest continue.
func (s *Syncer) Apply(delta Delta) (applied, failed int) {
	for _, username := range delta.ToAdd {
		if err := s.dir.AddUserToGroup(username, delta.LocalGroup); err != nil {
			log.Error().
				Str("username", username).
				Str("group", delta.LocalGroup).
				Err(err).
				Msg("failed to add user to group")

			failed++

			continue
		}

		applied++
	}

	for _, username := range delta.ToRemove {
		if err := s.dir.RemoveUserFromGroup(username, delta.LocalGroup); err != nil {
			log.Error().
				Str("username", username).
				Str("group", delta.LocalGroup).
				Err(err).
				Msg("failed to remove user from group")

			failed++

			continue
		}

		applied++
	}

	return applied, failed
}
