package nextcloud

import (
	"context"
	"net/url"
	"sort"

	"github.com/rs/zerolog/log"
)

// Groups enumerates all group names on the server. Requires admin
// credentials. The result is sorted for deterministic processing.
func (c *Client) Groups(ctx context.Context, creds Credentials) ([]string, error) {
	body, err := c.get(ctx, groupsEndpoint, creds)
	if err != nil {
		return nil, err
	}

	groups, err := decodeStringList(body, "groups")
	if err != nil {
		return nil, err
	}

	sort.Strings(groups)

	return groups, nil
}

// GroupMembers lists the usernames belonging to a remote group. When the
// per group listing is unsupported or undecodable, it falls back to
// enumerating all users and filtering by each user's group list.
func (c *Client) GroupMembers(ctx context.Context, creds Credentials, group string) ([]string, error) {
	endpoint := groupsEndpoint + "/" + url.PathEscape(group) + "/users"

	body, err := c.get(ctx, endpoint, creds)
	if err == nil {
		users, derr := decodeStringList(body, "users")
		if derr == nil {
			sort.Strings(users)

			return users, nil
		}

		err = derr
	}

	log.Warn().
		Str("group", group).
		Err(err).
		Msg("group member listing failed, falling back to user enumeration")

	return c.groupMembersViaUsers(ctx, creds, group)
}

// groupMembersViaUsers is the slow path: walk every user and keep those
// whose group list contains the wanted group.
func (c *Client) groupMembersViaUsers(ctx context.Context, creds Credentials, group string) ([]string, error) {
	users, err := c.Users(ctx, creds)
	if err != nil {
		return nil, err
	}

	var members []string

	for _, user := range users {
		groups, err := c.UserGroups(ctx, creds, user)
		if err != nil {
			log.Warn().Str("username", user).Err(err).Msg("skipping user, could not list groups")

			continue
		}

		for _, g := range groups {
			if g == group {
				members = append(members, user)

				break
			}
		}
	}

	return members, nil
}
