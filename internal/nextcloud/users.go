package nextcloud

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	"github.com/rs/zerolog/log"
)

// UserGroups lists the names of the remote groups the user belongs to.
func (c *Client) UserGroups(ctx context.Context, creds Credentials, username string) ([]string, error) {
	endpoint := usersEndpoint + "/" + url.PathEscape(username) + "/groups"

	body, err := c.get(ctx, endpoint, creds)
	if err != nil {
		return nil, err
	}

	groups, err := decodeStringList(body, "groups")
	if err != nil {
		return nil, err
	}

	log.Info().Str("username", username).Int("count", len(groups)).Msg("retrieved user groups")

	return groups, nil
}

// UserDisplayName fetches the user's display name. An empty string with nil
// error means the server did not provide one.
func (c *Client) UserDisplayName(ctx context.Context, creds Credentials, username string) (string, error) {
	endpoint := usersEndpoint + "/" + url.PathEscape(username)

	body, err := c.get(ctx, endpoint, creds)
	if err != nil {
		return "", err
	}

	name, err := decodeDisplayName(body)
	if err != nil {
		// not every server exposes the field, callers fall back to a default
		return "", nil
	}

	return name, nil
}

// Users enumerates all usernames known to the server. Requires admin
// credentials. The result is sorted for deterministic processing.
func (c *Client) Users(ctx context.Context, creds Credentials) ([]string, error) {
	body, err := c.get(ctx, usersEndpoint, creds)
	if err != nil {
		return nil, err
	}

	users, err := decodeStringList(body, "users")
	if err != nil {
		return nil, err
	}

	sort.Strings(users)

	return users, nil
}

// get issues a GET and returns the body for a 200, typed errors otherwise.
func (c *Client) get(ctx context.Context, endpoint string, creds Credentials) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, endpoint, creds, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusForbidden:
		return nil, ErrForbidden
	case http.StatusNotFound:
		return nil, ErrUserNotFound
	default:
		return nil, fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, resp.StatusCode, endpoint)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	return body, nil
}
