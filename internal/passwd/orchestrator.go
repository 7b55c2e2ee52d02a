// Package passwd implements the two phase password change: verify the old
// password first, then commit the new one against the server.
package passwd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/pam-nextcloud/ncbroker/internal/authn"
	"github.com/pam-nextcloud/ncbroker/internal/nextcloud"
)

// RemoteChanger is the slice of the Nextcloud client the orchestrator needs.
type RemoteChanger interface {
	ChangePassword(ctx context.Context, creds nextcloud.Credentials, username, newPassword string) error
}

// Authenticator gates phase one. In production this is the decision engine.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) authn.Decision
}

// Orchestrator runs the two phase protocol. A nil cache skips the refresh
// after a confirmed change.
type Orchestrator struct {
	engine Authenticator
	remote RemoteChanger
	cache  authn.Cache
}

// New creates a password change orchestrator.
func New(engine Authenticator, remote RemoteChanger, cache authn.Cache) *Orchestrator {
	return &Orchestrator{engine: engine, remote: remote, cache: cache}
}

// Verify is phase one: check the old password through the decision engine.
// On denial the remote change endpoint is never contacted.
func (o *Orchestrator) Verify(ctx context.Context, username, oldPassword string) error {
	if username == "" || oldPassword == "" {
		return ErrEmptyPassword
	}

	if o.engine.Authenticate(ctx, username, oldPassword) != authn.Granted {
		log.Warn().Str("username", username).Msg("password change refused, old password did not verify")

		return ErrInvalidOldPassword
	}

	return nil
}

// Change runs both phases: verify the old password, then commit the new one
// authenticated with the old credentials. Success is only reported when the
// server structurally confirmed the change; on confirmation the cache entry
// is refreshed with the new password.
func (o *Orchestrator) Change(ctx context.Context, username, oldPassword, newPassword string) error {
	if newPassword == "" {
		return ErrEmptyPassword
	}

	if err := o.Verify(ctx, username, oldPassword); err != nil {
		return err
	}

	creds := nextcloud.Credentials{Username: username, Password: oldPassword}
	if err := o.remote.ChangePassword(ctx, creds, username, newPassword); err != nil {
		log.Error().Str("username", username).Err(err).Msg("password change failed")

		return fmt.Errorf("password change: %w", err)
	}

	log.Info().Str("username", username).Msg("password changed successfully")

	if o.cache != nil {
		if err := o.cache.Put(username, newPassword); err != nil {
			log.Error().Str("username", username).Err(err).Msg("could not refresh cached credentials")
		}
	}

	return nil
}
