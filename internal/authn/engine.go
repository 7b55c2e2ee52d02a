// Package authn holds the authentication decision engine: the single place
// that decides, for a username and password, whether access is granted.
package authn

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/pam-nextcloud/ncbroker/internal/nextcloud"
)

// Decision is the binary outcome handed back to the host. Internal nuance
// stays in the logs.
type Decision int

const (
	// Denied refuses access.
	Denied Decision = iota
	// Granted allows access.
	Granted
)

func (d Decision) String() string {
	if d == Granted {
		return "granted"
	}

	return "denied"
}

// RemoteVerifier is the slice of the Nextcloud client the engine needs.
type RemoteVerifier interface {
	VerifySelf(ctx context.Context, creds nextcloud.Credentials) (nextcloud.VerifyOutcome, error)
}

// Cache is the slice of the credential cache the engine needs.
type Cache interface {
	Put(username, password string) error
	Validate(username, password string) bool
}

// Engine implements the tri-state decision procedure. A nil cache means
// offline caching is disabled.
type Engine struct {
	remote RemoteVerifier
	cache  Cache
}

// New creates a decision engine. Pass a nil cache to disable the offline
// fallback entirely.
func New(remote RemoteVerifier, cache Cache) *Engine {
	return &Engine{remote: remote, cache: cache}
}

// Authenticate decides access for the given credentials.
//
// The server's answer is authoritative whenever it is unambiguous: an
// accept grants (and refreshes the cache), an explicit reject denies and
// the cache is never consulted, so a stale entry can not outlive a password
// change or revocation on the server. Only ambiguous outcomes - timeouts,
// TLS or connection failures, unexpected status codes - fall through to the
// cached verifier.
func (e *Engine) Authenticate(ctx context.Context, username, password string) Decision {
	if username == "" || password == "" {
		log.Warn().Msg("empty username or password")

		return Denied
	}

	outcome, _ := e.remote.VerifySelf(ctx, nextcloud.Credentials{Username: username, Password: password})

	switch outcome {
	case nextcloud.VerifyAccepted:
		log.Info().Str("username", username).Msg("authentication successful")

		if e.cache != nil {
			if err := e.cache.Put(username, password); err != nil {
				log.Error().Str("username", username).Err(err).Msg("could not cache credentials")
			}
		}

		return Granted

	case nextcloud.VerifyRejected:
		log.Warn().Str("username", username).Msg("authentication failed")

		return Denied

	case nextcloud.VerifyUnreachable, nextcloud.VerifyAmbiguous:
		// fall through to the cache below
	}

	if e.cache == nil {
		return Denied
	}

	log.Info().Str("username", username).Msg("attempting cached authentication")

	if e.cache.Validate(username, password) {
		return Granted
	}

	log.Warn().Str("username", username).Msg("cached authentication failed")

	return Denied
}
