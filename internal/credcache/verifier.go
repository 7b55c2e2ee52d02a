package credcache

import (
	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog/log"
)

// hashPassword derives the stored verifier from a plaintext password using
// Argon2id with the default parameters: salted per entry, deliberately slow.
func hashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, argon2id.DefaultParams) //nolint: wrapcheck
}

// verifyPassword checks a plaintext password against a stored verifier.
// The comparison inside is constant time. Returns false on any error so a
// damaged verifier behaves like a miss, never like an accept.
func verifyPassword(password, verifier string) bool {
	match, err := argon2id.ComparePasswordAndHash(password, verifier)
	if err != nil {
		log.Error().Msgf("failed to verify cached password: %v", err)

		return false
	}

	return match
}
