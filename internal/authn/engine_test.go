package authn

import (
	"context"
	"testing"

	"github.com/pam-nextcloud/ncbroker/internal/nextcloud"
)

type fakeRemote struct {
	outcome nextcloud.VerifyOutcome
	calls   int
}

func (f *fakeRemote) VerifySelf(_ context.Context, _ nextcloud.Credentials) (nextcloud.VerifyOutcome, error) {
	f.calls++

	return f.outcome, nil
}

// fakeCache records every call so tests can assert what the engine did and
// did not touch.
type fakeCache struct {
	valid bool

	putUser, putPass string
	puts             int
	validates        int
}

func (f *fakeCache) Put(username, password string) error {
	f.puts++
	f.putUser = username
	f.putPass = password

	return nil
}

func (f *fakeCache) Validate(_, _ string) bool {
	f.validates++

	return f.valid
}

func TestAuthenticateAccepted(t *testing.T) {
	remote := &fakeRemote{outcome: nextcloud.VerifyAccepted}
	cache := &fakeCache{}
	engine := New(remote, cache)

	if got := engine.Authenticate(context.Background(), "alice", "secret"); got != Granted {
		t.Errorf("Authenticate() = %v, want Granted", got)
	}

	if cache.puts != 1 || cache.putUser != "alice" || cache.putPass != "secret" {
		t.Errorf("accepted login should refresh the cache, puts = %d", cache.puts)
	}

	if cache.validates != 0 {
		t.Error("accepted login should not read the cache")
	}
}

// An explicit server reject denies even when the cache still holds a valid
// entry for the same password. Otherwise a password revoked on the server
// would keep working offline.
func TestAuthenticateRejectedIgnoresCache(t *testing.T) {
	remote := &fakeRemote{outcome: nextcloud.VerifyRejected}
	cache := &fakeCache{valid: true}
	engine := New(remote, cache)

	if got := engine.Authenticate(context.Background(), "alice", "revoked"); got != Denied {
		t.Errorf("Authenticate() = %v, want Denied", got)
	}

	if cache.validates != 0 {
		t.Error("rejected login must never consult the cache")
	}

	if cache.puts != 0 {
		t.Error("rejected login must not write the cache")
	}
}

func TestAuthenticateUnreachableFallsBackToCache(t *testing.T) {
	tests := []struct {
		name    string
		outcome nextcloud.VerifyOutcome
		valid   bool
		want    Decision
	}{
		{"unreachable with valid cache", nextcloud.VerifyUnreachable, true, Granted},
		{"unreachable with invalid cache", nextcloud.VerifyUnreachable, false, Denied},
		{"ambiguous with valid cache", nextcloud.VerifyAmbiguous, true, Granted},
		{"ambiguous with invalid cache", nextcloud.VerifyAmbiguous, false, Denied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &fakeRemote{outcome: tt.outcome}
			cache := &fakeCache{valid: tt.valid}
			engine := New(remote, cache)

			if got := engine.Authenticate(context.Background(), "alice", "secret"); got != tt.want {
				t.Errorf("Authenticate() = %v, want %v", got, tt.want)
			}

			if cache.validates != 1 {
				t.Errorf("cache validates = %d, want 1", cache.validates)
			}

			if cache.puts != 0 {
				t.Error("fallback must not write the cache")
			}
		})
	}
}

func TestAuthenticateWithoutCache(t *testing.T) {
	tests := []struct {
		name    string
		outcome nextcloud.VerifyOutcome
		want    Decision
	}{
		{"accepted", nextcloud.VerifyAccepted, Granted},
		{"rejected", nextcloud.VerifyRejected, Denied},
		{"unreachable", nextcloud.VerifyUnreachable, Denied},
		{"ambiguous", nextcloud.VerifyAmbiguous, Denied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := New(&fakeRemote{outcome: tt.outcome}, nil)

			if got := engine.Authenticate(context.Background(), "alice", "secret"); got != tt.want {
				t.Errorf("Authenticate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAuthenticateEmptyCredentials(t *testing.T) {
	remote := &fakeRemote{outcome: nextcloud.VerifyAccepted}
	engine := New(remote, &fakeCache{valid: true})

	if got := engine.Authenticate(context.Background(), "", "secret"); got != Denied {
		t.Errorf("Authenticate() with empty username = %v, want Denied", got)
	}

	if got := engine.Authenticate(context.Background(), "alice", ""); got != Denied {
		t.Errorf("Authenticate() with empty password = %v, want Denied", got)
	}

	if remote.calls != 0 {
		t.Error("empty credentials should never reach the server")
	}
}
