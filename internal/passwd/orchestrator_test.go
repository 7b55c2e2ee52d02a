package passwd

import (
	"context"
	"errors"
	"testing"

	"github.com/pam-nextcloud/ncbroker/internal/authn"
	"github.com/pam-nextcloud/ncbroker/internal/nextcloud"
)

type fakeAuthenticator struct {
	decision authn.Decision
	calls    int
	lastPass string
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, _, password string) authn.Decision {
	f.calls++
	f.lastPass = password

	return f.decision
}

type fakeChanger struct {
	err error

	calls       int
	gotCreds    nextcloud.Credentials
	gotUsername string
	gotNew      string

	// callOrder records whether verification already ran when the change
	// request went out
	verifiedFirst bool
	auth          *fakeAuthenticator
}

func (f *fakeChanger) ChangePassword(_ context.Context, creds nextcloud.Credentials, username, newPassword string) error {
	f.calls++
	f.gotCreds = creds
	f.gotUsername = username
	f.gotNew = newPassword

	if f.auth != nil {
		f.verifiedFirst = f.auth.calls > 0
	}

	return f.err
}

type fakeCache struct {
	putUser, putPass string
	puts             int
}

func (f *fakeCache) Put(username, password string) error {
	f.puts++
	f.putUser = username
	f.putPass = password

	return nil
}

func (f *fakeCache) Validate(_, _ string) bool { return false }

func TestChangeSuccess(t *testing.T) {
	auth := &fakeAuthenticator{decision: authn.Granted}
	changer := &fakeChanger{auth: auth}
	cache := &fakeCache{}
	orch := New(auth, changer, cache)

	err := orch.Change(context.Background(), "alice", "old-secret", "new-secret")
	if err != nil {
		t.Fatalf("Change() error = %v", err)
	}

	if !changer.verifiedFirst {
		t.Error("the old password must verify before the change request goes out")
	}

	if changer.gotCreds.Password != "old-secret" {
		t.Error("the change request must authenticate with the old password")
	}

	if changer.gotUsername != "alice" || changer.gotNew != "new-secret" {
		t.Errorf("change request carried %q/%q", changer.gotUsername, changer.gotNew)
	}

	// the cache holds the new password afterwards, not the old one
	if cache.puts != 1 || cache.putPass != "new-secret" {
		t.Errorf("cache should hold the new password, puts = %d pass = %q", cache.puts, cache.putPass)
	}
}

func TestChangeRefusedOldPassword(t *testing.T) {
	auth := &fakeAuthenticator{decision: authn.Denied}
	changer := &fakeChanger{}
	cache := &fakeCache{}
	orch := New(auth, changer, cache)

	err := orch.Change(context.Background(), "alice", "wrong", "new-secret")
	if !errors.Is(err, ErrInvalidOldPassword) {
		t.Fatalf("Change() error = %v, want ErrInvalidOldPassword", err)
	}

	if changer.calls != 0 {
		t.Error("a failed verification must never reach the change endpoint")
	}

	if cache.puts != 0 {
		t.Error("a failed change must not touch the cache")
	}
}

func TestChangeServerRefused(t *testing.T) {
	auth := &fakeAuthenticator{decision: authn.Granted}
	changer := &fakeChanger{err: nextcloud.ErrChangeRejected}
	cache := &fakeCache{}
	orch := New(auth, changer, cache)

	err := orch.Change(context.Background(), "alice", "old-secret", "weak")
	if !errors.Is(err, nextcloud.ErrChangeRejected) {
		t.Fatalf("Change() error = %v, want ErrChangeRejected", err)
	}

	if cache.puts != 0 {
		t.Error("an unconfirmed change must not update the cache")
	}
}

func TestChangeEmptyNewPassword(t *testing.T) {
	auth := &fakeAuthenticator{decision: authn.Granted}
	changer := &fakeChanger{}
	orch := New(auth, changer, nil)

	if err := orch.Change(context.Background(), "alice", "old-secret", ""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("Change() error = %v, want ErrEmptyPassword", err)
	}

	if auth.calls != 0 || changer.calls != 0 {
		t.Error("an empty new password should be refused before any remote call")
	}
}

func TestVerify(t *testing.T) {
	auth := &fakeAuthenticator{decision: authn.Granted}
	orch := New(auth, &fakeChanger{}, nil)

	if err := orch.Verify(context.Background(), "alice", "secret"); err != nil {
		t.Errorf("Verify() error = %v", err)
	}

	if err := orch.Verify(context.Background(), "alice", ""); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("Verify() with empty password error = %v, want ErrEmptyPassword", err)
	}

	auth.decision = authn.Denied
	if err := orch.Verify(context.Background(), "alice", "wrong"); !errors.Is(err, ErrInvalidOldPassword) {
		t.Errorf("Verify() error = %v, want ErrInvalidOldPassword", err)
	}
}
