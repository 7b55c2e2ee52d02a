package nextcloud

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

const okEnvelope = `{"ocs":{"meta":{"status":"ok","statuscode":100,"message":"OK"},"data":{}}}`

func TestVerifySelf(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   VerifyOutcome
	}{
		{"accepted", http.StatusOK, VerifyAccepted},
		{"rejected", http.StatusUnauthorized, VerifyRejected},
		{"server error is ambiguous", http.StatusInternalServerError, VerifyAmbiguous},
		{"unavailable is ambiguous", http.StatusServiceUnavailable, VerifyAmbiguous},
		{"not found is ambiguous", http.StatusNotFound, VerifyAmbiguous},
		{"redirect is ambiguous", http.StatusFound, VerifyAmbiguous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := New(srv.URL, true, time.Second)

			got, _ := client.VerifySelf(context.Background(), Credentials{Username: "alice", Password: "secret"})
			if got != tt.want {
				t.Errorf("VerifySelf() = %v, want %v", got, tt.want)
			}
		})
	}
}

// An uninitialized outcome must never read as an accept or an explicit
// reject: both would let a forgotten assignment steer the decision.
func TestVerifyOutcomeZeroValueFailsClosed(t *testing.T) {
	var outcome VerifyOutcome

	if outcome == VerifyAccepted {
		t.Fatal("the zero outcome must not equal VerifyAccepted")
	}

	if outcome == VerifyRejected {
		t.Fatal("the zero outcome must not equal VerifyRejected")
	}

	if outcome.String() != "ambiguous" {
		t.Errorf("zero outcome String() = %q, want ambiguous", outcome.String())
	}
}

func TestVerifySelfUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	srv.Close() // connection refused from here on

	client := New(srv.URL, true, time.Second)

	got, err := client.VerifySelf(context.Background(), Credentials{Username: "alice", Password: "secret"})
	if got != VerifyUnreachable {
		t.Errorf("VerifySelf() = %v, want VerifyUnreachable", got)
	}

	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("VerifySelf() error = %v, want ErrUnreachable", err)
	}
}

func TestVerifySelfTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(srv.URL, true, 50*time.Millisecond)

	got, _ := client.VerifySelf(context.Background(), Credentials{Username: "alice", Password: "secret"})
	if got != VerifyUnreachable {
		t.Errorf("VerifySelf() = %v, want VerifyUnreachable on timeout", got)
	}
}

func TestVerifySelfRequestShape(t *testing.T) {
	var (
		gotPath   string
		gotHeader string
		gotUser   string
		gotPass   string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Get("OCS-APIRequest")
		gotUser, gotPass, _ = r.BasicAuth()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(srv.URL, true, time.Second)

	_, _ = client.VerifySelf(context.Background(), Credentials{Username: "alice", Password: "secret"})

	if gotPath != "/ocs/v2.php/cloud/user" {
		t.Errorf("path = %q, want /ocs/v2.php/cloud/user", gotPath)
	}

	if gotHeader != "true" {
		t.Errorf("OCS-APIRequest header = %q, want true", gotHeader)
	}

	if gotUser != "alice" || gotPass != "secret" {
		t.Errorf("basic auth = %q/%q, want alice/secret", gotUser, gotPass)
	}
}

func TestChangePassword(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:   "confirmed change",
			status: http.StatusOK,
			body:   okEnvelope,
		},
		{
			name:   "confirmed change xml envelope",
			status: http.StatusOK,
			body: `<?xml version="1.0"?><ocs><meta><status>ok</status>` +
				`<statuscode>100</statuscode><message>OK</message></meta><data/></ocs>`,
		},
		{
			name:    "transport ok but server refused",
			status:  http.StatusOK,
			body:    `{"ocs":{"meta":{"status":"failure","statuscode":102,"message":"Password too weak"},"data":{}}}`,
			wantErr: ErrChangeRejected,
		},
		{
			name:    "unparseable body is a failure",
			status:  http.StatusOK,
			body:    "<html>maintenance</html>",
			wantErr: ErrInvalidResponse,
		},
		{
			name:    "empty meta is a failure",
			status:  http.StatusOK,
			body:    `{}`,
			wantErr: ErrChangeRejected,
		},
		{
			name:    "old password wrong",
			status:  http.StatusUnauthorized,
			body:    "",
			wantErr: ErrUnauthorized,
		},
		{
			name:    "not allowed",
			status:  http.StatusForbidden,
			body:    "",
			wantErr: ErrForbidden,
		},
		{
			name:    "unknown user",
			status:  http.StatusNotFound,
			body:    "",
			wantErr: ErrUserNotFound,
		},
		{
			name:    "unexpected status",
			status:  http.StatusBadGateway,
			body:    "",
			wantErr: ErrUnexpectedStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := New(srv.URL, true, time.Second)
			creds := Credentials{Username: "alice", Password: "old-secret"}

			err := client.ChangePassword(context.Background(), creds, "alice", "new-secret")

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ChangePassword() error = %v, want nil", err)
				}

				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ChangePassword() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChangePasswordRequestShape(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotForm   url.Values
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path

		_ = r.ParseForm()
		gotForm = r.PostForm

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(okEnvelope))
	}))
	defer srv.Close()

	client := New(srv.URL, true, time.Second)
	creds := Credentials{Username: "alice", Password: "old-secret"}

	if err := client.ChangePassword(context.Background(), creds, "alice", "new-secret"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT", gotMethod)
	}

	if gotPath != "/ocs/v1.php/cloud/users/alice" {
		t.Errorf("path = %q, want /ocs/v1.php/cloud/users/alice", gotPath)
	}

	if gotForm.Get("key") != "password" {
		t.Errorf("form key = %q, want password", gotForm.Get("key"))
	}

	if gotForm.Get("value") != "new-secret" {
		t.Errorf("form value = %q, want the new password", gotForm.Get("value"))
	}
}

func TestUserGroups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ocs/v1.php/cloud/users/alice/groups" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}

		_, _ = w.Write([]byte(`{"ocs":{"meta":{"status":"ok","statuscode":100},"data":{"groups":["Admins","staff"]}}}`))
	}))
	defer srv.Close()

	client := New(srv.URL, true, time.Second)

	groups, err := client.UserGroups(context.Background(), Credentials{Username: "alice", Password: "x"}, "alice")
	if err != nil {
		t.Fatalf("UserGroups() error = %v", err)
	}

	if len(groups) != 2 || groups[0] != "Admins" || groups[1] != "staff" {
		t.Errorf("UserGroups() = %v, want [Admins staff]", groups)
	}
}

func TestGroupMembersFallsBackToUserEnumeration(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ocs/v2.php/cloud/groups/staff/users", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/ocs/v1.php/cloud/users", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ocs":{"meta":{"status":"ok","statuscode":100},"data":{"users":["alice","bob"]}}}`))
	})
	mux.HandleFunc("/ocs/v1.php/cloud/users/alice/groups", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ocs":{"meta":{"status":"ok","statuscode":100},"data":{"groups":["staff"]}}}`))
	})
	mux.HandleFunc("/ocs/v1.php/cloud/users/bob/groups", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ocs":{"meta":{"status":"ok","statuscode":100},"data":{"groups":["other"]}}}`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := New(srv.URL, true, time.Second)

	members, err := client.GroupMembers(context.Background(), Credentials{Username: "admin", Password: "x"}, "staff")
	if err != nil {
		t.Fatalf("GroupMembers() error = %v", err)
	}

	if len(members) != 1 || members[0] != "alice" {
		t.Errorf("GroupMembers() = %v, want [alice]", members)
	}
}
