// Package nextcloud implements the client for the Nextcloud OCS API. It is
// the only place in the broker that talks to the remote identity provider.
//
// Every call carries HTTP Basic credentials plus the OCS-APIRequest header,
// runs under the configured timeout and returns typed outcomes instead of
// raw transport state: the decision engine switches on these, it never
// inspects status codes itself.
package nextcloud

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultTimeout = 10 * time.Second

	selfEndpoint   = "/ocs/v2.php/cloud/user"
	usersEndpoint  = "/ocs/v1.php/cloud/users"
	groupsEndpoint = "/ocs/v2.php/cloud/groups"
)

// Credentials are the HTTP Basic credentials a request runs under.
type Credentials struct {
	Username string
	Password string
}

// VerifyOutcome classifies a credential verification response.
type VerifyOutcome int

const (
	// VerifyAmbiguous covers every response outside the contract: unexpected
	// status codes and protocol errors. Treated like unreachable by the
	// decision engine. Deliberately the zero value so an uninitialized
	// outcome can never read as an accept.
	VerifyAmbiguous VerifyOutcome = iota
	// VerifyAccepted means the server confirmed the credentials.
	VerifyAccepted
	// VerifyRejected means the server explicitly rejected the credentials.
	VerifyRejected
	// VerifyUnreachable means the server could not be reached.
	VerifyUnreachable
)

func (o VerifyOutcome) String() string {
	switch o {
	case VerifyAccepted:
		return "accepted"
	case VerifyRejected:
		return "rejected"
	case VerifyUnreachable:
		return "unreachable"
	default:
		return "ambiguous"
	}
}

// Client is the Nextcloud OCS API client. It is immutable after New and
// safe for reuse across calls within one invocation.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Nextcloud client for the given base URL.
func New(baseURL string, verifySSL bool, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !verifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// VerifySelf checks the credentials against the caller's own identity
// endpoint. 200 means valid, 401 means invalid, everything else is either
// unreachable or ambiguous. The returned error carries transport detail for
// logging only; the outcome alone drives the authentication decision.
func (c *Client) VerifySelf(ctx context.Context, creds Credentials) (VerifyOutcome, error) {
	resp, err := c.do(ctx, http.MethodGet, selfEndpoint, creds, nil)
	if err != nil {
		log.Warn().
			Str("username", creds.Username).
			Str("cause", classifyTransport(err)).
			Err(err).
			Msg("credential verification could not reach server")

		return VerifyUnreachable, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return VerifyAccepted, nil
	case http.StatusUnauthorized:
		return VerifyRejected, nil
	default:
		log.Error().
			Str("username", creds.Username).
			Int("status", resp.StatusCode).
			Msg("unexpected response from self endpoint")

		return VerifyAmbiguous, fmt.Errorf("%w: %d from self endpoint", ErrUnexpectedStatus, resp.StatusCode)
	}
}

// ChangePassword updates the user's password, authenticated with the old
// credentials. Transport success is not enough: the OCS meta status inside
// the body decides, and an undecodable body is a failure.
func (c *Client) ChangePassword(ctx context.Context, creds Credentials, username, newPassword string) error {
	form := url.Values{}
	form.Set("key", "password")
	form.Set("value", newPassword)

	endpoint := usersEndpoint + "/" + url.PathEscape(username)

	resp, err := c.do(ctx, http.MethodPut, endpoint, creds, form)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to the meta check below
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrUserNotFound
	default:
		return fmt.Errorf("%w: %d from password change", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	m, err := decodeMeta(body)
	if err != nil {
		log.Warn().
			Str("username", username).
			Err(err).
			Msg("could not parse password change response, treating as failure")

		return ErrInvalidResponse
	}

	if !m.OK() {
		return fmt.Errorf("%w: %s", ErrChangeRejected, m.Describe())
	}

	return nil
}

const maxBodySize = 1 << 20

// do issues a single OCS request. Form values switch the request to a
// urlencoded body, otherwise JSON responses are requested.
func (c *Client) do(ctx context.Context, method, endpoint string, creds Credentials, form url.Values) (*http.Response, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.SetBasicAuth(creds.Username, creds.Password)
	req.Header.Set("OCS-APIRequest", "true")
	req.Header.Set("Accept", "application/json")

	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err //nolint: wrapcheck
	}

	return resp, nil
}

// classifyTransport names the transport failure class for the logs. The
// decision engine treats them all the same.
func classifyTransport(err error) string {
	var (
		netErr   net.Error
		certErr  *x509.CertificateInvalidError
		unkErr   x509.UnknownAuthorityError
		hostErr  x509.HostnameError
		recErr   tls.RecordHeaderError
		verErr   *tls.CertificateVerificationError
		opErr    *net.OpError
		urlError *url.Error
	)

	if errors.As(err, &urlError) {
		err = urlError.Err
	}

	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &certErr), errors.As(err, &unkErr), errors.As(err, &hostErr),
		errors.As(err, &recErr), errors.As(err, &verErr):
		return "tls"
	case errors.As(err, &opErr):
		return "connection"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "other"
	}
}

// drain discards the rest of a response body so the connection can be
// reused, then closes it.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
	_ = resp.Body.Close()
}
