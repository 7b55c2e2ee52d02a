package app

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pam-nextcloud/ncbroker/internal/authn"
	"github.com/pam-nextcloud/ncbroker/internal/nextcloud"
	"github.com/pam-nextcloud/ncbroker/internal/session"
)

var errAuthenticationFailed = errors.New("authentication failed")

func init() { //nolint: gochecknoinits
	authenticateCmd.Flags().StringVar(&authUser, "user", "", "Username to authenticate (default: $PAM_USER)")

	rootCmd.AddCommand(authenticateCmd)
}

var (
	authUser string

	authenticateCmd = &cobra.Command{
		Use:   "authenticate",
		Short: "Verify a username and password, reading the password from stdin",
		Long: `authenticate decides a login attempt. The password arrives on stdin the
way pam_exec delivers it. Exit code 0 grants access, anything else denies.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := setup(); err != nil {
				return err
			}

			user := username(authUser)

			password, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}

			client := newClient()
			engine := newEngine(client)

			if engine.Authenticate(cmd.Context(), user, password) != authn.Granted {
				return errAuthenticationFailed
			}

			parkGroups(cmd, client, user, password)

			return nil
		},
	}
)

// parkGroups fetches the user's remote groups while their credentials are
// still at hand and parks the list for the session phase. Best effort: a
// failure here never turns a granted login into a denial.
func parkGroups(cmd *cobra.Command, client *nextcloud.Client, user, password string) {
	if !cfg.GroupSync.Enabled {
		return
	}

	creds := nextcloud.Credentials{Username: user, Password: password}

	groups, err := client.UserGroups(cmd.Context(), creds, user)
	if err != nil {
		log.Warn().Str("username", user).Err(err).Msg("could not fetch groups for session sync")

		return
	}

	if err := session.NewGroupStore("").Park(user, groups); err != nil {
		log.Warn().Str("username", user).Err(err).Msg("could not park group list")
	}
}

// readSecret reads a password the way pam_exec hands it over: the whole of
// stdin, stripped of trailing newline and NUL.
func readSecret(r io.Reader) (string, error) {
	data, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return "", err //nolint: wrapcheck
	}

	return strings.TrimRight(string(data), "\x00\n"), nil
}
