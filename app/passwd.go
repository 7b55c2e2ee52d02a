package app

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/pam-nextcloud/ncbroker/internal/passwd"
)

var errBadPhase = errors.New("exactly one of --prelim or --update is required")

func init() { //nolint: gochecknoinits
	passwdCmd.Flags().StringVar(&passwdUser, "user", "", "Username whose password changes (default: $PAM_USER)")
	passwdCmd.Flags().BoolVar(&passwdPrelim, "prelim", false, "Run the preliminary check: verify the old password")
	passwdCmd.Flags().BoolVar(&passwdUpdate, "update", false, "Run the update: commit the new password")

	rootCmd.AddCommand(passwdCmd)
}

var (
	passwdUser   string
	passwdPrelim bool
	passwdUpdate bool

	passwdCmd = &cobra.Command{
		Use:   "passwd",
		Short: "Change a user's password on the Nextcloud server",
		Long: `passwd mirrors the host's two phase password change. --prelim reads the
old password from stdin, verifies it and parks it for the update phase.
--update reads the new password from stdin, retrieves the parked old
password and commits the change. A change only counts once the server
structurally confirmed it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if passwdPrelim == passwdUpdate {
				return errBadPhase
			}

			if err := setup(); err != nil {
				return err
			}

			user := username(passwdUser)

			secret, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}

			client := newClient()
			orch := passwd.New(newEngine(client), client, newCache())
			handoff := passwd.NewHandoff("")

			if passwdPrelim {
				if err := orch.Verify(cmd.Context(), user, secret); err != nil {
					return err
				}

				return handoff.Park(user, secret)
			}

			oldPassword, err := handoff.Take(user)
			if err != nil {
				return err
			}

			return orch.Change(cmd.Context(), user, oldPassword, secret)
		},
	}
)
