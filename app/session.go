package app

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pam-nextcloud/ncbroker/internal/groupsync"
	"github.com/pam-nextcloud/ncbroker/internal/localdir"
	"github.com/pam-nextcloud/ncbroker/internal/session"
)

func init() { //nolint: gochecknoinits
	sessionCmd.PersistentFlags().StringVar(&sessionUser, "user", "", "Username of the session (default: $PAM_USER)")

	sessionCmd.AddCommand(sessionOpenCmd)
	sessionCmd.AddCommand(sessionCloseCmd)
	rootCmd.AddCommand(sessionCmd)
}

var (
	sessionUser string

	sessionCmd = &cobra.Command{
		Use:   "session",
		Short: "Session open and close hooks",
	}

	// Opening a session never fails from the host's point of view: the
	// user already authenticated, so every problem below is logged and
	// swallowed.
	sessionOpenCmd = &cobra.Command{
		Use:   "open",
		Short: "Run the session open integrations for a user",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := setup(); err != nil {
				log.Error().Err(err).Msg("session open skipped, broker not configured")

				return nil
			}

			dir := localdir.NewSystem()

			var syncer *groupsync.Syncer
			if cfg.GroupSync.Enabled {
				syncer = newGroupSyncer(dir)
			}

			opener := session.NewOpener(cfg.Nextcloud.URL, dir, syncer, session.NewGroupStore(""))
			opener.Open(username(sessionUser))

			return nil
		},
	}

	sessionCloseCmd = &cobra.Command{
		Use:   "close",
		Short: "Close a session (no-op)",
		RunE: func(_ *cobra.Command, _ []string) error {
			return nil
		},
	}
)
