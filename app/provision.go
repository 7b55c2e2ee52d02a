package app

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pam-nextcloud/ncbroker/internal/desktop"
	"github.com/pam-nextcloud/ncbroker/internal/localdir"
	"github.com/pam-nextcloud/ncbroker/internal/nextcloud"
)

func init() { //nolint: gochecknoinits
	provisionCmd.Flags().StringVar(&provisionAdminUser, "admin-user", "", "Nextcloud admin username (prompted if not provided)")
	provisionCmd.Flags().StringVar(&provisionGroup, "group", "", "Nextcloud group whose members get local accounts")
	provisionCmd.Flags().BoolVar(&provisionNoCreateHome, "no-create-home", false, "Do not create home directories for new accounts")
	provisionCmd.Flags().BoolVar(&provisionDryRun, "dry-run", false, "Show what would be done without making changes")

	if err := provisionCmd.MarkFlagRequired("group"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(provisionCmd)
}

var (
	provisionAdminUser    string
	provisionGroup        string
	provisionNoCreateHome bool
	provisionDryRun       bool

	provisionCmd = &cobra.Command{
		Use:   "provision",
		Short: "Create local accounts for the members of a Nextcloud group",
		Long: `provision creates a locked local account for every member of the given
Nextcloud group that does not exist yet. The local password stays locked,
logins go through the broker. Afterwards group membership is reconciled
the same way the sync command does it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := setupInteractive(); err != nil {
				return err
			}

			creds, err := promptAdminCredentials(provisionAdminUser)
			if err != nil {
				return err
			}

			client := newClient()
			dir := localdir.NewSystem()

			err = runProvision(ctx, client, creds, dir)

			if ctx.Err() != nil {
				return ErrInterrupted
			}

			return err
		},
	}
)

func runProvision(
	ctx context.Context,
	client *nextcloud.Client,
	creds nextcloud.Credentials,
	dir localdir.Directory,
) error {
	members, err := client.GroupMembers(ctx, creds, provisionGroup)
	if err != nil {
		return err
	}

	if len(members) == 0 {
		fmt.Printf("group %s has no members on Nextcloud\n", provisionGroup)

		return nil
	}

	sort.Strings(members)

	var created, skipped, failed int

	for _, member := range members {
		switch provisionMember(ctx, client, creds, dir, member) {
		case provisionCreated:
			created++
		case provisionSkipped:
			skipped++
		case provisionFailed:
			failed++
		}
	}

	if provisionDryRun {
		fmt.Printf("[dry run] %d account(s) would be created, %d already exist\n", created, skipped)

		return nil
	}

	if desktop.ConfigureGDMUserList("") {
		fmt.Println("configured the GDM login screen to list users")
	}

	fmt.Printf("provisioned %d account(s), %d already existed, %d failed\n", created, skipped, failed)

	if cfg.GroupSync.Enabled {
		if err := runSyncAll(ctx, newGroupSyncer(dir), adminSource{client: client, creds: creds}); err != nil {
			log.Warn().Err(err).Msg("group reconciliation after provisioning failed")
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d account(s) could not be provisioned", failed) //nolint: err113
	}

	return nil
}

type provisionOutcome int

const (
	provisionCreated provisionOutcome = iota
	provisionSkipped
	provisionFailed
)

func provisionMember(
	ctx context.Context,
	client *nextcloud.Client,
	creds nextcloud.Credentials,
	dir localdir.Directory,
	member string,
) provisionOutcome {
	displayName, err := client.UserDisplayName(ctx, creds, member)
	if err != nil {
		log.Debug().Str("username", member).Err(err).Msg("no display name, using username")
	}

	if dir.UserExists(member) {
		fmt.Printf("  %s already exists\n", member)
		ensureDesktopEntry(member, displayName)

		return provisionSkipped
	}

	if provisionDryRun {
		fmt.Printf("  would create %s\n", member)

		return provisionCreated
	}

	if err := dir.CreateUser(member, displayName, !provisionNoCreateHome); err != nil {
		log.Error().Str("username", member).Err(err).Msg("could not create user")
		fmt.Printf("  failed to create %s\n", member)

		return provisionFailed
	}

	if err := dir.LockPassword(member); err != nil {
		log.Warn().Str("username", member).Err(err).Msg("could not lock local password")
	}

	ensureDesktopEntry(member, displayName)
	fmt.Printf("  created %s\n", member)

	return provisionCreated
}

// ensureDesktopEntry registers the account with AccountsService so display
// managers list it with its display name. Purely cosmetic, never fatal.
func ensureDesktopEntry(username, displayName string) {
	if provisionDryRun {
		return
	}

	if err := desktop.EnsureAccountsServiceEntry("", username, displayName); err != nil {
		log.Debug().Str("username", username).Err(err).Msg("could not write AccountsService entry")
	}
}
