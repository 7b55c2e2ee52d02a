package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/pam-nextcloud/ncbroker/internal/groupsync"
	"github.com/pam-nextcloud/ncbroker/internal/localdir"
	"github.com/pam-nextcloud/ncbroker/internal/nextcloud"
)

var (
	errNoMode       = errors.New("one of --all-groups, --group or --user is required")
	errUnknownUser  = errors.New("user does not exist locally")
	errUnknownGroup = errors.New("group does not exist locally after mapping")
)

func init() { //nolint: gochecknoinits
	syncCmd.Flags().StringVar(&syncAdminUser, "admin-user", "", "Nextcloud admin username (prompted if not provided)")
	syncCmd.Flags().BoolVar(&syncAllGroups, "all-groups", false, "Sync all groups that exist on both systems")
	syncCmd.Flags().StringVar(&syncGroup, "group", "", "Sync membership of a single Nextcloud group")
	syncCmd.Flags().StringVar(&syncUserFlag, "user", "", "Sync groups of a single user")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Show what would be done without making changes")

	rootCmd.AddCommand(syncCmd)
}

var (
	syncAdminUser string
	syncAllGroups bool
	syncGroup     string
	syncUserFlag  string
	syncDryRun    bool

	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Reconcile local group membership with Nextcloud",
		Long: `sync compares group membership between Nextcloud and the local system
and applies the difference. Users are only added to or removed from local
groups when they exist locally; accounts are never created here (see the
provision command). Repeated runs over unchanged state are no-ops.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := setupInteractive(); err != nil {
				return err
			}

			creds, err := promptAdminCredentials(syncAdminUser)
			if err != nil {
				return err
			}

			client := newClient()
			dir := localdir.NewSystem()
			syncer := newGroupSyncer(dir)
			src := adminSource{client: client, creds: creds}

			switch {
			case syncAllGroups:
				err = runSyncAll(ctx, syncer, src)
			case syncUserFlag != "":
				err = runSyncUser(ctx, client, creds, syncer, dir, syncUserFlag)
			case syncGroup != "":
				err = runSyncGroup(ctx, syncer, src, dir, syncGroup)
			default:
				return errNoMode
			}

			if ctx.Err() != nil {
				return ErrInterrupted
			}

			return err
		},
	}
)

// adminSource adapts the Nextcloud client plus admin credentials to the
// groupsync member source.
type adminSource struct {
	client *nextcloud.Client
	creds  nextcloud.Credentials
}

func (s adminSource) Groups(ctx context.Context) ([]string, error) {
	return s.client.Groups(ctx, s.creds)
}

func (s adminSource) GroupMembers(ctx context.Context, group string) ([]string, error) {
	return s.client.GroupMembers(ctx, s.creds, group)
}

func newGroupSyncer(dir localdir.Directory) *groupsync.Syncer {
	return groupsync.NewSyncer(newMapper(dir), dir, cfg.GroupSync.CreateMissingGroups)
}

func promptAdminCredentials(adminUser string) (nextcloud.Credentials, error) {
	var err error

	if adminUser == "" {
		prompt := promptui.Prompt{Label: "Nextcloud admin username"}

		if adminUser, err = prompt.Run(); err != nil {
			return nextcloud.Credentials{}, err //nolint: wrapcheck
		}
	}

	prompt := promptui.Prompt{Label: "Nextcloud admin password", Mask: '*'}

	password, err := prompt.Run()
	if err != nil {
		return nextcloud.Credentials{}, err //nolint: wrapcheck
	}

	return nextcloud.Credentials{Username: strings.TrimSpace(adminUser), Password: password}, nil
}

func runSyncAll(ctx context.Context, syncer *groupsync.Syncer, src groupsync.MemberSource) error {
	deltas, err := syncer.PlanAll(ctx, src)
	if err != nil {
		return err
	}

	if len(deltas) == 0 {
		fmt.Println("no common groups between Nextcloud and the local system")

		return nil
	}

	var applied, failed int

	for _, delta := range deltas {
		printDelta(delta)

		if syncDryRun || delta.Empty() {
			continue
		}

		a, f := syncer.Apply(delta)
		applied += a
		failed += f
	}

	if syncDryRun {
		fmt.Printf("[dry run] %d group(s) would be synced\n", len(deltas))

		return nil
	}

	fmt.Printf("synced %d group(s): %d change(s) applied, %d failed\n", len(deltas), applied, failed)

	return nil
}

func runSyncUser(
	ctx context.Context,
	client *nextcloud.Client,
	creds nextcloud.Credentials,
	syncer *groupsync.Syncer,
	dir localdir.Directory,
	user string,
) error {
	if !dir.UserExists(user) {
		return fmt.Errorf("%w: %s", errUnknownUser, user)
	}

	groups, err := client.UserGroups(ctx, creds, user)
	if err != nil {
		return err
	}

	if len(groups) == 0 {
		fmt.Printf("no groups found for user %s on Nextcloud\n", user)

		return nil
	}

	if syncDryRun {
		fmt.Printf("[dry run] would sync groups for %s: %s\n", user, strings.Join(groups, ", "))

		return nil
	}

	res := syncer.Sync(user, groups)
	fmt.Printf("synced groups for %s: %s\n", user, strings.Join(res.Applied, ", "))

	if len(res.Failed) > 0 {
		fmt.Printf("failed groups: %s\n", strings.Join(res.Failed, ", "))
	}

	return nil
}

func runSyncGroup(
	ctx context.Context,
	syncer *groupsync.Syncer,
	src adminSource,
	dir localdir.Directory,
	group string,
) error {
	localGroup := ""

	for _, candidate := range newMapper(dir).Map(group) {
		if dir.GroupExists(candidate) {
			localGroup = candidate

			break
		}
	}

	if localGroup == "" {
		return fmt.Errorf("%w: %s", errUnknownGroup, group)
	}

	members, err := src.GroupMembers(ctx, group)
	if err != nil {
		return err
	}

	delta, err := syncer.PlanGroup(group, localGroup, members)
	if err != nil {
		return err
	}

	printDelta(delta)

	if syncDryRun || delta.Empty() {
		return nil
	}

	applied, failed := syncer.Apply(delta)
	fmt.Printf("%d change(s) applied, %d failed\n", applied, failed)

	return nil
}

func newMapper(dir localdir.Directory) *groupsync.Mapper {
	return groupsync.NewMapper(cfg.GroupMapping, cfg.GroupSync.Prefix, cfg.GroupSync.EnableSudoMapping, dir)
}

func printDelta(delta groupsync.Delta) {
	fmt.Printf("group %s -> %s\n", delta.RemoteGroup, delta.LocalGroup)

	if delta.Empty() {
		fmt.Println("  membership already synchronized")

		return
	}

	if len(delta.ToAdd) > 0 {
		fmt.Printf("  add: %s\n", strings.Join(delta.ToAdd, ", "))
	}

	if len(delta.ToRemove) > 0 {
		fmt.Printf("  remove: %s\n", strings.Join(delta.ToRemove, ", "))
	}
}
