package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pam-nextcloud/ncbroker/internal/credcache"
)

var errCacheDisabled = errors.New("credential caching is disabled in the configuration")

func init() { //nolint: gochecknoinits
	cacheInvalidateCmd.Flags().StringVar(&cacheUser, "user", "", "Username whose cache entry is removed")

	if err := cacheInvalidateCmd.MarkFlagRequired("user"); err != nil {
		panic(err)
	}

	cacheCmd.AddCommand(cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}

var (
	cacheUser string

	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Manage the offline credential cache",
	}

	cacheInvalidateCmd = &cobra.Command{
		Use:   "invalidate",
		Short: "Remove a user's cached credentials",
		Long: `invalidate deletes the offline cache entry for a user, forcing their next
login to be decided by the server. Useful after disabling an account on
Nextcloud while the entry has not expired yet.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := setupInteractive(); err != nil {
				return err
			}

			if !cfg.Cache.Enabled {
				return errCacheDisabled
			}

			store := credcache.New(cfg.Cache.Directory, cfg.Cache.ExpiryDays)
			if err := store.Invalidate(cacheUser); err != nil {
				return err
			}

			fmt.Printf("cache entry for %s removed\n", cacheUser)

			return nil
		},
	}
)
