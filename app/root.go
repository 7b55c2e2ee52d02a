// Package app implements the broker commands invoked by the PAM stack and
// by administrators.
package app

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/pam-nextcloud/ncbroker/internal/authn"
	"github.com/pam-nextcloud/ncbroker/internal/config"
	"github.com/pam-nextcloud/ncbroker/internal/credcache"
	"github.com/pam-nextcloud/ncbroker/internal/logger"
	"github.com/pam-nextcloud/ncbroker/internal/nextcloud"
)

// ErrInterrupted is returned when a command was stopped by a signal; main
// maps it to exit code 130.
var ErrInterrupted = errors.New("interrupted")

var (
	cfgPath string
	cfg     config.Config

	rootCmd = &cobra.Command{
		Use:   "ncbroker",
		Short: "ncbroker authenticates Linux logins against a Nextcloud server",
		Long: `ncbroker is a credential broker between the PAM stack and a Nextcloud
server: it verifies login credentials against the Nextcloud API, keeps an
offline credential cache for outages, changes passwords, and mirrors
remote group membership onto local groups.`,
		Args:          cobra.OnlyValidArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
)

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().StringVar(
		&cfgPath,
		"config",
		config.DefaultPath,
		"Path to the broker configuration file",
	)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup loads the configuration and initializes logging. A failure here
// makes the invocation fail closed.
func setup() error {
	var err error

	if cfg, err = config.ReadConfig(cfgPath); err != nil {
		return err
	}

	return logger.Init(cfg.Log)
}

// setupInteractive is setup for commands run by an administrator on a
// terminal: log output additionally goes to the console.
func setupInteractive() error {
	var err error

	if cfg, err = config.ReadConfig(cfgPath); err != nil {
		return err
	}

	cfg.Log.Console.Enabled = true
	cfg.Log.Console.UseConsoleWriter = true

	return logger.Init(cfg.Log)
}

func newClient() *nextcloud.Client {
	return nextcloud.New(cfg.Nextcloud.URL, cfg.Nextcloud.VerifySSL, cfg.Nextcloud.Timeout())
}

// newCache returns the credential cache, or nil when caching is disabled.
// The nil is returned as the interface so the engine sees a real nil.
func newCache() authn.Cache {
	if !cfg.Cache.Enabled {
		return nil
	}

	return credcache.New(cfg.Cache.Directory, cfg.Cache.ExpiryDays)
}

func newEngine(client *nextcloud.Client) *authn.Engine {
	return authn.New(client, newCache())
}

// username resolves the account the host is asking about: the --user flag
// when given, otherwise PAM_USER from the environment.
func username(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}

	return os.Getenv("PAM_USER")
}
