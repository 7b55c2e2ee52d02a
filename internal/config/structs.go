package config

import (
	"time"

	"github.com/pam-nextcloud/ncbroker/internal/logger"
)

// Nextcloud holds the remote identity provider settings.
type Nextcloud struct {
	// URL is the base URL of the Nextcloud server.
	URL string `toml:"url" validate:"required,url"`
	// VerifySSL controls TLS certificate verification. Disabling it is
	// only meant for test setups with self signed certificates.
	VerifySSL bool `toml:"verify_ssl"`
	// TimeoutSeconds bounds every remote call. An elapsed timeout counts
	// as an unreachable server, never as a rejected credential.
	TimeoutSeconds int `toml:"timeout_seconds" validate:"gte=0"`
}

// Timeout returns the remote call timeout as a duration.
func (n Nextcloud) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// Cache holds the offline credential cache settings.
type Cache struct {
	Enabled bool `toml:"enabled"`
	// ExpiryDays limits the age of a cached verifier. 0 means never expire.
	ExpiryDays int `toml:"expiry_days" validate:"gte=0"`
	// Directory is where per user cache entries live, mode 0700.
	Directory string `toml:"directory"`
}

// GroupSync holds the group reconciliation policy.
type GroupSync struct {
	Enabled bool `toml:"enabled"`
	// Prefix is prepended to normalized group names, empty by default.
	Prefix string `toml:"prefix"`
	// EnableSudoMapping maps admin style remote groups onto the first of
	// sudo, wheel or admin that exists locally.
	EnableSudoMapping bool `toml:"enable_sudo_mapping"`
	// CreateMissingGroups creates local groups that a mapping resolves to.
	CreateMissingGroups bool `toml:"create_missing_groups"`
}

// Config overall data structure.
type Config struct {
	Nextcloud Nextcloud `toml:"nextcloud"`
	Cache     Cache     `toml:"cache"`
	GroupSync GroupSync `toml:"group_sync"`

	// GroupMapping relates one remote group name to one or more local
	// group names, e.g. "Admins" = ["sudo"].
	GroupMapping map[string][]string `toml:"group_mapping"`

	Log logger.Log `toml:"log"`
}
