// Package config handles input from the broker's toml config file.
package config

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/BurntSushi/toml"
)

// DefaultPath is where the PAM stack expects the broker configuration.
const DefaultPath = "/etc/security/ncbroker.toml"

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var (
		c             Config
		JSONConfigEnv string
		err           error
	)

	if path == "" {
		path = DefaultPath
	}

	if _, err = os.Stat(path); err != nil {
		return Config{}, errors.Wrap(ErrConfigNotFound, path)
	}

	c = defaults()

	// Read main configuration
	if _, err = toml.DecodeFile(path, &c); err != nil {
		return Config{}, errors.Wrap(err, "failed to read config file")
	}

	// override it from env
	JSONConfigEnv = os.Getenv("NCBROKER_CONFIG_JSON")

	if JSONConfigEnv != "" {
		c, err = decodeAndMergeConfig(c, JSONConfigEnv)
		if err != nil {
			return c, err
		}
	}

	return c, validate(c)
}

// defaults returns the config preset with the values a missing key falls
// back to. Decoding on top only overrides keys present in the file.
func defaults() Config {
	var c Config

	c.Nextcloud.VerifySSL = true
	c.Nextcloud.TimeoutSeconds = 10

	c.Cache.ExpiryDays = 7
	c.Cache.Directory = "/var/cache/ncbroker"

	c.GroupSync.CreateMissingGroups = true

	c.Log.LogLevel = "info"
	c.Log.AppName = "ncbroker"
	c.Log.ServiceName = "ncbroker"
	c.Log.Syslog.Enabled = true

	return c
}

func decodeAndMergeConfig(c Config, configAsJSON string) (Config, error) {
	err := json.Unmarshal([]byte(configAsJSON), &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read config from env")
	}

	return c, nil
}

// DumpConfig config as TOML String.
func DumpConfig(c Config) (string, error) {
	var buffer bytes.Buffer
	t := toml.NewEncoder(&buffer)

	if err := t.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate minimal config settings for the broker.
// Authentication fails closed on any error returned here.
func validate(c Config) error {
	invalidErrMessage := "invalid config"

	if c.Nextcloud.URL == "" {
		return errors.Wrap(ErrEmptyURL, invalidErrMessage)
	}

	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, invalidErrMessage)
	}

	return nil
}
