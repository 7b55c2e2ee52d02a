package config

import (
	"errors"
)

var (
	// ErrEmptyURL error if config nextcloud.url is empty.
	ErrEmptyURL = errors.New("toml config nextcloud.url can not be empty")

	// ErrConfigNotFound error if the config file does not exist. A missing
	// config must fail the invocation closed, never default to allow.
	ErrConfigNotFound = errors.New("config file not found")
)
