package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func exampleConfigPath(t *testing.T) string {
	t.Helper()

	// Get the project root by going up from internal/config
	projectRoot, err := filepath.Abs("../../")
	if err != nil {
		t.Fatalf("failed to get project root: %v", err)
	}

	return filepath.Join(projectRoot, "etc", "ncbroker.toml")
}

func TestReadConfig(t *testing.T) {
	cfg, err := ReadConfig(exampleConfigPath(t))
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if cfg.Nextcloud.URL == "" {
		t.Error("Nextcloud.URL should not be empty")
	}

	if !cfg.Nextcloud.VerifySSL {
		t.Error("Nextcloud.VerifySSL should be true in the example config")
	}

	if cfg.Nextcloud.Timeout() <= 0 {
		t.Error("Nextcloud.Timeout() should be positive")
	}

	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled should be true in the example config")
	}

	if cfg.Cache.Directory == "" {
		t.Error("Cache.Directory should not be empty")
	}

	if cfg.Log.LogLevel == "" {
		t.Error("Log.LogLevel should not be empty")
	}
}

func TestReadConfigMissingFile(t *testing.T) {
	_, err := ReadConfig(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("ReadConfig() error = %v, want ErrConfigNotFound", err)
	}
}

func TestReadConfigDefaults(t *testing.T) {
	// a file setting only the URL leaves everything else at the preset
	path := filepath.Join(t.TempDir(), "minimal.toml")
	content := "[nextcloud]\nurl = \"https://cloud.example.com\"\n"

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := ReadConfig(path)
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if !cfg.Nextcloud.VerifySSL {
		t.Error("VerifySSL should default to true")
	}

	if cfg.Nextcloud.TimeoutSeconds != 10 {
		t.Errorf("TimeoutSeconds = %d, want 10", cfg.Nextcloud.TimeoutSeconds)
	}

	if cfg.Cache.ExpiryDays != 7 {
		t.Errorf("Cache.ExpiryDays = %d, want 7", cfg.Cache.ExpiryDays)
	}

	if cfg.Cache.Directory != "/var/cache/ncbroker" {
		t.Errorf("Cache.Directory = %q, want /var/cache/ncbroker", cfg.Cache.Directory)
	}

	if !cfg.GroupSync.CreateMissingGroups {
		t.Error("GroupSync.CreateMissingGroups should default to true")
	}

	if !cfg.Log.Syslog.Enabled {
		t.Error("Log.Syslog.Enabled should default to true")
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: Config{
				Nextcloud: Nextcloud{
					URL:            "https://cloud.example.com",
					TimeoutSeconds: 10,
				},
			},
			wantErr: false,
		},
		{
			name:    "missing URL",
			config:  Config{},
			wantErr: true,
		},
		{
			name: "malformed URL",
			config: Config{
				Nextcloud: Nextcloud{
					URL: "not a url",
				},
			},
			wantErr: true,
		},
		{
			name: "negative timeout",
			config: Config{
				Nextcloud: Nextcloud{
					URL:            "https://cloud.example.com",
					TimeoutSeconds: -1,
				},
			},
			wantErr: true,
		},
		{
			name: "negative expiry",
			config: Config{
				Nextcloud: Nextcloud{URL: "https://cloud.example.com"},
				Cache:     Cache{ExpiryDays: -1},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadConfigWithJSONOverride(t *testing.T) {
	jsonOverride := `{"Nextcloud":{"URL":"https://override.example.com","TimeoutSeconds":3}}`
	t.Setenv("NCBROKER_CONFIG_JSON", jsonOverride)

	cfg, err := ReadConfig(exampleConfigPath(t))
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if cfg.Nextcloud.URL != "https://override.example.com" {
		t.Errorf("Nextcloud.URL = %v, want the override", cfg.Nextcloud.URL)
	}

	if cfg.Nextcloud.TimeoutSeconds != 3 {
		t.Errorf("Nextcloud.TimeoutSeconds = %v, want 3", cfg.Nextcloud.TimeoutSeconds)
	}
}

func TestDumpConfig(t *testing.T) {
	cfg := Config{
		Nextcloud: Nextcloud{
			URL:            "https://cloud.example.com",
			VerifySSL:      true,
			TimeoutSeconds: 10,
		},
		GroupMapping: map[string][]string{
			"Admins": {"sudo"},
		},
	}

	tomlStr, err := DumpConfig(cfg)
	if err != nil {
		t.Fatalf("DumpConfig() error = %v", err)
	}

	if tomlStr == "" {
		t.Error("DumpConfig() returned empty string")
	}

	if !strings.Contains(tomlStr, "cloud.example.com") {
		t.Error("DumpConfig() output should contain the server URL")
	}
}
