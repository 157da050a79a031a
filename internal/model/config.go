package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// RemoteConfig holds settings for the remote file store that mirrors the
// database image. The personal access token is NOT configured here; it comes
// from the system keyring (or the IDEADASH_TOKEN environment variable), and
// its absence silently disables the mirror.
type RemoteConfig struct {
	// Owner and Repo identify the remote repository.
	Owner string `mapstructure:"owner" yaml:"owner"`
	Repo  string `mapstructure:"repo" yaml:"repo"`

	// Branch gates which line of history the image file lives on.
	Branch string `mapstructure:"branch" yaml:"branch"`

	// Path is the fixed file path of the database image inside the repo.
	Path string `mapstructure:"path" yaml:"path"`

	// BaseURL is the root of the contents-API endpoint.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// DebounceSeconds is the quiet period before a push fires.
	DebounceSeconds int `mapstructure:"debounce_seconds" yaml:"debounce_seconds"`

	// Disabled turns the mirror off even when a token is present.
	Disabled bool `mapstructure:"disabled" yaml:"disabled"`
}

// BackupConfig holds snapshot retention settings.
type BackupConfig struct {
	Keep int `mapstructure:"keep" yaml:"keep"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	// DataDir is where the working database, local image, backups, and logs
	// live. Defaults to ~/.local/share/ideadash.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	Remote RemoteConfig `mapstructure:"remote" yaml:"remote"`
	Backup BackupConfig `mapstructure:"backup" yaml:"backup"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/ideadash/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "ideadash", "config.yaml")
}

// defaultDataDir returns ~/.local/share/ideadash, or ./ideadash-data when
// the home directory cannot be resolved.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "ideadash-data")
	}
	return filepath.Join(home, ".local", "share", "ideadash")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		DataDir: defaultDataDir(),
		Remote: RemoteConfig{
			Branch:          "master",
			Path:            "data/database.sqlite",
			BaseURL:         "https://api.github.com",
			DebounceSeconds: 3,
		},
		Backup: BackupConfig{Keep: BackupKeep},
		Log:    LogConfig{Level: "info"},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("remote.branch", "master")
	v.SetDefault("remote.path", "data/database.sqlite")
	v.SetDefault("remote.base_url", "https://api.github.com")
	v.SetDefault("remote.debounce_seconds", 3)
	v.SetDefault("backup.keep", BackupKeep)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Backup.Keep <= 0 {
		cfg.Backup.Keep = BackupKeep
	}
	if cfg.Remote.DebounceSeconds <= 0 {
		cfg.Remote.DebounceSeconds = 3
	}

	return cfg, nil
}

// Configured reports whether the remote mirror has enough settings to be
// worth attempting at all. The token check happens separately.
func (r RemoteConfig) Configured() bool {
	return !r.Disabled && r.Owner != "" && r.Repo != "" && r.Path != ""
}
