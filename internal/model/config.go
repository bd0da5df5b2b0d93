package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ProviderDescriptor is the static configuration of one mail backend.
type ProviderDescriptor struct {
	// ID is the registry key (e.g., "mailtm", "guerrilla").
	ID string `mapstructure:"id" yaml:"id"`

	// Name is the human-readable label.
	Name string `mapstructure:"name" yaml:"name"`

	// BaseURL is the root of the provider API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// AuthScheme selects bearer-token or session-token handling.
	AuthScheme AuthScheme `mapstructure:"auth_scheme" yaml:"auth_scheme"`

	// Endpoint paths, relative to BaseURL. Session providers use a single
	// action endpoint and only read MessagesEndpoint.
	DomainsEndpoint  string `mapstructure:"domains_endpoint" yaml:"domains_endpoint"`
	AccountsEndpoint string `mapstructure:"accounts_endpoint" yaml:"accounts_endpoint"`
	TokenEndpoint    string `mapstructure:"token_endpoint" yaml:"token_endpoint"`
	MessagesEndpoint string `mapstructure:"messages_endpoint" yaml:"messages_endpoint"`
	DeleteEndpoint   string `mapstructure:"delete_endpoint" yaml:"delete_endpoint"`

	// Proxies overrides the global relay list for this provider. An
	// explicit empty list with Direct set calls the provider directly.
	Proxies []string `mapstructure:"proxies" yaml:"proxies"`
	Direct  bool     `mapstructure:"direct" yaml:"direct"`

	// FallbackDomains is used when the domains endpoint is unavailable.
	FallbackDomains []string `mapstructure:"fallback_domains" yaml:"fallback_domains"`

	// ImageProxyPath and ImageProxyParam describe the provider's image
	// redirect ("res.php?q=<encoded url>"), rewritten back on detail fetch.
	ImageProxyPath  string `mapstructure:"image_proxy_path" yaml:"image_proxy_path"`
	ImageProxyParam string `mapstructure:"image_proxy_param" yaml:"image_proxy_param"`
}

// PollConfig controls the inbox synchronizer and transport timeouts.
type PollConfig struct {
	IntervalSec       int `mapstructure:"interval_sec" yaml:"interval_sec"`
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
}

// Interval returns the poll interval as a duration.
func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSec) * time.Second
}

// RequestTimeout returns the per-attempt transport timeout.
func (p PollConfig) RequestTimeout() time.Duration {
	return time.Duration(p.RequestTimeoutSec) * time.Second
}

// ProvisioningConfig controls the random-mailbox retry policy.
type ProvisioningConfig struct {
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	BackoffMs   int `mapstructure:"backoff_ms" yaml:"backoff_ms"`
}

// LimitsConfig caps how many mailboxes a user may hold and create.
type LimitsConfig struct {
	MaxActiveAccounts int `mapstructure:"max_active_accounts" yaml:"max_active_accounts"`
	DailyCreations    int `mapstructure:"daily_creations" yaml:"daily_creations"`
}

// StorageConfig locates the local cache database and credential keyring.
type StorageConfig struct {
	DBPath     string `mapstructure:"db_path" yaml:"db_path"`
	KeyringDir string `mapstructure:"keyring_dir" yaml:"keyring_dir"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
	File        string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Providers    []ProviderDescriptor `mapstructure:"providers" yaml:"providers"`
	Proxies      []string             `mapstructure:"proxies" yaml:"proxies"`
	Poll         PollConfig           `mapstructure:"poll" yaml:"poll"`
	Provisioning ProvisioningConfig   `mapstructure:"provisioning" yaml:"provisioning"`
	Limits       LimitsConfig         `mapstructure:"limits" yaml:"limits"`
	Storage      StorageConfig        `mapstructure:"storage" yaml:"storage"`
	Log          LogConfig            `mapstructure:"log" yaml:"log"`
}

// DefaultConfigDir returns ~/.config/tempmail, falling back to the working
// directory when the home directory cannot be resolved.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "tempmail")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/tempmail/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultProviders returns the built-in provider registry, in failover order.
func DefaultProviders() []ProviderDescriptor {
	return []ProviderDescriptor{
		{
			ID:               "mailtm",
			Name:             "mail.tm",
			BaseURL:          "https://api.mail.tm",
			AuthScheme:       AuthBearerToken,
			DomainsEndpoint:  "/domains",
			AccountsEndpoint: "/accounts",
			TokenEndpoint:    "/token",
			MessagesEndpoint: "/messages",
			DeleteEndpoint:   "/messages",
			Direct:           true,
			FallbackDomains:  []string{"karenkey.com", "mymail.com"},
		},
		{
			ID:               "guerrilla",
			Name:             "Guerrilla Mail",
			BaseURL:          "https://api.guerrillamail.com",
			AuthScheme:       AuthSessionToken,
			MessagesEndpoint: "/ajax.php",
			FallbackDomains: []string{
				"guerrillamailblock.com",
				"sharklasers.com",
				"grr.la",
			},
			ImageProxyPath:  "res.php",
			ImageProxyParam: "q",
		},
	}
}

// DefaultProxies returns the public CORS relays tried in order.
func DefaultProxies() []string {
	return []string{
		"https://corsproxy.io/?",
		"https://api.allorigins.win/raw?url=",
	}
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := DefaultConfigDir()
	return &AppConfig{
		Providers: DefaultProviders(),
		Proxies:   DefaultProxies(),
		Poll: PollConfig{
			IntervalSec:       7,
			RequestTimeoutSec: 5,
		},
		Provisioning: ProvisioningConfig{
			MaxAttempts: 3,
			BackoffMs:   1500,
		},
		Limits: LimitsConfig{
			MaxActiveAccounts: 3,
			DailyCreations:    5,
		},
		Storage: StorageConfig{
			DBPath:     filepath.Join(dir, "cache.db"),
			KeyringDir: filepath.Join(dir, "sessions"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *AppConfig {
	return defaultAppConfig()
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TEMPMAIL")
	v.AutomaticEnv()

	def := defaultAppConfig()
	v.SetDefault("poll.interval_sec", def.Poll.IntervalSec)
	v.SetDefault("poll.request_timeout_sec", def.Poll.RequestTimeoutSec)
	v.SetDefault("provisioning.max_attempts", def.Provisioning.MaxAttempts)
	v.SetDefault("provisioning.backoff_ms", def.Provisioning.BackoffMs)
	v.SetDefault("limits.max_active_accounts", def.Limits.MaxActiveAccounts)
	v.SetDefault("limits.daily_creations", def.Limits.DailyCreations)
	v.SetDefault("storage.db_path", def.Storage.DBPath)
	v.SetDefault("storage.keyring_dir", def.Storage.KeyringDir)
	v.SetDefault("log.level", def.Log.Level)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return def, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return def, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders()
	}
	// An explicit empty proxies list is honored; only a missing key
	// falls back to the built-in relays.
	if !v.IsSet("proxies") {
		cfg.Proxies = DefaultProxies()
	}
	if cfg.Poll.IntervalSec <= 0 {
		cfg.Poll.IntervalSec = def.Poll.IntervalSec
	}
	if cfg.Poll.RequestTimeoutSec <= 0 {
		cfg.Poll.RequestTimeoutSec = def.Poll.RequestTimeoutSec
	}
	if cfg.Provisioning.MaxAttempts <= 0 {
		cfg.Provisioning.MaxAttempts = def.Provisioning.MaxAttempts
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("providers", cfg.Providers)
	v.Set("proxies", cfg.Proxies)
	v.Set("poll", cfg.Poll)
	v.Set("provisioning", cfg.Provisioning)
	v.Set("limits", cfg.Limits)
	v.Set("storage", cfg.Storage)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
