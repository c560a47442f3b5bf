// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	GitHub  GitHubConfig  `mapstructure:"github"`
	Site    SiteConfig    `mapstructure:"site"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Capture CaptureConfig `mapstructure:"capture"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Server  ServerConfig  `mapstructure:"server"`
	Mirror  MirrorConfig  `mapstructure:"mirror"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// GitHubConfig governs discovery against the GitHub GraphQL API.
type GitHubConfig struct {
	Token string `mapstructure:"token"`
	// Organization is the login whose members are scanned.
	Organization string `mapstructure:"organization"`
	// OrgAccount is the login of the organization's own machine
	// account, whose repositories live under the organization name.
	OrgAccount string `mapstructure:"org_account"`
	// OverrideExpression is the fixed blob expression selecting the
	// declarative override file in each repository.
	OverrideExpression string `mapstructure:"override_expression"`
	PageWorkers        int    `mapstructure:"page_workers"`
}

// SiteConfig describes the published site.
type SiteConfig struct {
	RootDomain       string `mapstructure:"root_domain"`
	PlatformMarker   string `mapstructure:"platform_marker"`
	AnalyticsSnippet string `mapstructure:"analytics_snippet"`
	BannerLogoURL    string `mapstructure:"banner_logo_url"`
}

// CacheConfig controls the screenshot cache.
type CacheConfig struct {
	Dir             string `mapstructure:"dir"`
	FreshnessHours  int    `mapstructure:"freshness_hours"`
	SentinelHash    string `mapstructure:"sentinel_hash"`
	Workers         int    `mapstructure:"workers"`
	DownloadTimeout int    `mapstructure:"download_timeout_seconds"`
}

// CaptureConfig controls the headless capture subsystem.
type CaptureConfig struct {
	MaxParallel   int `mapstructure:"max_parallel"`
	NavTimeoutSec int `mapstructure:"nav_timeout_seconds"`
	SettleDelayMs int `mapstructure:"settle_delay_ms"`
	MaxAttempts   int `mapstructure:"max_attempts"`
}

// ProxyConfig sets the generated reverse-proxy layout.
type ProxyConfig struct {
	LiveDir string `mapstructure:"live_dir"`
	WebRoot string `mapstructure:"web_root"`
}

// FeedConfig locates the published feed document.
type FeedConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig controls the preview server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// MirrorConfig selects the optional artifact mirror.
type MirrorConfig struct {
	Provider string `mapstructure:"provider"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// NotifyConfig selects the optional run-completion publisher.
type NotifyConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CONCEPTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("github.override_expression", "HEAD:.concept")
	v.SetDefault("github.page_workers", 4)
	v.SetDefault("site.root_domain", "concepts.local")
	v.SetDefault("site.platform_marker", "heroku")
	v.SetDefault("cache.dir", "data/images")
	v.SetDefault("cache.freshness_hours", 48)
	v.SetDefault("cache.workers", 2)
	v.SetDefault("cache.download_timeout_seconds", 30)
	v.SetDefault("capture.max_parallel", 2)
	v.SetDefault("capture.nav_timeout_seconds", 45)
	v.SetDefault("capture.settle_delay_ms", 1000)
	v.SetDefault("capture.max_attempts", 10)
	v.SetDefault("proxy.live_dir", "data/nginx")
	v.SetDefault("proxy.web_root", "/var/www/concepts")
	v.SetDefault("feed.path", "data/concepts.json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("mirror.provider", "noop")
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.GitHub.Organization == "" {
		return fmt.Errorf("github.organization must be set")
	}
	if c.GitHub.PageWorkers <= 0 {
		return fmt.Errorf("github.page_workers must be > 0")
	}
	if c.Site.RootDomain == "" {
		return fmt.Errorf("site.root_domain must be set")
	}
	if c.Cache.FreshnessHours <= 0 {
		return fmt.Errorf("cache.freshness_hours must be > 0")
	}
	if c.Cache.Workers <= 0 {
		return fmt.Errorf("cache.workers must be > 0")
	}
	if c.Capture.MaxAttempts <= 0 {
		return fmt.Errorf("capture.max_attempts must be > 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Mirror.Provider == "gcs" && c.Mirror.Bucket == "" {
		return fmt.Errorf("mirror.bucket must be set when mirror.provider is gcs")
	}
	if c.Notify.Provider == "pubsub" && (c.Notify.ProjectID == "" || c.Notify.Topic == "") {
		return fmt.Errorf("notify.project_id and notify.topic must be set when notify.provider is pubsub")
	}
	return nil
}

// FreshnessWindow converts the configured freshness hours into a duration.
func (c Config) FreshnessWindow() time.Duration {
	return time.Duration(c.Cache.FreshnessHours) * time.Hour
}

// NavTimeout converts the configured navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Capture.NavTimeoutSec) * time.Second
}

// SettleDelay converts the configured settle delay into a duration.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.Capture.SettleDelayMs) * time.Millisecond
}

// DownloadTimeout converts the configured cover-image download timeout
// into a duration.
func (c Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Cache.DownloadTimeout) * time.Second
}
