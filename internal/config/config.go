// Package config loads service configuration: an optional YAML file as the
// base, environment variables on top. Validation runs eagerly at boot;
// a missing provider credential is a config error surfaced before the
// first request, never a user-facing failure.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfig marks configuration validation failures.
var ErrConfig = errors.New("config: invalid configuration")

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// PublicBaseURL is this service's externally reachable origin,
		// used to build magic links.
		PublicBaseURL string `yaml:"public_base_url"`
		// AppCallbackURL is the marketplace's callback surface every
		// terminal outcome redirects to.
		AppCallbackURL string `yaml:"app_callback_url"`
		// HomeURL is where a bridged session lands after redemption.
		HomeURL       string `yaml:"home_url"`
		SecureCookies bool   `yaml:"secure_cookies"`
	} `yaml:"server"`

	Directory struct {
		DSN string `yaml:"dsn"`
		// Migrate applies the embedded schema at boot.
		Migrate bool `yaml:"migrate"`
	} `yaml:"directory"`

	Cache struct {
		// redis | memory
		Driver   string `yaml:"driver"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"cache"`

	Session struct {
		Issuer     string        `yaml:"issuer"`
		Secret     string        `yaml:"secret"`
		AccessTTL  time.Duration `yaml:"access_ttl"`
		RefreshTTL time.Duration `yaml:"refresh_ttl"`
	} `yaml:"session"`

	State struct {
		Secret string        `yaml:"secret"`
		TTL    time.Duration `yaml:"ttl"`
	} `yaml:"state"`

	Bridge struct {
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"bridge"`

	Rate struct {
		Enabled bool          `yaml:"enabled"`
		Max     int           `yaml:"max"`
		Window  time.Duration `yaml:"window"`
	} `yaml:"rate"`

	Providers struct {
		Google struct {
			ClientID     string `yaml:"client_id"`
			ClientSecret string `yaml:"client_secret"`
			RedirectURL  string `yaml:"redirect_url"`
		} `yaml:"google"`
		Line struct {
			ChannelID     string `yaml:"channel_id"`
			ChannelSecret string `yaml:"channel_secret"`
			RedirectURL   string `yaml:"redirect_url"`
		} `yaml:"line"`
	} `yaml:"providers"`
}

// Load reads the optional YAML file at path, applies env overrides, fills
// defaults, and validates. path may be empty.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	setStr(&c.App.Env, "APP_ENV")
	setStr(&c.App.LogLevel, "LOG_LEVEL")

	setStr(&c.Server.Addr, "HTTP_ADDR")
	setStr(&c.Server.PublicBaseURL, "PUBLIC_BASE_URL")
	setStr(&c.Server.AppCallbackURL, "APP_CALLBACK_URL")
	setStr(&c.Server.HomeURL, "HOME_URL")
	setBool(&c.Server.SecureCookies, "SECURE_COOKIES")

	setStr(&c.Directory.DSN, "DIRECTORY_DSN")
	setBool(&c.Directory.Migrate, "DIRECTORY_MIGRATE")

	setStr(&c.Cache.Driver, "CACHE_DRIVER")
	setStr(&c.Cache.Addr, "REDIS_ADDR")
	setStr(&c.Cache.Password, "REDIS_PASSWORD")
	setInt(&c.Cache.DB, "REDIS_DB")
	setStr(&c.Cache.Prefix, "CACHE_PREFIX")

	setStr(&c.Session.Issuer, "SESSION_ISSUER")
	setStr(&c.Session.Secret, "SESSION_SECRET")
	setDur(&c.Session.AccessTTL, "SESSION_ACCESS_TTL")
	setDur(&c.Session.RefreshTTL, "SESSION_REFRESH_TTL")

	setStr(&c.State.Secret, "STATE_SECRET")
	setDur(&c.State.TTL, "STATE_TTL")

	setDur(&c.Bridge.TTL, "BRIDGE_TTL")

	setBool(&c.Rate.Enabled, "RATE_ENABLED")
	setInt(&c.Rate.Max, "RATE_MAX")
	setDur(&c.Rate.Window, "RATE_WINDOW")

	setStr(&c.Providers.Google.ClientID, "GOOGLE_CLIENT_ID")
	setStr(&c.Providers.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setStr(&c.Providers.Google.RedirectURL, "GOOGLE_REDIRECT_URL")

	setStr(&c.Providers.Line.ChannelID, "LINE_CHANNEL_ID")
	setStr(&c.Providers.Line.ChannelSecret, "LINE_CHANNEL_SECRET")
	setStr(&c.Providers.Line.RedirectURL, "LINE_REDIRECT_URL")
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.HomeURL == "" {
		c.Server.HomeURL = "/"
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "teedin"
	}
	if c.Session.Issuer == "" {
		c.Session.Issuer = "teedin-identity"
	}
	if c.State.TTL <= 0 {
		c.State.TTL = 10 * time.Minute
	}
	if c.Bridge.TTL <= 0 {
		c.Bridge.TTL = 5 * time.Minute
	}
	if c.Rate.Max <= 0 {
		c.Rate.Max = 30
	}
	if c.Rate.Window <= 0 {
		c.Rate.Window = time.Minute
	}
	// the state signer may share the session secret when not set apart
	if c.State.Secret == "" {
		c.State.Secret = c.Session.Secret
	}
}

// GoogleConfigured reports whether Google credentials are fully present.
func (c *Config) GoogleConfigured() bool {
	g := c.Providers.Google
	return g.ClientID != "" && g.ClientSecret != "" && g.RedirectURL != ""
}

// LineConfigured reports whether LINE credentials are fully present.
func (c *Config) LineConfigured() bool {
	l := c.Providers.Line
	return l.ChannelID != "" && l.ChannelSecret != "" && l.RedirectURL != ""
}

// Validate fails fast on anything the service cannot run without. Partial
// provider credentials are an error; a fully absent provider is not, it
// is just not offered.
func (c *Config) Validate() error {
	var missing []string

	if c.Session.Secret == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	if c.Server.PublicBaseURL == "" {
		missing = append(missing, "PUBLIC_BASE_URL")
	}
	if c.Server.AppCallbackURL == "" {
		missing = append(missing, "APP_CALLBACK_URL")
	}
	if c.Directory.DSN == "" {
		missing = append(missing, "DIRECTORY_DSN")
	}
	if c.Cache.Driver == "redis" && c.Cache.Addr == "" {
		missing = append(missing, "REDIS_ADDR")
	}

	if partial(c.Providers.Google.ClientID, c.Providers.Google.ClientSecret, c.Providers.Google.RedirectURL) {
		missing = append(missing, "GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET/GOOGLE_REDIRECT_URL (partial)")
	}
	if partial(c.Providers.Line.ChannelID, c.Providers.Line.ChannelSecret, c.Providers.Line.RedirectURL) {
		missing = append(missing, "LINE_CHANNEL_ID/LINE_CHANNEL_SECRET/LINE_REDIRECT_URL (partial)")
	}
	if !c.GoogleConfigured() && !c.LineConfigured() {
		missing = append(missing, "at least one provider (google or line)")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrConfig, strings.Join(missing, ", "))
	}
	return nil
}

// partial: some but not all of a credential set.
func partial(vals ...string) bool {
	set := 0
	for _, v := range vals {
		if v != "" {
			set++
		}
	}
	return set > 0 && set < len(vals)
}

func setStr(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}

func setDur(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			*dst = d
		}
	}
}
