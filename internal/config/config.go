// Package config loads the gateway configuration from the process environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/KyleWhite22/GameGeniusAI/internal/core/session"
)

// ErrConfigMissing is returned when required configuration is absent or invalid
var ErrConfigMissing = errors.New("missing or invalid configuration")

// Config is parsed once at startup and passed by reference to each component
type Config struct {
	ClientURL         string        `env:"CLIENT_URL"`
	SteamReturnURL    string        `env:"STEAM_RETURN_URL"`
	SteamRealm        string        `env:"STEAM_REALM"`
	SteamAPIKey       string        `env:"STEAM_API_KEY"`
	SessionSecret     string        `env:"SESSION_SECRET"`
	StoreURL          string        `env:"STORE_URL"`
	CookieDomain      string        `env:"COOKIE_DOMAIN"`
	SessionCookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"ggsid"`
	PostLoginPath     string        `env:"POST_LOGIN_PATH"     envDefault:"/gameAI"`
	LoginPath         string        `env:"LOGIN_PATH"          envDefault:"/login"`
	Port              string        `env:"PORT"                envDefault:"5000"`
	LogLevel          string        `env:"LOG_LEVEL"           envDefault:"info"`
	SteamAPIURL       string        `env:"STEAM_API_URL"       envDefault:"https://api.steampowered.com"`
	SteamOpenIDURL    string        `env:"STEAM_OPENID_URL"    envDefault:"https://steamcommunity.com/openid"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS"     envSeparator:","`
	SessionTTL        time.Duration `env:"SESSION_TTL"         envDefault:"168h"`
	ProviderTimeout   time.Duration `env:"PROVIDER_TIMEOUT"    envDefault:"10s"`
	StoreTimeout      time.Duration `env:"STORE_TIMEOUT"       envDefault:"5s"`
	DeployedMode      bool          `env:"DEPLOYED_MODE"       envDefault:"false"`
}

// Load parses the environment and validates the result
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigMissing, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every offending variable at once
func (c *Config) Validate() error {
	var problems []string

	required := []struct {
		name  string
		value string
	}{
		{"CLIENT_URL", c.ClientURL},
		{"STEAM_RETURN_URL", c.SteamReturnURL},
		{"STEAM_REALM", c.SteamRealm},
		{"STEAM_API_KEY", c.SteamAPIKey},
		{"SESSION_SECRET", c.SessionSecret},
		{"STORE_URL", c.StoreURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			problems = append(problems, r.name+" is required")
		}
	}

	if c.SessionSecret != "" && len(c.SessionSecret) < session.MinSecretLength {
		problems = append(problems, fmt.Sprintf("SESSION_SECRET must be at least %d bytes", session.MinSecretLength))
	}
	if c.DeployedMode && c.CookieDomain == "" {
		problems = append(problems, "COOKIE_DOMAIN is required when DEPLOYED_MODE is set")
	}

	if c.ClientURL != "" {
		if _, err := parseOrigin(c.ClientURL); err != nil {
			problems = append(problems, "CLIENT_URL "+err.Error())
		}
	}
	for _, o := range c.AllowedOrigins {
		if _, err := parseOrigin(o); err != nil {
			problems = append(problems, fmt.Sprintf("ALLOWED_ORIGINS entry %q %s", o, err.Error()))
		}
	}
	for _, u := range []struct {
		name  string
		value string
	}{
		{"STEAM_RETURN_URL", c.SteamReturnURL},
		{"STEAM_REALM", c.SteamRealm},
	} {
		if u.value == "" {
			continue
		}
		if parsed, err := url.Parse(u.value); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			problems = append(problems, u.name+" must be an absolute URL")
		}
	}

	if !strings.HasPrefix(c.PostLoginPath, "/") {
		problems = append(problems, "POST_LOGIN_PATH must start with /")
	}
	if !strings.HasPrefix(c.LoginPath, "/") {
		problems = append(problems, "LOGIN_PATH must start with /")
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, "SESSION_TTL must be positive")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigMissing, strings.Join(problems, "; "))
	}
	return nil
}

// ClientOrigin is CLIENT_URL without any trailing slash
func (c *Config) ClientOrigin() string {
	return strings.TrimRight(c.ClientURL, "/")
}

// PostLoginURL is the exact redirect target after a successful login
func (c *Config) PostLoginURL() string {
	return c.ClientOrigin() + c.PostLoginPath
}

// LoginURL is the client login page failures are sent back to
func (c *Config) LoginURL() string {
	return c.ClientOrigin() + c.LoginPath
}

// Allowlist is the client origin followed by any extra allowed origins, deduplicated
func (c *Config) Allowlist() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, o := range append([]string{c.ClientURL}, c.AllowedOrigins...) {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	return out
}

// CookiePolicy derives the session cookie attributes.
// Deployed mode shares one secure cross-site cookie across the parent domain.
func (c *Config) CookiePolicy() session.CookiePolicy {
	policy := session.CookiePolicy{
		Name:     c.SessionCookieName,
		MaxAge:   c.SessionTTL,
		SameSite: http.SameSiteLaxMode,
	}
	if c.DeployedMode {
		policy.Secure = true
		policy.SameSite = http.SameSiteNoneMode
		policy.Domain = c.CookieDomain
	}
	return policy
}

// Level returns the parsed LOG_LEVEL
func (c *Config) Level() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

// Addr is the listen address
func (c *Config) Addr() string {
	return ":" + c.Port
}

func parseOrigin(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(raw), "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.New("must be an http(s) origin")
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return nil, errors.New("must not carry a path, query or fragment")
	}
	return u, nil
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q is not a valid level", s)
	}
	return lvl, nil
}
