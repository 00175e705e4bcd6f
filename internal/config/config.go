// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// PasswordEnvVar is the only supported source of the portal password besides the interactive prompt.
const PasswordEnvVar = "BANNER_PORTAL_PASSWORD"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Portal() PortalConfig
	Network() NetworkConfig
	Throttle() ThrottleConfig
	Register() RegisterConfig

	// Portal Setters
	SetPortalBaseURL(string)
	SetPortalUsername(string)
	SetPortalPassword(string)

	// Register Setters
	SetRegisterTerm(string)
	SetRegisterAt(string)
	SetRegisterFormat(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	PortalCfg   PortalConfig   `mapstructure:"portal" yaml:"portal"`
	NetworkCfg  NetworkConfig  `mapstructure:"network" yaml:"network"`
	ThrottleCfg ThrottleConfig `mapstructure:"throttle" yaml:"throttle"`
	RegisterCfg RegisterConfig `mapstructure:"register" yaml:"register"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Portal() PortalConfig     { return c.PortalCfg }
func (c *Config) Network() NetworkConfig   { return c.NetworkCfg }
func (c *Config) Throttle() ThrottleConfig { return c.ThrottleCfg }
func (c *Config) Register() RegisterConfig { return c.RegisterCfg }

// --- Interface Method Implementations (Setters) ---

// Portal Setters
func (c *Config) SetPortalBaseURL(u string)  { c.PortalCfg.BaseURL = strings.TrimRight(u, "/") }
func (c *Config) SetPortalUsername(u string) { c.PortalCfg.Username = u }
func (c *Config) SetPortalPassword(p string) { c.PortalCfg.Password = p }

// Register Setters
func (c *Config) SetRegisterTerm(t string)   { c.RegisterCfg.Term = t }
func (c *Config) SetRegisterAt(at string)    { c.RegisterCfg.At = at }
func (c *Config) SetRegisterFormat(f string) { c.RegisterCfg.Format = f }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names used for each log level on the console.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// PortalConfig describes the Banner deployment to talk to and who to log in as.
type PortalConfig struct {
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	Username string `mapstructure:"username" yaml:"username"`
	// Password is never read from or written to the config file.
	Password      string   `mapstructure:"password" yaml:"-"`
	MiddlePaths   []string `mapstructure:"middle_paths" yaml:"middle_paths"`
	SessionCookie string   `mapstructure:"session_cookie" yaml:"session_cookie"`
}

// ProxyConfig defines the configuration for an outbound proxy.
type ProxyConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" yaml:"address"`
}

// NetworkConfig tunes the HTTP client used against the portal.
type NetworkConfig struct {
	Timeout         time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	IgnoreTLSErrors bool              `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ForceHTTP2      bool              `mapstructure:"force_http2" yaml:"force_http2"`
	UserAgent       string            `mapstructure:"user_agent" yaml:"user_agent"`
	Headers         map[string]string `mapstructure:"headers" yaml:"headers"`
	Proxy           ProxyConfig       `mapstructure:"proxy" yaml:"proxy"`
}

// ThrottleConfig controls the minimum spacing between outgoing requests.
type ThrottleConfig struct {
	MinInterval time.Duration `mapstructure:"min_interval" yaml:"min_interval"`
	Burst       int           `mapstructure:"burst" yaml:"burst"`
}

// RegisterConfig holds defaults for the register command. Flags override them.
type RegisterConfig struct {
	Term   string `mapstructure:"term" yaml:"term"`
	At     string `mapstructure:"at" yaml:"at"`
	Format string `mapstructure:"format" yaml:"format"`
	Plan   string `mapstructure:"plan" yaml:"plan"`

	// StoreTerm posts the term as the session default before each submission.
	StoreTerm bool `mapstructure:"store_term" yaml:"store_term"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "banner-cli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Portal --
	v.SetDefault("portal.base_url", "")
	v.SetDefault("portal.username", "")
	v.SetDefault("portal.middle_paths", []string{"/pls/owa_prod", "/pls/prod"})
	v.SetDefault("portal.session_cookie", "SESSID")

	// -- Network --
	v.SetDefault("network.timeout", "30s")
	v.SetDefault("network.ignore_tls_errors", false)
	v.SetDefault("network.force_http2", false)
	v.SetDefault("network.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("network.proxy.enabled", false)

	// -- Throttle --
	v.SetDefault("throttle.min_interval", "500ms")
	v.SetDefault("throttle.burst", 1)

	// -- Register --
	v.SetDefault("register.format", "text")
	v.SetDefault("register.store_term", false)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The password only ever comes from the environment.
	_ = v.BindEnv("portal.password", PasswordEnvVar)

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.PortalCfg.Password == "" {
		cfg.PortalCfg.Password = os.Getenv(PasswordEnvVar)
	}
	cfg.PortalCfg.BaseURL = strings.TrimRight(cfg.PortalCfg.BaseURL, "/")

	if cfg.LoggerCfg.LogFile != "" {
		expanded, err := homedir.Expand(cfg.LoggerCfg.LogFile)
		if err != nil {
			return nil, fmt.Errorf("could not resolve log file path '%s': %w", cfg.LoggerCfg.LogFile, err)
		}
		cfg.LoggerCfg.LogFile = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values. Portal credentials are
// validated separately by ValidateForSession because not every command needs them.
func (c *Config) Validate() error {
	if err := c.NetworkCfg.Validate(); err != nil {
		return fmt.Errorf("network configuration invalid: %w", err)
	}
	if err := c.ThrottleCfg.Validate(); err != nil {
		return fmt.Errorf("throttle configuration invalid: %w", err)
	}
	if err := c.RegisterCfg.Validate(); err != nil {
		return fmt.Errorf("register configuration invalid: %w", err)
	}
	if len(c.PortalCfg.MiddlePaths) == 0 {
		return fmt.Errorf("portal.middle_paths must list at least one candidate")
	}
	if c.PortalCfg.SessionCookie == "" {
		return fmt.Errorf("portal.session_cookie must not be empty")
	}
	return nil
}

// ValidateForSession checks the fields required before a portal session can be opened.
// The password is deliberately not required here; the CLI prompts for it.
func (p *PortalConfig) ValidateForSession() error {
	if p.BaseURL == "" {
		return fmt.Errorf("portal.base_url is required")
	}
	u, err := url.Parse(p.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("portal.base_url must be an absolute http(s) URL, got %q", p.BaseURL)
	}
	if p.Username == "" {
		return fmt.Errorf("portal.username is required")
	}
	return nil
}

// Validate checks the NetworkConfig settings.
func (n *NetworkConfig) Validate() error {
	if n.Timeout <= 0 {
		return fmt.Errorf("timeout must be a positive duration")
	}
	if n.Proxy.Enabled {
		if n.Proxy.Address == "" {
			return fmt.Errorf("proxy.address is required when the proxy is enabled")
		}
		if _, err := url.Parse(n.Proxy.Address); err != nil {
			return fmt.Errorf("proxy.address is not a valid URL: %w", err)
		}
	}
	return nil
}

// Validate checks the ThrottleConfig settings. Requests are always spaced
// one at a time, so the interval must be positive and the burst exactly one.
func (t *ThrottleConfig) Validate() error {
	if t.MinInterval <= 0 {
		return fmt.Errorf("min_interval must be positive, got %s", t.MinInterval)
	}
	if t.Burst != 1 {
		return fmt.Errorf("burst must be 1, got %d", t.Burst)
	}
	return nil
}

// Validate checks the RegisterConfig settings.
func (r *RegisterConfig) Validate() error {
	switch r.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format must be 'text' or 'json', got %q", r.Format)
	}
	return nil
}
