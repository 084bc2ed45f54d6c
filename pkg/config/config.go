// Package config loads configuration for the extension registry service.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/miekg/dns"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"extblock/pkg/registry"
)

const (
	defaultConfigPath = "/etc/extblock/extblock.conf"
	configEnvVar      = "EXTBLOCK_CONFIG"
	envPrefix         = "EXTBLOCK"
)

// DefaultAllowedOrigins are the front-end origins allowed to call the API.
var DefaultAllowedOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
	"https://flow-file-extension-blocker.vercel.app",
}

// Config contains all runtime options.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Registry RegistryConfig `mapstructure:"registry"`
	I18n     I18nConfig     `mapstructure:"i18n"`
	DNSBL    DNSBLConfig    `mapstructure:"dnsbl"`

	// Language is I18n.DefaultLanguage resolved by validation.
	Language language.Tag `mapstructure:"-"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RegistryConfig holds extension registry behaviour switches.
type RegistryConfig struct {
	StrictToggle bool `mapstructure:"strict_toggle"`
}

// I18nConfig holds message language settings.
type I18nConfig struct {
	DefaultLanguage string `mapstructure:"default_language"`
}

// DNSBLConfig holds the DNS blocklist responder settings.
type DNSBLConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Listen   string `mapstructure:"listen"`
	Zone     string `mapstructure:"zone"`
	QueryLog string `mapstructure:"query_log"`
}

// ValidateLogLevel ensures the user-provided log level matches the supported set.
func ValidateLogLevel(level string) error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(level)] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", level)
	}
	return nil
}

// ValidateAddress confirms that an address string has a valid host IP and port.
func ValidateAddress(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format %s: %w", addr, err)
	}
	if port == "" {
		return errors.New("invalid port")
	}
	if ip := net.ParseIP(host); ip == nil {
		return fmt.Errorf("invalid IP address: %s", host)
	}
	if _, err := net.LookupPort("tcp", port); err != nil {
		return fmt.Errorf("invalid port: %s", port)
	}
	return nil
}

// ValidateZone checks that zone is a syntactically valid domain name.
func ValidateZone(zone string) error {
	if strings.TrimSpace(zone) == "" {
		return errors.New("empty zone")
	}
	if _, ok := dns.IsDomainName(zone); !ok {
		return fmt.Errorf("invalid zone: %s", zone)
	}
	return nil
}

// Setup loads the configuration file named by EXTBLOCK_CONFIG, or the
// default path when that is unset.
func Setup() (*Config, error) {
	configPath := defaultConfigPath
	required := false
	if fromEnv := strings.TrimSpace(os.Getenv(configEnvVar)); fromEnv != "" {
		configPath = fromEnv
		required = true
	}
	return Load(configPath, required)
}

// Load reads the TOML file at path, applies EXTBLOCK_* environment
// overrides and validates the result. A missing file is an error only when
// required is true; otherwise defaults apply.
func Load(path string, required bool) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err == nil || required {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:8080")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("database.path", "/var/lib/extblock/extblock.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "stdout")
	v.SetDefault("cors.allowed_origins", DefaultAllowedOrigins)
	v.SetDefault("registry.strict_toggle", false)
	v.SetDefault("i18n.default_language", "ko")
	v.SetDefault("dnsbl.enabled", false)
	v.SetDefault("dnsbl.listen", "127.0.0.1:5353")
	v.SetDefault("dnsbl.zone", "ext.blocklist.")
	v.SetDefault("dnsbl.query_log", "")
}

func validateConfig(cfg *Config) error {
	if err := ValidateLogLevel(cfg.Logging.Level); err != nil {
		return err
	}

	if cfg.Server.Listen == "" {
		return errors.New("server.listen is required")
	}
	if err := ValidateAddress(cfg.Server.Listen); err != nil {
		return fmt.Errorf("invalid server.listen: %w", err)
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		return errors.New("server.shutdown_timeout must be > 0")
	}

	if strings.TrimSpace(cfg.Database.Path) == "" {
		return errors.New("database.path is required")
	}

	origins := make([]string, 0, len(cfg.CORS.AllowedOrigins))
	for _, origin := range cfg.CORS.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	cfg.CORS.AllowedOrigins = origins

	tag, err := registry.ParseLanguage(cfg.I18n.DefaultLanguage)
	if err != nil {
		return fmt.Errorf("invalid i18n.default_language: %w", err)
	}
	cfg.Language = tag

	if cfg.DNSBL.Enabled {
		if err := ValidateAddress(cfg.DNSBL.Listen); err != nil {
			return fmt.Errorf("invalid dnsbl.listen: %w", err)
		}
		if err := ValidateZone(cfg.DNSBL.Zone); err != nil {
			return fmt.Errorf("invalid dnsbl.zone: %w", err)
		}
	}

	return nil
}
