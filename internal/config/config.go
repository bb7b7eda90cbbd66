// Package config loads the qcrl configuration file.
//
// Values come from, in increasing priority: built-in defaults, the YAML
// file, QCRL_* environment variables and command-line flags (applied by
// the caller).
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"gopkg.in/yaml.v3"

	"github.com/remiblancher/qcrl/pkg/crl"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "QCRL_"

// Config is the root of the configuration file.
type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Cache  CacheConfig  `yaml:"cache"`
	Server ServerConfig `yaml:"server"`
	Audit  AuditConfig  `yaml:"audit"`
	Log    LogConfig    `yaml:"log"`
}

// EngineConfig selects the optional signature schemes.
type EngineConfig struct {
	// Capabilities lists "rsa-pss", "ed448", "pqc" or "all".
	Capabilities []string `yaml:"capabilities"`
}

// CacheConfig sizes the validated CRL cache.
type CacheConfig struct {
	Size int `yaml:"size"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes bounds request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// AuditConfig locates the audit log. An empty path disables auditing.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// LogConfig selects the log formatter and level.
type LogConfig struct {
	// Format is "text", "json" or "pretty".
	Format string `yaml:"format"`
	// Level is one of trace, debug, info, notice, warning, error, critical.
	Level string `yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{Size: 256},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    16 << 20,
		},
		Log: LogConfig{Format: "text", Level: "info"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config")
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// ApplyEnv overrides fields from QCRL_* variables returned by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "%s%s", EnvPrefix, name)
		}
		*dst = n
		return nil
	}

	if v, ok := lookup(EnvPrefix + "CAPABILITIES"); ok {
		c.Engine.Capabilities = strings.Split(v, ",")
	}
	if err := num("CACHE_SIZE", &c.Cache.Size); err != nil {
		return err
	}
	str("HOST", &c.Server.Host)
	if err := num("PORT", &c.Server.Port); err != nil {
		return err
	}
	str("TLS_CERT", &c.Server.TLSCert)
	str("TLS_KEY", &c.Server.TLSKey)
	str("AUDIT_LOG", &c.Audit.Path)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_LEVEL", &c.Log.Level)
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if _, err := c.Capabilities(); err != nil {
		return err
	}
	if c.Cache.Size < 0 {
		return errors.Newf("cache.size must not be negative, got %d", c.Cache.Size)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port out of range: %d", c.Server.Port)
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return errors.New("server.tls_cert and server.tls_key must be set together")
	}
	if c.Server.MaxBodyBytes < 0 {
		return errors.New("server.max_body_bytes must not be negative")
	}
	switch c.Log.Format {
	case "", "text", "json", "pretty":
	default:
		return errors.Newf("unsupported log.format: %q", c.Log.Format)
	}
	if !validLevel(c.Log.Level) {
		return errors.Newf("unsupported log.level: %q", c.Log.Level)
	}
	return nil
}

// Capabilities parses Engine.Capabilities.
func (c *Config) Capabilities() (crl.Capability, error) {
	caps, err := crl.ParseCapabilities(c.Engine.Capabilities...)
	if err != nil {
		return 0, errors.Wrap(err, "engine.capabilities")
	}
	return caps, nil
}

// Address returns the listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func validLevel(level string) bool {
	switch strings.ToLower(level) {
	case "", "trace", "debug", "info", "notice", "warning", "warn", "error", "critical":
		return true
	}
	return false
}

// SetupLogging installs the xlog formatter and global level on w.
func (c *LogConfig) SetupLogging(w io.Writer) error {
	var formatter xlog.Formatter
	switch c.Format {
	case "", "text":
		formatter = xlog.NewStringFormatter(w)
	case "json":
		formatter = xlog.NewJSONFormatter(w)
	case "pretty":
		formatter = xlog.NewPrettyFormatter(w).Options(xlog.FormatWithColor)
	default:
		return errors.Newf("unsupported log format: %q", c.Format)
	}

	switch strings.ToLower(c.Level) {
	case "trace":
		xlog.SetGlobalLogLevel(xlog.TRACE)
	case "debug":
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	case "", "info":
		xlog.SetGlobalLogLevel(xlog.INFO)
	case "notice":
		xlog.SetGlobalLogLevel(xlog.NOTICE)
	case "warning", "warn":
		xlog.SetGlobalLogLevel(xlog.WARNING)
	case "error":
		xlog.SetGlobalLogLevel(xlog.ERROR)
	case "critical":
		xlog.SetGlobalLogLevel(xlog.CRITICAL)
	default:
		return errors.Newf("unsupported log level: %q", c.Level)
	}

	xlog.SetFormatter(formatter)
	formatter.Options(xlog.FormatWithCaller)
	return nil
}
