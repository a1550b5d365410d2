// Package config loads the service settings from defaults, an optional YAML
// file, the environment and command-line overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Log output formats.
const (
	FormatAuto    = "auto"
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config holds every service setting. Keys are named after their YAML form.
type Config struct {
	HTTPAddr       string   `yaml:"http_addr"`
	HTTPSAddr      string   `yaml:"https_addr"`
	TLSCert        string   `yaml:"tls_cert"`
	TLSKey         string   `yaml:"tls_key"`
	Timeout        Duration `yaml:"timeout"`
	MaxRedirects   int      `yaml:"max_redirects"`
	AllowedDomains []string `yaml:"allowed_domains"`
	LogLevel       string   `yaml:"log_level"`
	LogFormat      string   `yaml:"log_format"`
	LogURLs        bool     `yaml:"log_urls"`
}

// envKeys maps environment variables onto configuration keys.
var envKeys = []struct{ env, key string }{
	{"HTTP_ADDR", "http_addr"},
	{"HTTPS_ADDR", "https_addr"},
	{"TLS_CERT", "tls_cert"},
	{"TLS_KEY", "tls_key"},
	{"HTTP_TIMEOUT", "timeout"},
	{"MAX_REDIRECTS", "max_redirects"},
	{"ALLOWED_DOMAINS", "allowed_domains"},
	{"LOG_LEVEL", "log_level"},
	{"LOG_FORMAT", "log_format"},
	{"LOG_URLS", "log_urls"},
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		HTTPAddr:     ":38724",
		HTTPSAddr:    ":38725",
		TLSCert:      "ssl/cert.pem",
		TLSKey:       "ssl/privkey.pem",
		MaxRedirects: 10,
		LogLevel:     "info",
		LogFormat:    FormatAuto,
	}
}

// Load returns the defaults overlaid with the YAML file at path, if any, and
// then with the environment. The result is not validated; callers apply
// their own overrides first and then call Validate.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("syntax error in config file '%s': %w", path, err)
		}
	}

	for _, e := range envKeys {
		value, ok := os.LookupEnv(e.env)
		if !ok {
			continue
		}
		if err := cfg.Set(e.key, value); err != nil {
			return cfg, fmt.Errorf("%s: %w", e.env, err)
		}
	}
	return cfg, nil
}

// Set assigns one key from its string form, as found in the environment or
// on the command line.
func (c *Config) Set(key, value string) error {
	switch key {
	case "http_addr":
		c.HTTPAddr = value
	case "https_addr":
		c.HTTPSAddr = value
	case "tls_cert":
		c.TLSCert = value
	case "tls_key":
		c.TLSKey = value
	case "timeout":
		d, err := ParseDuration(value)
		if err != nil {
			return err
		}
		c.Timeout = Duration(d)
	case "max_redirects":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: max_redirects %q is not a number", ErrInvalid, value)
		}
		c.MaxRedirects = n
	case "allowed_domains":
		c.AllowedDomains = splitList(value)
	case "log_level":
		c.LogLevel = value
	case "log_format":
		c.LogFormat = value
	case "log_urls":
		c.LogURLs = value == "true"
	default:
		return fmt.Errorf("%w: unknown key %q", ErrInvalid, key)
	}
	return nil
}

// Validate reports the first invalid setting, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("%w: http_addr is empty", ErrInvalid)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout %s is negative", ErrInvalid, c.Timeout)
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("%w: max_redirects %d is negative", ErrInvalid, c.MaxRedirects)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case FormatAuto, FormatConsole, FormatJSON:
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalid, c.LogFormat)
	}
	return nil
}

// Level is the parsed log_level.
func (c *Config) Level() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.NoLevel, fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	return lvl, nil
}

// TLSEnabled reports whether both halves of the certificate pair exist on disk.
func (c *Config) TLSEnabled() bool {
	if c.HTTPSAddr == "" || c.TLSCert == "" || c.TLSKey == "" {
		return false
	}
	return fileExists(c.TLSCert) && fileExists(c.TLSKey)
}

// Duration accepts either a Go duration ("1m30s") or a plain number of
// seconds, the form HTTP_TIMEOUT has always taken.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML decodes a scalar with ParseDuration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// ParseDuration reads plain seconds or a Go duration. Empty means zero.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad duration %q", ErrInvalid, s)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
