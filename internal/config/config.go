package config

import (
	"bytes"
	"fmt"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ksyq12/certglue/internal/errors"
	"github.com/ksyq12/certglue/internal/platform"
)

// Retry policies for failed renewal attempts.
const (
	RetryFixed       = "fixed"
	RetryExponential = "exponential"
)

// DefaultCertName is the certbot --cert-name used when none is configured.
const DefaultCertName = "certglue"

// DefaultPIDFile is where haproxy is told to write its daemon PID.
const DefaultPIDFile = "/var/run/haproxy.pid"

// Config represents the application configuration
type Config struct {
	Identity `yaml:",inline"`

	CertName       string `yaml:"cert_name" toml:"cert_name" env:"CERTGLUE_CERT_NAME"`
	LetsEncryptDir string `yaml:"letsencrypt_dir" toml:"letsencrypt_dir" env:"CERTGLUE_LETSENCRYPT_DIR"`

	ChallengePort    int `yaml:"challenge_port" toml:"challenge_port" env:"CERTGLUE_CHALLENGE_PORT"`
	AltChallengePort int `yaml:"alt_challenge_port" toml:"alt_challenge_port" env:"CERTGLUE_ALT_CHALLENGE_PORT"`

	RenewInterval     Duration `yaml:"renew_interval" toml:"renew_interval" env:"CERTGLUE_RENEW_INTERVAL"`
	RetryDelay        Duration `yaml:"retry_delay" toml:"retry_delay" env:"CERTGLUE_RETRY_DELAY"`
	RetryPolicy       string   `yaml:"retry_policy" toml:"retry_policy" env:"CERTGLUE_RETRY_POLICY"`
	RetryMaxDelay     Duration `yaml:"retry_max_delay" toml:"retry_max_delay" env:"CERTGLUE_RETRY_MAX_DELAY"`
	RenewTimeout      Duration `yaml:"renew_timeout" toml:"renew_timeout" env:"CERTGLUE_RENEW_TIMEOUT"`
	RelaunchOnFailure bool     `yaml:"relaunch_on_failure" toml:"relaunch_on_failure" env:"CERTGLUE_RELAUNCH_ON_FAILURE"`

	MetricsAddr string `yaml:"metrics_addr" toml:"metrics_addr" env:"CERTGLUE_METRICS_ADDR"`
	LogLevel    string `yaml:"log_level" toml:"log_level" env:"CERTGLUE_LOG_LEVEL"`
	LogFormat   string `yaml:"log_format" toml:"log_format" env:"CERTGLUE_LOG_FORMAT"`

	Proxy ProxyConfig `yaml:"proxy" toml:"proxy"`
}

// ProxyConfig describes the supervised proxy process.
type ProxyConfig struct {
	Driver           string   `yaml:"driver" toml:"driver" env:"CERTGLUE_PROXY_DRIVER"`
	Binary           string   `yaml:"binary" toml:"binary" env:"CERTGLUE_PROXY_BINARY"`
	ConfigPath       string   `yaml:"config_path" toml:"config_path" env:"CERTGLUE_PROXY_CONFIG"`
	PIDFile          string   `yaml:"pid_file" toml:"pid_file" env:"CERTGLUE_PROXY_PID_FILE"`
	LaunchCheckDelay Duration `yaml:"launch_check_delay" toml:"launch_check_delay" env:"CERTGLUE_LAUNCH_CHECK_DELAY"`
}

// New creates a new Config with default values for the current platform
func New() *Config {
	return NewWithPaths(platform.DetectPaths())
}

// NewWithPaths creates a new Config with defaults rooted at the given paths
func NewWithPaths(paths *platform.PlatformPaths) *Config {
	return &Config{
		CertName:         DefaultCertName,
		LetsEncryptDir:   paths.LetsEncryptDir,
		ChallengePort:    80,
		AltChallengePort: 8080,
		RenewInterval:    Duration(24 * time.Hour),
		RetryDelay:       Duration(60 * time.Second),
		RetryPolicy:      RetryFixed,
		RetryMaxDelay:    Duration(time.Hour),
		LogLevel:         "info",
		LogFormat:        "console",
		Proxy: ProxyConfig{
			Driver:           "haproxy",
			Binary:           "haproxy",
			ConfigPath:       paths.HAProxyConfig,
			PIDFile:          DefaultPIDFile,
			LaunchCheckDelay: Duration(2 * time.Second),
		},
	}
}

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// File is an optional YAML or TOML config file.
	File string

	// DotEnv is the .env file to merge into the process environment.
	// Defaults to ".env"; ignored when Environment is set.
	DotEnv string

	// Environment replaces the process environment (for testing).
	Environment map[string]string

	// Paths overrides platform detection.
	Paths *platform.PlatformPaths
}

// Load builds the configuration from defaults, .env, the config file and the environment.
// It does not validate; call Validate before using the result to run the loop.
func Load(opts LoadOptions) (*Config, error) {
	paths := opts.Paths
	if paths == nil {
		paths = platform.DetectPaths()
	}
	cfg := NewWithPaths(paths)

	if opts.Environment == nil {
		if err := loadDotEnv(opts.DotEnv); err != nil {
			return nil, err
		}
	}

	if opts.File != "" {
		if err := cfg.loadFile(opts.File); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{
		Environment: opts.Environment,
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(DomainList(nil)): func(v string) (interface{}, error) {
				return ParseDomainList(v), nil
			},
			reflect.TypeOf(Toggle(false)): func(v string) (interface{}, error) {
				return ParseToggle(v), nil
			},
		},
	}); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfig, "failed to parse environment", err)
	}

	return cfg, nil
}

// loadDotEnv merges a .env file into the process environment if it exists.
func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.WrapSubject(errors.ErrCodeConfig, path, "failed to load .env", err)
	}
	return nil
}

// loadFile decodes a config file over the current values. Unknown keys are rejected.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapSubject(errors.ErrCodeConfig, path, "failed to read config", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		dec.EnableUnmarshalerInterface()
		err = dec.Decode(c)
	case ".yaml", ".yml", "":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(c)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	default:
		return errors.WrapSubject(errors.ErrCodeConfig, path, "unsupported config format (use .yaml, .yml or .toml)", nil)
	}
	if err != nil {
		return errors.WrapSubject(errors.ErrCodeConfig, path, "failed to parse config", err)
	}
	return nil
}

// Validate checks that the configuration can drive the renewal loop
func (c *Config) Validate() error {
	if len(c.Domains) == 0 {
		return errors.Configuration("DOMAINS is required")
	}
	for _, d := range c.Domains {
		if err := validateDomain(d); err != nil {
			return err
		}
	}

	if c.Email == "" {
		return errors.Configuration("EMAIL is required")
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return errors.Configuration(fmt.Sprintf("EMAIL %q is not a valid address", c.Email))
	}

	if c.CertName == "" || strings.ContainsAny(c.CertName, `/\`) {
		return errors.Configuration(fmt.Sprintf("cert_name %q is invalid", c.CertName))
	}
	if c.LetsEncryptDir == "" {
		return errors.Configuration("letsencrypt_dir is required")
	}

	if err := validatePort("challenge_port", c.ChallengePort); err != nil {
		return err
	}
	if err := validatePort("alt_challenge_port", c.AltChallengePort); err != nil {
		return err
	}
	if c.ChallengePort == c.AltChallengePort {
		return errors.Configuration("challenge_port and alt_challenge_port must differ")
	}

	if c.RenewInterval <= 0 {
		return errors.Configuration("renew_interval must be positive")
	}
	if c.RetryDelay <= 0 {
		return errors.Configuration("retry_delay must be positive")
	}
	switch c.RetryPolicy {
	case RetryFixed:
	case RetryExponential:
		if c.RetryMaxDelay < c.RetryDelay {
			return errors.Configuration("retry_max_delay must not be less than retry_delay")
		}
	default:
		return errors.Configuration(fmt.Sprintf("retry_policy %q is invalid (valid: fixed, exponential)", c.RetryPolicy))
	}

	if c.Proxy.Driver == "" {
		return errors.Configuration("proxy.driver is required")
	}
	if c.Proxy.Binary == "" {
		return errors.Configuration("proxy.binary is required")
	}
	if c.Proxy.ConfigPath == "" {
		return errors.Configuration("proxy.config_path is required")
	}

	return nil
}

// CertDir returns the certbot live directory for the configured certificate
func (c *Config) CertDir() string {
	return filepath.Join(c.LetsEncryptDir, "live", c.CertName)
}

// Dump renders the effective configuration as YAML for debug logging.
func (c *Config) Dump() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("<unprintable config: %v>", err)
	}
	return string(b)
}

// validateDomain checks if domain is valid
func validateDomain(domain string) error {
	if strings.ContainsAny(domain, " \t/") {
		return errors.Configuration(fmt.Sprintf("domain %q contains invalid characters", domain))
	}
	label := strings.TrimPrefix(domain, "*.")
	if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
		return errors.Configuration(fmt.Sprintf("domain %q cannot start or end with hyphen", domain))
	}
	if strings.HasPrefix(label, ".") || strings.HasSuffix(label, ".") || strings.Contains(label, "..") {
		return errors.Configuration(fmt.Sprintf("domain %q has an empty label", domain))
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return errors.Configuration(fmt.Sprintf("%s %d is out of range", name, port))
	}
	return nil
}
