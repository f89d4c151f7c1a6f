package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	EnvPrefix          = "MCPD"
	DefaultAddress     = "127.0.0.1:8080"
	DefaultMaxLineSize = 1 << 20
)

type RateLimit struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// Config is the server configuration. Keys map onto the config file, the
// MCPD_* environment (dots become underscores) and the CLI flags of the same
// name.
type Config struct {
	Address        string    `mapstructure:"address"`
	Announce       bool      `mapstructure:"announce"`
	MaxLineBytes   int       `mapstructure:"max_line_bytes"`
	RateLimit      RateLimit `mapstructure:"rate_limit"`
	MetricsAddress string    `mapstructure:"metrics_address"`
}

// SetDefaults installs the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("address", DefaultAddress)
	v.SetDefault("announce", true)
	v.SetDefault("max_line_bytes", DefaultMaxLineSize)
	v.SetDefault("rate_limit.rps", 0)
	v.SetDefault("rate_limit.burst", 1)
	v.SetDefault("metrics_address", "")
}

// New returns a viper instance with defaults and environment binding but no
// config file.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path into v and decodes the result. An empty
// path falls back to DefaultPath, which may be absent.
func Load(v *viper.Viper, path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			missing := errors.Is(err, os.ErrNotExist)
			var nf viper.ConfigFileNotFoundError
			if errors.As(err, &nf) {
				missing = true
			}
			if explicit || !missing {
				return Config{}, errors.Wrapf(err, "read config %s", path)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return errors.New("address must not be empty")
	}
	if c.MaxLineBytes < 0 {
		return errors.Errorf("max_line_bytes must not be negative, got %d", c.MaxLineBytes)
	}
	if c.RateLimit.RPS < 0 {
		return errors.Errorf("rate_limit.rps must not be negative, got %v", c.RateLimit.RPS)
	}
	if c.RateLimit.Burst < 0 {
		return errors.Errorf("rate_limit.burst must not be negative, got %d", c.RateLimit.Burst)
	}
	return nil
}

// Dir is ~/.config/mcpd, or "" when the home directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "mcpd")
}

func DefaultPath() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "mcpd.toml")
}

// DefaultFile is the content written by `mcpd config init`.
const DefaultFile = `# mcpd configuration
# Every key can also be set as MCPD_<KEY> in the environment
# (for example MCPD_ADDRESS or MCPD_RATE_LIMIT_RPS).

address = "127.0.0.1:8080"

# Send an unsolicited initialize notification when a peer connects.
announce = true

# Longest accepted request line in bytes (0 disables the limit).
max_line_bytes = 1048576

# Serve Prometheus metrics on this address, e.g. "127.0.0.1:9090".
metrics_address = ""

[rate_limit]
# Requests per second per connection (0 disables limiting).
rps = 0
burst = 1
`

// WriteDefault writes DefaultFile to path, refusing to overwrite unless force
// is set.
func WriteDefault(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.Errorf("config already exists at %s (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(DefaultFile), 0o644)
}
