package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/dkeye/GeoMeet/internal/domain"
)

const EnvPrefix = "GEOMEET"

type GatewayConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type IdentityConfig struct {
	Backend       string `mapstructure:"backend"`
	Path          string `mapstructure:"path"`
	Key           string `mapstructure:"key"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

type LocationConfig struct {
	Provider string        `mapstructure:"provider"`
	Lat      float64       `mapstructure:"lat"`
	Lon      float64       `mapstructure:"lon"`
	IPAPIURL string        `mapstructure:"ipapi_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type VenuesConfig struct {
	Keyword string `mapstructure:"keyword"`
	Radius  int    `mapstructure:"radius"`
}

type Config struct {
	Mode         string        `mapstructure:"mode"`
	Port         int           `mapstructure:"port"`
	LogLevel     string        `mapstructure:"log_level"`
	StaticPath   string        `mapstructure:"static_path"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	RateLimit    int           `mapstructure:"rate_limit"`
	RateWindow   time.Duration `mapstructure:"rate_window"`
	DisplayName  string        `mapstructure:"display_name"`
	ShareBaseURL string        `mapstructure:"share_base_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`

	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Identity IdentityConfig `mapstructure:"identity"`
	Location LocationConfig `mapstructure:"location"`
	Venues   VenuesConfig   `mapstructure:"venues"`
}

// New returns a viper instance with defaults and GEOMEET_* env lookup set
// up. Callers may bind flags to it before LoadWith.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("rate_limit", 30)
	v.SetDefault("rate_window", "1m")
	v.SetDefault("display_name", "")
	v.SetDefault("share_base_url", "https://geomeet.app/join")
	v.SetDefault("poll_interval", "3s")

	v.SetDefault("gateway.base_url", "http://localhost:5000")
	v.SetDefault("gateway.timeout", "10s")

	v.SetDefault("identity.backend", "file")
	v.SetDefault("identity.path", defaultIdentityPath())
	v.SetDefault("identity.key", "client_id")
	v.SetDefault("identity.redis_addr", "localhost:6379")
	v.SetDefault("identity.redis_password", "")
	v.SetDefault("identity.redis_db", 0)

	v.SetDefault("location.provider", "none")
	v.SetDefault("location.lat", 0.0)
	v.SetDefault("location.lon", 0.0)
	v.SetDefault("location.ipapi_url", "")
	v.SetDefault("location.timeout", "10s")

	v.SetDefault("venues.keyword", "restaurant")
	v.SetDefault("venues.radius", 1500)
	return v
}

func defaultIdentityPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".geomeet", "identity.yaml")
	}
	return filepath.Join(dir, "geomeet", "identity.yaml")
}

func Load() (*Config, error) {
	return LoadWith(New())
}

// LoadWith reads the config file into v and decodes it. Without an explicit
// config file it looks for config/config.<CONFIG_ENV>.yaml; a missing file
// means defaults.
func LoadWith(v *viper.Viper) (*Config, error) {
	fileName := v.ConfigFileUsed()
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
		v.SetConfigFile(fileName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Str("gateway", cfg.Gateway.BaseURL).
		Str("identity", cfg.Identity.Backend).
		Str("location", cfg.Location.Provider).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("mode: unknown value %q", c.Mode))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port: %d out of range", c.Port))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if len(c.DisplayName) > domain.MaxDisplayNameLen {
		errs = append(errs, fmt.Errorf("display_name: %w", domain.ErrDisplayNameTooLong))
	}
	if c.RateLimit < 0 || (c.RateLimit > 0 && c.RateWindow <= 0) {
		errs = append(errs, errors.New("rate_limit needs a positive rate_window"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}
	if c.Gateway.BaseURL == "" {
		errs = append(errs, errors.New("gateway.base_url is required"))
	}
	switch c.Identity.Backend {
	case "memory":
	case "file":
		if c.Identity.Path == "" {
			errs = append(errs, errors.New("identity.path is required for the file backend"))
		}
	case "redis":
		if c.Identity.RedisAddr == "" {
			errs = append(errs, errors.New("identity.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("identity.backend: unknown value %q", c.Identity.Backend))
	}
	switch c.Location.Provider {
	case "none", "static", "ipapi":
	default:
		errs = append(errs, fmt.Errorf("location.provider: unknown value %q", c.Location.Provider))
	}
	if c.Venues.Radius <= 0 {
		errs = append(errs, errors.New("venues.radius must be positive"))
	}
	return errors.Join(errs...)
}
