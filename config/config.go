// Package config loads fetcher settings from an optional config file,
// HTTPFETCH_ prefixed environment variables, a .env file and command line
// flags, and turns them into fetch options.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/adamwoolhether/httpfetch/fetch"
)

// EnvPrefix prefixes every environment variable read by [Load].
const EnvPrefix = "HTTPFETCH"

// Config holds the settings of a fetcher and the header toggles of its
// requests.
type Config struct {
	Timeout       time.Duration `mapstructure:"timeout" validate:"gte=0"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout" validate:"gt=0"`
	MaxIdleConns  int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ThrottleRPS   int           `mapstructure:"throttle_rps" validate:"gte=0"`
	ThrottleBurst int           `mapstructure:"throttle_burst" validate:"gte=0,required_unless=ThrottleRPS 0"`
	HTTP2         bool          `mapstructure:"http2"`
	HTTP2ReadIdle time.Duration `mapstructure:"http2_read_idle" validate:"gte=0"`
	LogLevel      string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat     string        `mapstructure:"log_format" validate:"oneof=text json"`

	AcceptAnything          bool   `mapstructure:"accept_anything"`
	DoNotTrack              bool   `mapstructure:"dnt"`
	UpgradeInsecureRequests bool   `mapstructure:"upgrade_insecure"`
	TETrailers              bool   `mapstructure:"te_trailers"`
	Cookies                 string `mapstructure:"cookie"`
	Origin                  string `mapstructure:"origin"`
	Referer                 string `mapstructure:"referer"`
}

// Load builds a [Config] from, in increasing precedence, the defaults,
// the file at path (skipped when empty), the environment (including a
// .env file in the working directory) and the flags that were set.
// Flag names map to keys with dashes replaced by underscores; flags
// without a matching key are ignored. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()

	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("dial_timeout", 10*time.Second)
	v.SetDefault("max_idle_conns", 100)
	v.SetDefault("throttle_rps", 0)
	v.SetDefault("throttle_burst", 0)
	v.SetDefault("http2", true)
	v.SetDefault("http2_read_idle", 30*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("accept_anything", false)
	v.SetDefault("dnt", false)
	v.SetDefault("upgrade_insecure", false)
	v.SetDefault("te_trailers", false)
	v.SetDefault("cookie", "")
	v.SetDefault("origin", "")
	v.SetDefault("referer", "")

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if !f.Changed || !slices.Contains(v.AllKeys(), key) {
				return
			}
			bindErr = errors.Join(bindErr, v.BindPFlag(key, f))
		})
		if bindErr != nil {
			return nil, fmt.Errorf("binding flags: %w", bindErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Options converts c into the options of [fetch.Build]. logger may be nil.
func (c *Config) Options(logger *slog.Logger) []fetch.ClientOption {
	opts := []fetch.ClientOption{
		fetch.WithTimeout(c.Timeout),
		fetch.WithDialTimeout(c.DialTimeout),
		fetch.WithMaxIdleConns(c.MaxIdleConns),
	}

	if c.HTTP2 {
		opts = append(opts, fetch.WithHTTP2HealthCheck(c.HTTP2ReadIdle))
	} else {
		opts = append(opts, fetch.WithoutHTTP2())
	}

	if c.ThrottleRPS > 0 {
		opts = append(opts, fetch.WithThrottle(c.ThrottleRPS, c.ThrottleBurst))
	}

	if logger != nil {
		opts = append(opts, fetch.WithLogger(logger))
	}

	return opts
}

// Request returns the header toggles of c.
func (c *Config) Request() fetch.Options {
	return fetch.Options{
		AcceptAnything:          c.AcceptAnything,
		DoNotTrack:              c.DoNotTrack,
		UpgradeInsecureRequests: c.UpgradeInsecureRequests,
		TETrailers:              c.TETrailers,
		Cookies:                 c.Cookies,
		Origin:                  c.Origin,
		Referer:                 c.Referer,
	}
}

// Logger returns a logger writing to w in the configured format and level.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	switch c.LogFormat {
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	}
}
