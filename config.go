// Package joinql builds object queries over a metamodel and resolves the
// attribute paths they reference into a deduplicated join tree.
// This file implements configuration loading.
//
// Configuration is read from a YAML file, JOINQL_ environment variables and
// command line flags, in increasing order of precedence:
//
//	# joinql.yaml
//	dialect: eclipselink
//	placeholder: ordinal
//	treat_filter: on
//	model: model.yaml
//	log_level: debug
//	slow_build_threshold: 5ms
//	capabilities:
//	  entity_join: false
//
//	JOINQL_DIALECT=hibernate
//	JOINQL_CAPABILITIES__ENTITY_JOIN=true
//
// Usage example:
//
//	cfg, err := joinql.LoadConfig("joinql.yaml", cmd.Flags())
//	if err != nil {
//	    return err
//	}
//	dialect, err := cfg.ResolveDialect()
//	if err != nil {
//	    return err
//	}
//	opts, err := cfg.BuilderOptions(os.Stderr)
//	if err != nil {
//	    return err
//	}
//	cb := joinql.NewCriteriaBuilder(mm, dialect, opts...)
package joinql

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "JOINQL_"

// Default configuration values.
const (
	DefaultDialect            = "jpa"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
	DefaultSlowBuildThreshold = 10 * time.Millisecond
)

// Config is the joinql configuration.
type Config struct {
	// Dialect names a preset: hibernate, eclipselink, datanucleus or jpa.
	Dialect string `koanf:"dialect"`
	// Placeholder overrides the placeholder format of the dialect.
	Placeholder string `koanf:"placeholder"`
	// TreatFilter overrides where TYPE restrictions of treat joins go.
	TreatFilter string `koanf:"treat_filter"`
	// Model is the path of a YAML metamodel.
	Model string `koanf:"model"`
	// DSN is a SQLite data source to introspect the metamodel from.
	DSN string `koanf:"dsn"`

	LogLevel           string        `koanf:"log_level"`
	LogFormat          string        `koanf:"log_format"`
	LogBuilds          bool          `koanf:"log_builds"`
	SlowBuildThreshold time.Duration `koanf:"slow_build_threshold"`

	k *koanf.Koanf
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// An empty path skips the file, flags may be nil. Only flags that were set
// explicitly are applied, with dashes in their names mapped to underscores.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"dialect":              DefaultDialect,
		"log_level":            DefaultLogLevel,
		"log_format":           DefaultLogFormat,
		"slow_build_threshold": DefaultSlowBuildThreshold.String(),
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("joinql: failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("joinql: error reading config file %s: %w", path, err)
		}
	}

	// JOINQL_CAPABILITIES__ENTITY_JOIN -> capabilities.entity_join
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("joinql: failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("joinql: failed to load flags: %w", err)
		}
	}

	cfg := &Config{k: k}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("joinql: unable to decode config: %w", err)
	}
	return cfg, nil
}

// ResolveDialect returns the configured dialect. The capabilities of the preset are
// overridden by the keys under capabilities, and the placeholder format and
// treat filter by their keys. Without any override the preset is returned
// as is.
func (c *Config) ResolveDialect() (Dialect, error) {
	d, err := DialectByName(c.Dialect)
	if err != nil {
		return nil, err
	}
	overridden := false

	caps := d.Capabilities()
	if c.k != nil && c.k.Exists("capabilities") {
		if err := c.k.Unmarshal("capabilities", &caps); err != nil {
			return nil, fmt.Errorf("joinql: unable to decode capabilities: %w", err)
		}
		overridden = true
	}
	if c.TreatFilter != "" {
		tf, err := ParseTreatFilter(c.TreatFilter)
		if err != nil {
			return nil, err
		}
		caps.TreatFilter = tf
		overridden = true
	}

	format := d.PlaceholderFormat()
	if c.Placeholder != "" {
		if format, err = PlaceholderFormatByName(c.Placeholder); err != nil {
			return nil, err
		}
		overridden = true
	}

	if !overridden {
		return d, nil
	}
	return NewDialect(d.Name(), format, caps), nil
}

// Logger returns a logger writing to w in the configured format, or nil if
// the level is off.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	if strings.EqualFold(c.LogLevel, "off") {
		return nil, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("joinql: invalid log level %q: %w", c.LogLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.LogFormat) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("joinql: unknown log format %q", c.LogFormat)
}

// BuilderOptions returns the builder options for the logging settings. Log
// records go to w.
func (c *Config) BuilderOptions(w io.Writer) ([]BuilderOption, error) {
	logger, err := c.Logger(w)
	if err != nil {
		return nil, err
	}
	opts := []BuilderOption{
		WithSlowBuildThreshold(c.SlowBuildThreshold),
		WithBuildLogging(c.LogBuilds),
	}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	return opts, nil
}
