// Package config loads connection settings from a configuration file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/asaidimu/go-n1ql/core/persistence"
)

// DefaultPrefix is the environment variable prefix read by Load.
const DefaultPrefix = "N1QL_"

// Application describes several connections and the file holding the
// collection definitions they serve.
type Application struct {
	Connections []persistence.Config
	// Schemas is the path of the collection definitions file.
	Schemas string
}

func setDefaults(v *viper.Viper) {
	d := persistence.DefaultConfig()
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("bucket", d.Bucket)
	v.SetDefault("updateConcurrency", string(d.UpdateConcurrency))
	v.SetDefault("maxOptimisticRetries", d.MaxOptimisticRetries)
	v.SetDefault("lockTime", d.LockTime)
	v.SetDefault("persistTo", d.PersistTo)
	v.SetDefault("replicateTo", d.ReplicateTo)
	v.SetDefault("consistency", int(d.Consistency))
	v.SetDefault("caseSensitive", d.CaseSensitive)
	v.SetDefault("doNotReturn", d.DoNotReturn)
	v.SetDefault("stableOrder", d.StableOrder)
	v.SetDefault("returnFormat", string(d.ReturnFormat))
	v.SetDefault("createConcurrency", d.CreateConcurrency)
	v.SetDefault("validateWrites", d.ValidateWrites)
}

func readFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s not found: %w", path, err)
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// applyEnv copies variables starting with prefix into v. Underscores after
// the prefix are dropped, so N1QL_MAX_OPTIMISTIC_RETRIES sets
// maxOptimisticRetries (keys are case-insensitive).
func applyEnv(v *viper.Viper, prefix string) {
	if prefix == "" {
		return
	}
	prefixUpper := strings.ToUpper(prefix)
	for _, envStr := range os.Environ() {
		key, value, ok := strings.Cut(envStr, "=")
		if !ok || !strings.HasPrefix(key, prefixUpper) {
			continue
		}
		propKey := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, prefixUpper), "_", ""))
		if propKey != "" {
			v.Set(propKey, value)
		}
	}
}

// Load reads one connection's settings. Values come, in increasing order of
// precedence, from the defaults, the file at path (YAML, JSON or TOML; may
// be empty) and environment variables starting with prefix. The result is
// validated.
func Load(path, prefix string) (persistence.Config, error) {
	v := viper.New()
	setDefaults(v)
	if err := readFile(v, path); err != nil {
		return persistence.Config{}, err
	}
	applyEnv(v, prefix)

	var cfg persistence.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return persistence.Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return persistence.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadApplication reads a file with a "connections" list and an optional
// "schemas" path. Every connection starts from the defaults and needs an
// identity.
func LoadApplication(path string) (*Application, error) {
	v := viper.New()
	if err := readFile(v, path); err != nil {
		return nil, err
	}

	raw, ok := v.Get("connections").([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("config file %s defines no connections", path)
	}
	app := &Application{Schemas: v.GetString("schemas")}
	seen := make(map[string]bool, len(raw))
	for i, entry := range raw {
		values, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("connection %d is not an object", i)
		}
		sub := viper.New()
		setDefaults(sub)
		if err := sub.MergeConfigMap(values); err != nil {
			return nil, fmt.Errorf("connection %d: %w", i, err)
		}
		var cfg persistence.Config
		if err := sub.Unmarshal(&cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal connection %d: %w", i, err)
		}
		if cfg.Identity == "" {
			return nil, fmt.Errorf("connection %d has no identity", i)
		}
		if seen[cfg.Identity] {
			return nil, fmt.Errorf("connection %q is defined twice", cfg.Identity)
		}
		seen[cfg.Identity] = true
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("connection %q: %w", cfg.Identity, err)
		}
		app.Connections = append(app.Connections, cfg)
	}
	return app, nil
}
