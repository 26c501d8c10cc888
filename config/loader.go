package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. COVLAB_LOG_LEVEL.
const EnvPrefix = "COVLAB"

// Load builds the configuration from, in priority order:
// 1. Default values for the network
// 2. The configuration file at path (TOML, YAML or JSON), when set
// 3. Environment variables (COVLAB_ prefix)
// The result is validated before it is returned.
func Load(path string, network NetworkType) (*Config, error) {
	v := viper.New()
	if network == "" {
		network = Mainnet
	}
	setDefaults(v, network)

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.configPath = path

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// WriteDefault writes the defaults for network to path. The format follows
// the file extension.
func WriteDefault(path string, network NetworkType) error {
	v := viper.New()
	setDefaults(v, network)
	for _, key := range v.AllKeys() {
		v.Set(key, v.Get(key))
	}
	v.SetConfigFile(path)
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}
