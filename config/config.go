// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Protocol rules: lending bounds and pool parameters that must match the
//     deployed covenants
//   - Runtime settings: data directory, logging and fee rate, free to vary
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies the network a snapshot belongs to.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Chipnet NetworkType = "chipnet"
)

// =============================================================================
// Runtime Configuration
// =============================================================================

// Config holds runtime configuration.
type Config struct {
	Network NetworkType `mapstructure:"network"`
	DataDir string      `mapstructure:"datadir"`

	// TxFeePerByte is a fraction "n/d" in native units per byte.
	TxFeePerByte string `mapstructure:"txfee_per_byte"`

	Log      LogConfig      `mapstructure:"log"`
	Protocol ProtocolConfig `mapstructure:"protocol"`

	configPath string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
	JSON  bool   `mapstructure:"json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.covenantlab
//	macOS:   ~/Library/Application Support/Covenantlab
//	Windows: %APPDATA%\Covenantlab
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".covenantlab"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Covenantlab")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Covenantlab")
		}
		return filepath.Join(home, "AppData", "Roaming", "Covenantlab")
	default:
		return filepath.Join(home, ".covenantlab")
	}
}

// SnapshotDir returns the snapshot database directory. Networks share one
// database and are separated by key prefix, see SnapshotPrefix.
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.DataDir, "snapshot")
}

// SnapshotPrefix returns the key namespace of the network's snapshot.
func (c *Config) SnapshotPrefix() []byte {
	return []byte(string(c.Network) + "/")
}

// ConfigFile returns the config file that was loaded, or the default
// location inside the data directory.
func (c *Config) ConfigFile() string {
	if c.configPath != "" {
		return c.configPath
	}
	return filepath.Join(c.DataDir, "covenantlab.toml")
}

// EnsureDataDirs creates the data directory structure. Safe to call on
// every startup.
func EnsureDataDirs(cfg *Config) error {
	for _, dir := range []string{cfg.DataDir, cfg.SnapshotDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}
