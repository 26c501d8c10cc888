package config

import (
	"fmt"

	"github.com/Klingon-tech/covenantlab/internal/log"
	"github.com/Klingon-tech/covenantlab/pkg/numeric"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Chipnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Chipnet)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir must be set")
	}
	if _, err := cfg.FeeRate(); err != nil {
		return err
	}
	if !log.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level %q is not one of trace, debug, info, warn, error, disabled", cfg.Log.Level)
	}
	return cfg.Protocol.Validate()
}

// FeeRate parses TxFeePerByte.
func (c *Config) FeeRate() (numeric.Fraction, error) {
	f, err := numeric.ParseFraction(c.TxFeePerByte)
	if err != nil {
		return numeric.Fraction{}, fmt.Errorf("txfee_per_byte: %w", err)
	}
	return f, nil
}
