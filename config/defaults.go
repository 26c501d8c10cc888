package config

import (
	"github.com/spf13/viper"

	"github.com/Klingon-tech/covenantlab/internal/router"
)

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network:      Mainnet,
		DataDir:      DefaultDataDir(),
		TxFeePerByte: "1",
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
		Protocol: ProtocolConfig{
			MinMintAmount:      100,
			MaxMintAmount:      1_000_000_000,
			MinRateBP:          0,
			MaxRateBP:          10_000,
			MinCollateralRatio: "150/100",
			PoolFeeBP:          router.FeeBP,
		},
	}
}

// DefaultChipnet returns the default configuration for chipnet.
func DefaultChipnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Chipnet
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Chipnet:
		return DefaultChipnet()
	default:
		return DefaultMainnet()
	}
}

// setDefaults registers the defaults of network with v.
func setDefaults(v *viper.Viper, network NetworkType) {
	d := Default(network)
	v.SetDefault("network", string(d.Network))
	v.SetDefault("datadir", d.DataDir)
	v.SetDefault("txfee_per_byte", d.TxFeePerByte)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.json", d.Log.JSON)

	p := d.Protocol
	v.SetDefault("protocol.stable_token_id", p.StableTokenID)
	v.SetDefault("protocol.min_mint_amount", p.MinMintAmount)
	v.SetDefault("protocol.max_mint_amount", p.MaxMintAmount)
	v.SetDefault("protocol.min_rate_bp", p.MinRateBP)
	v.SetDefault("protocol.max_rate_bp", p.MaxRateBP)
	v.SetDefault("protocol.min_collateral_ratio", p.MinCollateralRatio)
	v.SetDefault("protocol.pool_fee_bp", p.PoolFeeBP)
}
