package config

import (
	"fmt"

	"github.com/Klingon-tech/covenantlab/internal/moria"
	"github.com/Klingon-tech/covenantlab/internal/router"
	"github.com/Klingon-tech/covenantlab/pkg/numeric"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// =============================================================================
// Protocol Rules
// These MUST match the deployed covenants or built transactions are rejected.
// =============================================================================

// Denomination constants. 1 coin = 10^8 base units.
const (
	Decimals = 8
	Coin     = 100_000_000
)

// ProtocolConfig holds the lending and pool rules.
type ProtocolConfig struct {
	// StableTokenID is the hex category of the stable token.
	StableTokenID string `mapstructure:"stable_token_id"`

	MinMintAmount uint64 `mapstructure:"min_mint_amount"`
	MaxMintAmount uint64 `mapstructure:"max_mint_amount"`
	MinRateBP     uint16 `mapstructure:"min_rate_bp"`
	MaxRateBP     uint16 `mapstructure:"max_rate_bp"`

	// MinCollateralRatio is a fraction "n/d".
	MinCollateralRatio string `mapstructure:"min_collateral_ratio"`

	// PoolFeeBP is the pool trading fee. Only the deployed pool contract's
	// fee is accepted.
	PoolFeeBP uint16 `mapstructure:"pool_fee_bp"`
}

// MoriaParams converts the lending rules for the loan orchestrators.
func (p ProtocolConfig) MoriaParams() (moria.Params, error) {
	id, err := types.ParseTokenID(p.StableTokenID)
	if err != nil {
		return moria.Params{}, fmt.Errorf("protocol.stable_token_id: %w", err)
	}
	ratio, err := numeric.ParseFraction(p.MinCollateralRatio)
	if err != nil {
		return moria.Params{}, fmt.Errorf("protocol.min_collateral_ratio: %w", err)
	}
	params := moria.Params{
		StableTokenID:      id,
		MinMintAmount:      p.MinMintAmount,
		MaxMintAmount:      p.MaxMintAmount,
		MinRateBP:          p.MinRateBP,
		MaxRateBP:          p.MaxRateBP,
		MinCollateralRatio: ratio,
	}
	if err := params.Validate(); err != nil {
		return moria.Params{}, fmt.Errorf("protocol: %w", err)
	}
	return params, nil
}

// Validate checks the protocol rules. An unset stable token id is allowed
// so pool-only use works without lending configuration.
func (p ProtocolConfig) Validate() error {
	if p.PoolFeeBP != router.FeeBP {
		return fmt.Errorf("protocol.pool_fee_bp must be %d, the deployed pool fee", router.FeeBP)
	}
	if p.StableTokenID == "" {
		return nil
	}
	_, err := p.MoriaParams()
	return err
}
