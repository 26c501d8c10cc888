package wallet

import (
	"math/big"

	"github.com/Klingon-tech/covenantlab/internal/payout"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Balances sums everything held by coins.
func Balances(coins []SpendableCoin) payout.Balances {
	b := payout.Balances{Native: new(big.Int), Tokens: make(map[types.TokenID]*big.Int)}
	for _, c := range coins {
		b.AddOutput(c.UTXO.Output)
	}
	return b
}
