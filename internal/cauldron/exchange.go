// Package cauldron turns routed trades into pool transactions and lets pool
// owners withdraw their liquidity.
package cauldron

import (
	"fmt"
	"math/big"

	"github.com/Klingon-tech/covenantlab/internal/compiler"
	"github.com/Klingon-tech/covenantlab/internal/payout"
	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/internal/router"
	"github.com/Klingon-tech/covenantlab/internal/wallet"
	"github.com/Klingon-tech/covenantlab/pkg/numeric"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Exchange builds pool transactions with a compiler at a fixed fee rate.
type Exchange struct {
	Compiler     compiler.Compiler
	TxFeePerByte numeric.Fraction
}

// NewExchange returns an Exchange using c.
func NewExchange(c compiler.Compiler, rate numeric.Fraction) *Exchange {
	return &Exchange{Compiler: c, TxFeePerByte: rate}
}

func (x *Exchange) validate() error {
	if x.Compiler == nil {
		return protoerr.Valuef("exchange has no compiler")
	}
	if err := x.TxFeePerByte.Validate(); err != nil {
		return fmt.Errorf("txfee per byte: %w", err)
	}
	return nil
}

// TxResult is a compiled pool transaction.
type TxResult struct {
	Tx     *compiler.TxResult `json:"tx"`
	Payout *payout.Result     `json:"payout"`
	// Pools are the successor pools, in entry order. Empty after a withdraw.
	Pools []router.Pool `json:"pools,omitempty"`
}

// settle resolves payouts after the leading outputs and compiles the
// transaction. Resolver and compiler must agree on the fee.
func (x *Exchange) settle(inputs []compiler.InputDescriptor, leading []types.Output, bal payout.Balances, rules []payout.Rule) (*compiler.TxResult, *payout.Result, error) {
	sizes, err := compiler.UnlockingSizes(x.Compiler, inputs)
	if err != nil {
		return nil, nil, err
	}
	res, err := payout.Resolve(bal, rules, payout.Config{
		TxFeePerByte:   x.TxFeePerByte,
		UnlockingSizes: sizes,
		LeadingOutputs: leading,
	})
	if err != nil {
		return nil, nil, err
	}
	outputs := append(append([]types.Output{}, leading...), res.Outputs()...)
	rate := x.TxFeePerByte
	txr, err := x.Compiler.Compile(&compiler.TxDescriptor{
		Inputs:       inputs,
		Outputs:      outputs,
		TxFeePerByte: &rate,
	})
	if err != nil {
		return nil, nil, err
	}
	if new(big.Int).SetUint64(txr.TxFee).Cmp(res.TxFee) != 0 {
		return nil, nil, protoerr.InvalidStatef("compiled fee %d, resolved fee %s", txr.TxFee, res.TxFee)
	}
	return txr, res, nil
}

// SelectFunding picks coins paying for trade's supply plus nativeReserve
// native units for the demand output and the fee. When the supply is a
// token the native part is selected from plain coins separately.
func SelectFunding(coins []wallet.SpendableCoin, trade *router.TradeResult, nativeReserve uint64) ([]wallet.SpendableCoin, error) {
	if trade == nil || len(trade.Entries) == 0 {
		return nil, protoerr.Valuef("trade has no entries")
	}
	supplyID := trade.Entries[0].SupplyTokenID
	supply, err := numeric.Uint64(trade.Summary.Supply)
	if err != nil {
		return nil, err
	}

	if supplyID.IsNative() {
		sel, err := wallet.SelectCoins(coins, supplyID, supply+nativeReserve)
		if err != nil {
			return nil, fmt.Errorf("select supply: %w", err)
		}
		return sel.Inputs, nil
	}

	tokens, err := wallet.SelectCoins(coins, supplyID, supply)
	if err != nil {
		return nil, fmt.Errorf("select supply: %w", err)
	}
	if nativeReserve == 0 {
		return tokens.Inputs, nil
	}
	native, err := wallet.SelectCoins(wallet.Without(coins, tokens.Inputs), types.NativeTokenID, nativeReserve)
	if err != nil {
		return nil, fmt.Errorf("select fee: %w", err)
	}
	return append(tokens.Inputs, native.Inputs...), nil
}
