package cauldron

import (
	"github.com/Klingon-tech/covenantlab/internal/compiler"
	"github.com/Klingon-tech/covenantlab/internal/log"
	"github.com/Klingon-tech/covenantlab/internal/payout"
	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/internal/router"
	"github.com/Klingon-tech/covenantlab/internal/wallet"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// TradeParams describe how a routed trade is paid for and delivered.
type TradeParams struct {
	Trade   *router.TradeResult
	Funding []wallet.SpendableCoin
	// DemandLockingBytecode receives the demanded amount.
	DemandLockingBytecode []byte
	// Rules settle what is left after the demand payout, usually a single
	// change rule.
	Rules []payout.Rule
}

// ExecuteTrade builds the transaction for a routed trade. Pool inputs come
// first, each re-created at the same output index with its post-trade
// reserves; the demand payout follows.
func (x *Exchange) ExecuteTrade(p TradeParams) (*TxResult, error) {
	if err := x.validate(); err != nil {
		return nil, err
	}
	if p.Trade == nil || len(p.Trade.Entries) == 0 {
		return nil, protoerr.Valuef("trade has no entries")
	}
	if len(p.DemandLockingBytecode) == 0 {
		return nil, protoerr.Valuef("demand locking bytecode is not set")
	}
	if p.Trade.Summary.Demand == nil || p.Trade.Summary.Demand.Sign() <= 0 {
		return nil, protoerr.Valuef("trade demands nothing")
	}

	first := p.Trade.Entries[0]
	seen := make(map[types.Outpoint]bool, len(p.Trade.Entries))
	bal := wallet.Balances(p.Funding)
	var (
		inputs  []compiler.InputDescriptor
		leading []types.Output
	)
	for i, e := range p.Trade.Entries {
		if e.SupplyTokenID != first.SupplyTokenID || e.DemandTokenID != first.DemandTokenID {
			return nil, protoerr.Valuef("entry %d trades %s/%s, want %s/%s", i, e.SupplyTokenID, e.DemandTokenID, first.SupplyTokenID, first.DemandTokenID)
		}
		op := e.Pool.UTXO.Outpoint
		if seen[op] {
			return nil, protoerr.Valuef("pool %s appears twice", op)
		}
		seen[op] = true

		out, err := e.Pool.Apply(e)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, compiler.InputDescriptor{
			UTXO:     e.Pool.UTXO,
			ScriptID: compiler.ScriptPoolTrade,
			Data:     compiler.UnlockData{RedeemScript: e.Pool.RedeemScript},
		})
		leading = append(leading, out)
		bal.AddOutput(e.Pool.UTXO.Output)
		bal.SubOutput(out)
	}
	funding, err := wallet.Inputs(p.Funding)
	if err != nil {
		return nil, err
	}
	inputs = append(inputs, funding...)

	demand := payout.FixedRule{LockingBytecode: p.DemandLockingBytecode}
	if first.DemandTokenID.IsNative() {
		demand.Amount = p.Trade.Summary.Demand
	} else {
		demand.UseMin = true
		demand.Token = &payout.TokenAmount{ID: first.DemandTokenID, Amount: p.Trade.Summary.Demand}
	}
	rules := append([]payout.Rule{demand}, p.Rules...)

	txr, res, err := x.settle(inputs, leading, bal, rules)
	if err != nil {
		return nil, err
	}

	pools := make([]router.Pool, 0, len(p.Trade.Entries))
	for i, e := range p.Trade.Entries {
		next, err := router.NewPool(txr.Output(i), e.Pool.RedeemScript)
		if err != nil {
			return nil, err
		}
		pools = append(pools, next)
	}

	log.Trade.Debug().
		Str("tx", txr.Hash.String()).
		Int("pools", len(pools)).
		Str("supply", p.Trade.Summary.Supply.String()).
		Str("demand", p.Trade.Summary.Demand.String()).
		Uint64("fee", txr.TxFee).
		Msg("trade built")

	return &TxResult{Tx: txr, Payout: res, Pools: pools}, nil
}
