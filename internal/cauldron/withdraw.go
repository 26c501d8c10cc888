package cauldron

import (
	"github.com/Klingon-tech/covenantlab/internal/compiler"
	"github.com/Klingon-tech/covenantlab/internal/log"
	"github.com/Klingon-tech/covenantlab/internal/payout"
	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/internal/router"
	"github.com/Klingon-tech/covenantlab/internal/wallet"
	"github.com/Klingon-tech/covenantlab/pkg/crypto"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// WithdrawParams describe an owner reclaiming pools.
type WithdrawParams struct {
	Pools    []router.Pool
	OwnerKey *crypto.PrivateKey
	// Funding is optional; the pools' own native reserve normally pays the fee.
	Funding []wallet.SpendableCoin
	// Rules default to one change rule paying everything to the owner's
	// P2PKH with native and token mixed.
	Rules []payout.Rule
}

// Withdraw spends pools through their owner branch.
func (x *Exchange) Withdraw(p WithdrawParams) (*TxResult, error) {
	if err := x.validate(); err != nil {
		return nil, err
	}
	if len(p.Pools) == 0 {
		return nil, protoerr.Valuef("no pools to withdraw")
	}
	if p.OwnerKey == nil {
		return nil, protoerr.Valuef("pool withdraw needs the owner key")
	}
	owner := p.OwnerKey.PubKeyHash()

	bal := wallet.Balances(p.Funding)
	inputs := make([]compiler.InputDescriptor, 0, len(p.Pools)+len(p.Funding))
	for _, pool := range p.Pools {
		if pool.Params.WithdrawPKH != owner {
			return nil, protoerr.Valuef("pool %s is owned by %s", pool.UTXO.Outpoint, pool.Params.WithdrawPKH)
		}
		inputs = append(inputs, compiler.InputDescriptor{
			UTXO:     pool.UTXO,
			ScriptID: compiler.ScriptPoolWithdraw,
			Data:     compiler.UnlockData{Key: p.OwnerKey, RedeemScript: pool.RedeemScript},
		})
		bal.AddOutput(pool.UTXO.Output)
	}
	funding, err := wallet.Inputs(p.Funding)
	if err != nil {
		return nil, err
	}
	inputs = append(inputs, funding...)

	rules := p.Rules
	if len(rules) == 0 {
		rules = []payout.Rule{payout.ChangeRule{
			LockingBytecode:           types.P2PKHLockingBytecode(owner),
			AllowMixingNativeAndToken: true,
		}}
	}
	txr, res, err := x.settle(inputs, nil, bal, rules)
	if err != nil {
		return nil, err
	}

	log.Trade.Debug().
		Str("tx", txr.Hash.String()).
		Int("pools", len(p.Pools)).
		Msg("pools withdrawn")

	return &TxResult{Tx: txr, Payout: res}, nil
}
