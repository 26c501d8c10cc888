package moria

import (
	"math/big"

	"github.com/Klingon-tech/covenantlab/internal/accrual"
	"github.com/Klingon-tech/covenantlab/internal/codec"
	"github.com/Klingon-tech/covenantlab/internal/compiler"
	"github.com/Klingon-tech/covenantlab/internal/log"
	"github.com/Klingon-tech/covenantlab/internal/payout"
	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/internal/wallet"
	"github.com/Klingon-tech/covenantlab/pkg/crypto"
	"github.com/Klingon-tech/covenantlab/pkg/tx"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// RepayParams describe the borrower closing a loan.
type RepayParams struct {
	Loan    Loan
	Funding []wallet.SpendableCoin
	// BorrowerKey authorizes a v0 loan.
	BorrowerKey *crypto.PrivateKey
	// Agent authorizes a v1 loan.
	Agent *wallet.SpendableCoin
	// KeepAgent hands the agent NFT to the change rule instead of burning it.
	KeepAgent bool
	// AllowAgentBurn permits the change rule's burn hook to drop a kept agent.
	AllowAgentBurn bool
	// CollateralLockingBytecode receives the released collateral. Defaults
	// to the borrower's P2PKH.
	CollateralLockingBytecode []byte
	Rules                     []payout.Rule
}

// Repay pays principal plus interest back into the moria covenant and
// releases the whole collateral.
func Repay(mc MutationContext, p RepayParams) (MutationContext, *LoanResult, error) {
	if err := mc.Validate(); err != nil {
		return mc, nil, err
	}
	states, err := path(p.Loan.State, EventRepay, EventClose)
	if err != nil {
		return mc, nil, err
	}
	loanIn, agent, err := mc.authorize(p.Loan, selLoanRepay, p.BorrowerKey, p.Agent)
	if err != nil {
		return mc, nil, err
	}
	d, err := mc.debt(p.Loan, p.Funding)
	if err != nil {
		return mc, nil, err
	}

	inputs := []compiler.InputDescriptor{mc.Moria.input(selRepay), mc.Oracle.input(selOracleUse), loanIn}
	if agent != nil {
		inputs = append(inputs, agent.input)
		if p.KeepAgent {
			d.bal.AddOutput(agent.coin.UTXO.Output)
		} else {
			agent.burnInto(&d.bal)
		}
	}
	funding, err := wallet.Inputs(p.Funding)
	if err != nil {
		return mc, nil, err
	}
	inputs = append(inputs, funding...)

	lock := p.CollateralLockingBytecode
	if len(lock) == 0 {
		lock = p.Loan.BorrowerLockingBytecode()
	}
	rules := append([]payout.Rule{payout.FixedRule{
		LockingBytecode: lock,
		Amount:          new(big.Int).SetUint64(p.Loan.Collateral()),
	}}, p.Rules...)

	txr, res, err := mc.settle(inputs, d.leading, d.bal, rules)
	if err != nil {
		return mc, nil, err
	}
	if agent != nil && p.KeepAgent && !p.AllowAgentBurn && agent.burned(res) {
		return mc, nil, protoerr.BurnNFT(agent.category(), "loan agent of %s would be burned", p.Loan.UTXO.Outpoint)
	}

	log.Loan.Debug().
		Str("loan", p.Loan.UTXO.Outpoint.String()).
		Str("owed", d.owed.String()).
		Msg("loan repaid")

	return mc.advance(txr, 0, 1), &LoanResult{States: states, Tx: txr, Payout: res}, nil
}

// RedeemParams describe a third party closing a loan by paying its debt in
// exchange for collateral at the oracle price.
type RedeemParams struct {
	Loan    Loan
	Funding []wallet.SpendableCoin
	// RedeemerLockingBytecode receives the redeemed collateral.
	RedeemerLockingBytecode []byte
	Rules                   []payout.Rule
}

// Redeem pays off a loan and takes the redeemable amount of its collateral.
// Any surplus goes to the borrower.
func Redeem(mc MutationContext, p RedeemParams) (MutationContext, *LoanResult, error) {
	return redeem(mc, p, EventRedeem, selRedeem, selLoanRedeem)
}

// Liquidate is Redeem restricted to loans whose collateral ratio is below
// the protocol minimum.
func Liquidate(mc MutationContext, p RedeemParams) (MutationContext, *LoanResult, error) {
	if err := mc.Validate(); err != nil {
		return mc, nil, err
	}
	price, err := mc.Price()
	if err != nil {
		return mc, nil, err
	}
	st, err := Status(p.Loan, price, mc.Params)
	if err != nil {
		return mc, nil, err
	}
	if !st.Liquidatable {
		return mc, nil, protoerr.Valuef("loan %s is not liquidatable at ratio %s", p.Loan.UTXO.Outpoint, st.Ratio)
	}
	return redeem(mc, p, EventLiquidate, selLiquidate, selLoanLiquidate)
}

func redeem(mc MutationContext, p RedeemParams, ev Event, sel, loanSel byte) (MutationContext, *LoanResult, error) {
	if err := mc.Validate(); err != nil {
		return mc, nil, err
	}
	if len(p.RedeemerLockingBytecode) == 0 {
		return mc, nil, protoerr.Valuef("redeemer locking bytecode is not set")
	}
	states, err := path(p.Loan.State, ev, EventClose)
	if err != nil {
		return mc, nil, err
	}
	d, err := mc.debt(p.Loan, p.Funding)
	if err != nil {
		return mc, nil, err
	}

	redeemable, err := accrual.RedeemableNativeAmount(d.owed, big.NewInt(int64(d.price.Price)))
	if err != nil {
		return mc, nil, err
	}
	collateral := new(big.Int).SetUint64(p.Loan.Collateral())
	if redeemable.Cmp(collateral) > 0 {
		redeemable.Set(collateral)
	}
	surplus := new(big.Int).Sub(collateral, redeemable)
	surplusOut := types.Output{LockingBytecode: p.Loan.BorrowerLockingBytecode(), Amount: surplus.Uint64()}

	var rules []payout.Rule
	if surplus.Sign() > 0 && !tx.IsDust(surplusOut) {
		rules = append(rules,
			payout.FixedRule{LockingBytecode: p.RedeemerLockingBytecode, Amount: redeemable},
			payout.FixedRule{LockingBytecode: surplusOut.LockingBytecode, Amount: surplus},
		)
	} else {
		rules = append(rules, payout.FixedRule{LockingBytecode: p.RedeemerLockingBytecode, Amount: collateral})
	}
	rules = append(rules, p.Rules...)

	inputs := []compiler.InputDescriptor{mc.Moria.input(sel), mc.Oracle.input(selOracleUse), mc.loanInput(p.Loan, loanSel, nil)}
	funding, err := wallet.Inputs(p.Funding)
	if err != nil {
		return mc, nil, err
	}
	inputs = append(inputs, funding...)

	txr, res, err := mc.settle(inputs, d.leading, d.bal, rules)
	if err != nil {
		return mc, nil, err
	}

	log.Loan.Debug().
		Str("loan", p.Loan.UTXO.Outpoint.String()).
		Str("event", ev.String()).
		Str("owed", d.owed.String()).
		Str("redeemed", redeemable.String()).
		Str("surplus", surplus.String()).
		Msg("loan closed")

	return mc.advance(txr, 0, 1), &LoanResult{States: states, Tx: txr, Payout: res}, nil
}

// debtSettlement is the common part of every closing transaction: the
// moria covenant takes the debt back and the oracle is paid.
type debtSettlement struct {
	price   codec.DelphiCommitment
	owed    *big.Int
	leading []types.Output
	bal     payout.Balances
}

func (mc MutationContext) debt(l Loan, coins []wallet.SpendableCoin) (*debtSettlement, error) {
	price, err := mc.Price()
	if err != nil {
		return nil, err
	}
	owed, err := l.TotalOwed(price.Timestamp)
	if err != nil {
		return nil, err
	}
	bal := wallet.Balances(coins)
	stable := mc.Params.StableTokenID
	if have := bal.Token(stable); have.Cmp(owed) < 0 {
		return nil, protoerr.Insufficient(stable, owed, have)
	}
	moriaOut, err := mc.moriaSuccessor(owed)
	if err != nil {
		return nil, err
	}
	bal.AddToken(stable, new(big.Int).Neg(owed))
	bal.AddNative(new(big.Int).SetUint64(l.Collateral()))
	bal.AddNative(big.NewInt(-int64(price.UseFee)))
	return &debtSettlement{
		price:   price,
		owed:    owed,
		leading: []types.Output{moriaOut, mc.oracleSuccessor(price)},
		bal:     bal,
	}, nil
}
