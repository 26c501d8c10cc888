package moria

import (
	"math/big"

	"github.com/Klingon-tech/covenantlab/internal/compiler"
	"github.com/Klingon-tech/covenantlab/internal/log"
	"github.com/Klingon-tech/covenantlab/internal/payout"
	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/internal/wallet"
	"github.com/Klingon-tech/covenantlab/pkg/crypto"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// AddCollateralParams describe a collateral top-up.
type AddCollateralParams struct {
	Loan    Loan
	Amount  uint64
	Funding []wallet.SpendableCoin
	// BorrowerKey authorizes a v0 loan.
	BorrowerKey *crypto.PrivateKey
	// Agent authorizes a v1 loan and is re-created unchanged.
	Agent *wallet.SpendableCoin
	Rules []payout.Rule
}

// AddCollateral increases the native amount locked in a loan. Terms and
// timestamp stay untouched.
func AddCollateral(mc MutationContext, p AddCollateralParams) (MutationContext, *LoanResult, error) {
	if err := mc.Validate(); err != nil {
		return mc, nil, err
	}
	if p.Amount == 0 {
		return mc, nil, protoerr.Valuef("collateral top-up must be positive")
	}
	states, err := path(p.Loan.State, EventAddCollateral)
	if err != nil {
		return mc, nil, err
	}
	loanIn, agent, err := mc.authorize(p.Loan, selLoanAddCollateral, p.BorrowerKey, p.Agent)
	if err != nil {
		return mc, nil, err
	}

	loanOut := p.Loan.UTXO.Output.Clone()
	if loanOut.Amount+p.Amount < loanOut.Amount {
		return mc, nil, protoerr.Valuef("collateral overflows")
	}
	loanOut.Amount += p.Amount

	inputs := []compiler.InputDescriptor{loanIn}
	leading := []types.Output{loanOut}
	bal := wallet.Balances(p.Funding)
	bal.AddNative(new(big.Int).Neg(new(big.Int).SetUint64(p.Amount)))
	if agent != nil {
		inputs = append(inputs, agent.input)
		leading = append(leading, agent.keepAsSuccessor(&bal))
	}
	funding, err := wallet.Inputs(p.Funding)
	if err != nil {
		return mc, nil, err
	}
	inputs = append(inputs, funding...)

	txr, res, err := mc.settle(inputs, leading, bal, p.Rules)
	if err != nil {
		return mc, nil, err
	}
	loan := Loan{UTXO: txr.Output(0), Commitment: p.Loan.Commitment, State: states[len(states)-1]}

	log.Loan.Debug().
		Str("loan", loan.UTXO.Outpoint.String()).
		Uint64("added", p.Amount).
		Uint64("collateral", loan.Collateral()).
		Msg("collateral added")

	return mc.advance(txr, -1, -1), &LoanResult{Loan: &loan, States: states, Tx: txr, Payout: res}, nil
}
