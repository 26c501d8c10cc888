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

// RefinanceParams describe replacing a loan's terms.
type RefinanceParams struct {
	Loan    Loan
	Funding []wallet.SpendableCoin
	// BorrowerKey authorizes a v0 loan.
	BorrowerKey *crypto.PrivateKey
	// Agent authorizes a v1 loan. It carries over to the new loan.
	Agent *wallet.SpendableCoin

	Principal        uint64
	AnnualInterestBP uint16
	Collateral       uint64

	// PrincipalLockingBytecode receives the principal left after the old
	// debt is paid. Defaults to the borrower's P2PKH.
	PrincipalLockingBytecode []byte
	// Rules are appended after that payout, usually a single change rule.
	Rules []payout.Rule
}

// RefinanceResult is the outcome of Refinance.
type RefinanceResult struct {
	Loan   *Loan              `json:"loan"`
	States []State            `json:"states"`
	Owed   *big.Int           `json:"owed"`
	Tx     *compiler.TxResult `json:"tx"`
	Payout *payout.Result     `json:"payout"`
}

// Refinance closes a loan and opens one with new terms in one transaction.
// The new principal pays the old debt inside the moria covenant, so only
// the principal and collateral differences reach the borrower's balance:
// the funding covers what the new terms take beyond the old ones.
func Refinance(mc MutationContext, p RefinanceParams) (MutationContext, *RefinanceResult, error) {
	if err := mc.Validate(); err != nil {
		return mc, nil, err
	}
	states, err := path(p.Loan.State, EventRefinance)
	if err != nil {
		return mc, nil, err
	}
	loanIn, agent, err := mc.authorize(p.Loan, selLoanRefinance, p.BorrowerKey, p.Agent)
	if err != nil {
		return mc, nil, err
	}
	price, err := mc.Price()
	if err != nil {
		return mc, nil, err
	}
	owed, err := p.Loan.TotalOwed(price.Timestamp)
	if err != nil {
		return mc, nil, err
	}
	borrower := p.Loan.Commitment.BorrowerPKH
	commitment, loanOut, ratio, err := mc.openTerms(borrower, p.Principal, p.AnnualInterestBP, p.Collateral, price, agent)
	if err != nil {
		return mc, nil, err
	}

	stable := mc.Params.StableTokenID
	net := new(big.Int).Sub(new(big.Int).SetUint64(p.Principal), owed)
	bal := wallet.Balances(p.Funding)
	if net.Sign() < 0 {
		short := new(big.Int).Neg(net)
		if have := bal.Token(stable); have.Cmp(short) < 0 {
			return mc, nil, protoerr.Insufficient(stable, short, have)
		}
	}
	moriaOut, err := mc.moriaSuccessor(new(big.Int).Neg(net))
	if err != nil {
		return mc, nil, err
	}
	bal.AddToken(stable, net)
	bal.AddNative(new(big.Int).SetUint64(p.Loan.Collateral()))
	bal.AddNative(new(big.Int).Neg(new(big.Int).SetUint64(p.Collateral)))
	bal.AddNative(big.NewInt(-int64(price.UseFee)))

	inputs := []compiler.InputDescriptor{mc.Moria.input(selRefinance), mc.Oracle.input(selOracleUse), loanIn}
	leading := []types.Output{moriaOut, mc.oracleSuccessor(price), loanOut}
	if agent != nil {
		inputs = append(inputs, agent.input)
		leading = append(leading, agent.keepAsSuccessor(&bal))
	}
	funding, err := wallet.Inputs(p.Funding)
	if err != nil {
		return mc, nil, err
	}
	inputs = append(inputs, funding...)

	var rules []payout.Rule
	if net.Sign() > 0 {
		lock := p.PrincipalLockingBytecode
		if len(lock) == 0 {
			lock = types.P2PKHLockingBytecode(borrower)
		}
		rules = append(rules, payout.FixedRule{
			LockingBytecode: lock,
			UseMin:          true,
			Token:           &payout.TokenAmount{ID: stable, Amount: net},
		})
	}
	rules = append(rules, p.Rules...)

	txr, res, err := mc.settle(inputs, leading, bal, rules)
	if err != nil {
		return mc, nil, err
	}
	loan := Loan{UTXO: txr.Output(2), Commitment: commitment, State: states[len(states)-1]}

	log.Loan.Debug().
		Str("old", p.Loan.UTXO.Outpoint.String()).
		Str("new", loan.UTXO.Outpoint.String()).
		Str("owed", owed.String()).
		Str("net", net.String()).
		Str("ratio", ratio.String()).
		Msg("loan refinanced")

	return mc.advance(txr, 0, 1), &RefinanceResult{Loan: &loan, States: states, Owed: owed, Tx: txr, Payout: res}, nil
}
