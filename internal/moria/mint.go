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
	"github.com/Klingon-tech/covenantlab/pkg/numeric"
	"github.com/Klingon-tech/covenantlab/pkg/tx"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// MintParams describe a new loan.
type MintParams struct {
	Funding          []wallet.SpendableCoin
	BorrowerPKH      types.PubKeyHash
	Principal        uint64
	AnnualInterestBP uint16
	Collateral       uint64
	// Agent, when set, makes a v1 loan controlled by this loan-agent coin.
	Agent *wallet.SpendableCoin
	// PrincipalLockingBytecode receives the minted tokens. Defaults to the
	// borrower's P2PKH.
	PrincipalLockingBytecode []byte
	// Rules are appended after the principal payout, usually a single
	// change rule.
	Rules []payout.Rule
}

// Mint opens a loan: collateral moves into a new loan output and the
// principal is issued from the moria covenant's supply.
func Mint(mc MutationContext, p MintParams) (MutationContext, *LoanResult, error) {
	if err := mc.Validate(); err != nil {
		return mc, nil, err
	}
	states, err := path(StateNone, EventMint)
	if err != nil {
		return mc, nil, err
	}

	price, err := mc.Price()
	if err != nil {
		return mc, nil, err
	}
	var agent *agentSpend
	if p.Agent != nil {
		if agent, err = newAgentSpend(*p.Agent); err != nil {
			return mc, nil, err
		}
	}
	principal := new(big.Int).SetUint64(p.Principal)
	commitment, loanOut, ratio, err := mc.openTerms(p.BorrowerPKH, p.Principal, p.AnnualInterestBP, p.Collateral, price, agent)
	if err != nil {
		return mc, nil, err
	}
	moriaOut, err := mc.moriaSuccessor(new(big.Int).Neg(principal))
	if err != nil {
		return mc, nil, err
	}

	inputs := []compiler.InputDescriptor{mc.Moria.input(selMint), mc.Oracle.input(selOracleUse)}
	leading := []types.Output{moriaOut, mc.oracleSuccessor(price), loanOut}
	bal := wallet.Balances(p.Funding)
	bal.AddNative(big.NewInt(-int64(price.UseFee)))
	bal.AddNative(new(big.Int).Neg(new(big.Int).SetUint64(p.Collateral)))
	bal.AddToken(mc.Params.StableTokenID, principal)

	if agent != nil {
		inputs = append(inputs, agent.input)
		leading = append(leading, agent.keepAsSuccessor(&bal))
	}
	funding, err := wallet.Inputs(p.Funding)
	if err != nil {
		return mc, nil, err
	}
	inputs = append(inputs, funding...)

	principalLock := p.PrincipalLockingBytecode
	if len(principalLock) == 0 {
		principalLock = types.P2PKHLockingBytecode(p.BorrowerPKH)
	}
	rules := append([]payout.Rule{payout.FixedRule{
		LockingBytecode: principalLock,
		UseMin:          true,
		Token:           &payout.TokenAmount{ID: mc.Params.StableTokenID, Amount: principal},
	}}, p.Rules...)

	txr, res, err := mc.settle(inputs, leading, bal, rules)
	if err != nil {
		return mc, nil, err
	}
	loan := Loan{UTXO: txr.Output(2), Commitment: commitment, State: StateMinted}

	log.Loan.Debug().
		Str("loan", loan.UTXO.Outpoint.String()).
		Uint64("principal", p.Principal).
		Uint64("collateral", p.Collateral).
		Str("ratio", ratio.String()).
		Msg("loan minted")

	return mc.advance(txr, 0, 1), &LoanResult{Loan: &loan, States: states, Tx: txr, Payout: res}, nil
}

// openTerms checks loan terms against the protocol limits and the oracle
// price, and builds the loan output that carries them.
func (mc MutationContext) openTerms(borrower types.PubKeyHash, principal uint64, rateBP uint16, collateral uint64, price codec.DelphiCommitment, agent *agentSpend) (codec.LoanCommitment, types.Output, numeric.Fraction, error) {
	params := mc.Params
	if principal < params.MinMintAmount || principal > params.MaxMintAmount {
		return codec.LoanCommitment{}, types.Output{}, numeric.Fraction{}, protoerr.Valuef("principal %d outside [%d, %d]", principal, params.MinMintAmount, params.MaxMintAmount)
	}
	if rateBP < params.MinRateBP || rateBP > params.MaxRateBP {
		return codec.LoanCommitment{}, types.Output{}, numeric.Fraction{}, protoerr.Valuef("interest rate %d bp outside [%d, %d]", rateBP, params.MinRateBP, params.MaxRateBP)
	}
	ratio, err := accrual.CollateralRatio(new(big.Int).SetUint64(collateral), big.NewInt(int64(price.Price)), new(big.Int).SetUint64(principal))
	if err != nil {
		return codec.LoanCommitment{}, types.Output{}, numeric.Fraction{}, err
	}
	if accrual.BelowRatio(ratio, params.MinCollateralRatio) {
		return codec.LoanCommitment{}, types.Output{}, numeric.Fraction{}, protoerr.Valuef("collateral ratio %s is below the minimum %s", ratio, params.MinCollateralRatio)
	}

	commitment := codec.LoanCommitment{
		BorrowerPKH:      borrower,
		Principal:        principal,
		AnnualInterestBP: rateBP,
		Timestamp:        price.Timestamp,
	}
	if agent != nil {
		h := agent.hash
		commitment.LoanAgentHash = &h
	}
	out := types.Output{
		LockingBytecode: mc.LoanLockingBytecode(),
		Amount:          collateral,
		Token: &types.TokenData{
			ID:  params.StableTokenID,
			NFT: &types.NFT{Capability: types.CapabilityNone, Commitment: codec.EncodeLoanCommitment(commitment)},
		},
	}
	if tx.IsDust(out) {
		return codec.LoanCommitment{}, types.Output{}, numeric.Fraction{}, protoerr.Valuef("collateral %d is below the dust floor %d", collateral, tx.DustAmount(out))
	}
	return commitment, out, ratio, nil
}
