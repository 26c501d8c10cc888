package moria

import (
	"bytes"
	"math/big"

	"github.com/Klingon-tech/covenantlab/internal/accrual"
	"github.com/Klingon-tech/covenantlab/internal/codec"
	"github.com/Klingon-tech/covenantlab/internal/compiler"
	"github.com/Klingon-tech/covenantlab/internal/payout"
	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/internal/wallet"
	"github.com/Klingon-tech/covenantlab/pkg/crypto"
	"github.com/Klingon-tech/covenantlab/pkg/numeric"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Loan is a live loan UTXO with its decoded terms.
type Loan struct {
	UTXO       types.UTXO           `json:"utxo"`
	Commitment codec.LoanCommitment `json:"commitment"`
	State      State                `json:"state"`
}

// ParseLoan decodes a loan UTXO. Loans found on chain are reported as
// minted since their history is unknown.
func ParseLoan(mc MutationContext, u types.UTXO) (Loan, error) {
	if !bytes.Equal(u.Output.LockingBytecode, mc.LoanLockingBytecode()) {
		return Loan{}, protoerr.Valuef("utxo %s is not a loan", u.Outpoint)
	}
	t := u.Output.Token
	if t == nil || t.ID != mc.Params.StableTokenID || t.NFT == nil || t.NFT.Capability != types.CapabilityNone {
		return Loan{}, protoerr.Valuef("utxo %s does not carry a loan nft", u.Outpoint)
	}
	c, err := codec.DecodeLoanCommitment(t.NFT.Commitment)
	if err != nil {
		return Loan{}, err
	}
	return Loan{UTXO: u.Clone(), Commitment: c, State: StateMinted}, nil
}

// Collateral returns the native amount locked in the loan.
func (l Loan) Collateral() uint64 {
	return l.UTXO.Output.Amount
}

// BorrowerLockingBytecode is the P2PKH of the borrower named in the terms.
func (l Loan) BorrowerLockingBytecode() []byte {
	return types.P2PKHLockingBytecode(l.Commitment.BorrowerPKH)
}

// TotalOwed returns principal plus interest at timestamp now.
func (l Loan) TotalOwed(now uint32) (*big.Int, error) {
	return accrual.TotalOwed(
		new(big.Int).SetUint64(l.Commitment.Principal),
		big.NewInt(int64(l.Commitment.AnnualInterestBP)),
		big.NewInt(int64(now)),
		big.NewInt(int64(l.Commitment.Timestamp)),
	)
}

// authorize checks that the caller may mutate the loan and returns the
// loan input plus the extra inputs and outputs authorization needs.
func (mc MutationContext) authorize(l Loan, sel byte, key *crypto.PrivateKey, agent *wallet.SpendableCoin) (compiler.InputDescriptor, *agentSpend, error) {
	if l.Commitment.LoanAgentHash == nil {
		if key == nil {
			return compiler.InputDescriptor{}, nil, protoerr.Valuef("loan %s needs the borrower key", l.UTXO.Outpoint)
		}
		if key.PubKeyHash() != l.Commitment.BorrowerPKH {
			return compiler.InputDescriptor{}, nil, protoerr.Valuef("key does not match borrower of loan %s", l.UTXO.Outpoint)
		}
		return mc.loanInput(l, sel, key), nil, nil
	}

	if agent == nil {
		return compiler.InputDescriptor{}, nil, protoerr.Valuef("loan %s needs its loan agent", l.UTXO.Outpoint)
	}
	a, err := newAgentSpend(*agent)
	if err != nil {
		return compiler.InputDescriptor{}, nil, err
	}
	if a.hash != *l.Commitment.LoanAgentHash {
		return compiler.InputDescriptor{}, nil, protoerr.Valuef("agent %s does not control loan %s", agent.UTXO.Outpoint, l.UTXO.Outpoint)
	}
	return mc.loanInput(l, sel, nil), a, nil
}

// LoanStatus summarizes a loan at the oracle's current time and price.
type LoanStatus struct {
	State            State            `json:"state"`
	Principal        *big.Int         `json:"principal"`
	Interest         *big.Int         `json:"interest"`
	TotalOwed        *big.Int         `json:"total_owed"`
	Collateral       uint64           `json:"collateral"`
	CollateralValue  *big.Int         `json:"collateral_value"`
	RedeemableNative *big.Int         `json:"redeemable_native"`
	Ratio            numeric.Fraction `json:"-"`
	RatioFloat       float64          `json:"ratio"`
	Liquidatable     bool             `json:"liquidatable"`
	Price            uint32           `json:"price"`
	Timestamp        uint32           `json:"timestamp"`
}

// Status derives the loan's position from an oracle commitment.
func Status(l Loan, price codec.DelphiCommitment, params Params) (*LoanStatus, error) {
	p := big.NewInt(int64(price.Price))
	owed, err := l.TotalOwed(price.Timestamp)
	if err != nil {
		return nil, err
	}
	principal := new(big.Int).SetUint64(l.Commitment.Principal)
	collateral := new(big.Int).SetUint64(l.Collateral())

	value, err := accrual.CollateralValue(collateral, p)
	if err != nil {
		return nil, err
	}
	redeemable, err := accrual.RedeemableNativeAmount(owed, p)
	if err != nil {
		return nil, err
	}
	ratio, err := accrual.CollateralRatio(collateral, p, owed)
	if err != nil {
		return nil, err
	}
	return &LoanStatus{
		State:            l.State,
		Principal:        principal,
		Interest:         new(big.Int).Sub(owed, principal),
		TotalOwed:        owed,
		Collateral:       l.Collateral(),
		CollateralValue:  value,
		RedeemableNative: redeemable,
		Ratio:            ratio,
		RatioFloat:       ratio.Float64(),
		Liquidatable:     accrual.BelowRatio(ratio, params.MinCollateralRatio),
		Price:            price.Price,
		Timestamp:        price.Timestamp,
	}, nil
}

// LoanResult is the outcome of a loan operation.
type LoanResult struct {
	// Loan is the successor loan; nil once the loan is closed.
	Loan   *Loan              `json:"loan,omitempty"`
	States []State            `json:"states"`
	Tx     *compiler.TxResult `json:"tx"`
	Payout *payout.Result     `json:"payout"`
}
