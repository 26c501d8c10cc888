// Package moria drives the collateralized loan lifecycle: minting stable
// tokens against native collateral, topping up, repaying, redeeming,
// liquidating and refinancing.
package moria

import (
	"bytes"
	"fmt"
	"math/big"
	"slices"

	"github.com/Klingon-tech/covenantlab/internal/codec"
	"github.com/Klingon-tech/covenantlab/internal/compiler"
	"github.com/Klingon-tech/covenantlab/internal/payout"
	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/pkg/crypto"
	"github.com/Klingon-tech/covenantlab/pkg/numeric"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Covenant function selectors.
const (
	selMint      = 0x00
	selRepay     = 0x01
	selRedeem    = 0x02
	selLiquidate = 0x03
	selRefinance = 0x04

	selOracleUse = 0x00

	selLoanAddCollateral = 0x01
	selLoanRepay         = 0x02
	selLoanRedeem        = 0x03
	selLoanLiquidate     = 0x04
	selLoanRefinance     = 0x05
)

// Params are the protocol-wide lending rules.
type Params struct {
	// StableTokenID is the category of the minted stable token. The moria
	// covenant holds its minting NFT and unissued supply; loans are NFTs of
	// the same category.
	StableTokenID      types.TokenID
	MinMintAmount      uint64
	MaxMintAmount      uint64
	MinRateBP          uint16
	MaxRateBP          uint16
	MinCollateralRatio numeric.Fraction
}

// Validate checks the parameters for consistency.
func (p Params) Validate() error {
	if p.StableTokenID.IsNative() {
		return protoerr.Valuef("stable token id is not set")
	}
	if p.MinMintAmount == 0 || p.MinMintAmount > p.MaxMintAmount {
		return protoerr.Valuef("mint bounds [%d, %d] are invalid", p.MinMintAmount, p.MaxMintAmount)
	}
	if p.MinRateBP > p.MaxRateBP {
		return protoerr.Valuef("rate bounds [%d, %d] are invalid", p.MinRateBP, p.MaxRateBP)
	}
	if err := p.MinCollateralRatio.Validate(); err != nil {
		return fmt.Errorf("min collateral ratio: %w", err)
	}
	return nil
}

// Covenant is a protocol singleton UTXO and the script that unlocks it.
type Covenant struct {
	UTXO         types.UTXO
	RedeemScript []byte
}

func (c Covenant) check(name string) error {
	want := types.P2SH32LockingBytecode(crypto.Sha256d(c.RedeemScript))
	if len(c.RedeemScript) == 0 || !bytes.Equal(c.UTXO.Output.LockingBytecode, want) {
		return protoerr.Valuef("%s covenant does not match its redeem script", name)
	}
	return nil
}

func (c Covenant) input(sel byte) compiler.InputDescriptor {
	return compiler.InputDescriptor{
		UTXO:     c.UTXO,
		ScriptID: compiler.ScriptCovenant,
		Data:     compiler.UnlockData{RedeemScript: c.RedeemScript, Selector: []byte{sel}},
	}
}

// MutationContext is the state of one workflow. Operations take it by
// value and return its successor; the receiver is never modified.
type MutationContext struct {
	Params           Params
	Moria            Covenant
	Oracle           Covenant
	LoanRedeemScript []byte
	TxFeePerByte     numeric.Fraction
	Compiler         compiler.Compiler

	results []*compiler.TxResult
}

// Results returns the transactions produced so far in this workflow.
func (mc MutationContext) Results() []*compiler.TxResult {
	return slices.Clone(mc.results)
}

// Chain returns the transactions produced so far as one chain; each one
// spends the covenant outputs of the one before.
func (mc MutationContext) Chain() *compiler.ChainedResult {
	return &compiler.ChainedResult{Results: mc.Results()}
}

// Validate checks that the context can drive an operation.
func (mc MutationContext) Validate() error {
	if mc.Compiler == nil {
		return protoerr.Valuef("mutation context has no compiler")
	}
	if err := mc.Params.Validate(); err != nil {
		return err
	}
	if err := mc.TxFeePerByte.Validate(); err != nil {
		return fmt.Errorf("txfee per byte: %w", err)
	}
	if len(mc.LoanRedeemScript) == 0 {
		return protoerr.Valuef("loan redeem script is not set")
	}
	if err := mc.Moria.check("moria"); err != nil {
		return err
	}
	t := mc.Moria.UTXO.Output.Token
	if t == nil || t.ID != mc.Params.StableTokenID || t.NFT == nil || t.NFT.Capability != types.CapabilityMinting {
		return protoerr.Valuef("moria covenant does not hold the stable token minting nft")
	}
	if err := mc.Oracle.check("oracle"); err != nil {
		return err
	}
	_, err := mc.Price()
	return err
}

// Price decodes the oracle commitment currently in the context.
func (mc MutationContext) Price() (codec.DelphiCommitment, error) {
	t := mc.Oracle.UTXO.Output.Token
	if t == nil || t.NFT == nil {
		return codec.DelphiCommitment{}, protoerr.Valuef("oracle utxo carries no commitment")
	}
	return codec.DecodeDelphiCommitment(t.NFT.Commitment)
}

// LoanLockingBytecode is the locking bytecode every loan output uses.
func (mc MutationContext) LoanLockingBytecode() []byte {
	return types.P2SH32LockingBytecode(crypto.Sha256d(mc.LoanRedeemScript))
}

func (mc MutationContext) loanInput(l Loan, sel byte, key *crypto.PrivateKey) compiler.InputDescriptor {
	in := compiler.InputDescriptor{
		UTXO:     l.UTXO,
		ScriptID: compiler.ScriptCovenant,
		Data:     compiler.UnlockData{RedeemScript: mc.LoanRedeemScript, Selector: []byte{sel}},
	}
	if key != nil {
		in.ScriptID = compiler.ScriptCovenantOwner
		in.Data.Key = key
	}
	return in
}

// oracleSuccessor re-creates the oracle with its use fee added.
func (mc MutationContext) oracleSuccessor(price codec.DelphiCommitment) types.Output {
	out := mc.Oracle.UTXO.Output.Clone()
	out.Amount += uint64(price.UseFee)
	return out
}

// moriaSuccessor re-creates the moria covenant with its unissued supply
// moved by delta.
func (mc MutationContext) moriaSuccessor(delta *big.Int) (types.Output, error) {
	out := mc.Moria.UTXO.Output.Clone()
	reserve := new(big.Int).SetUint64(out.Token.Amount)
	next := new(big.Int).Add(reserve, delta)
	if next.Sign() < 0 {
		return types.Output{}, protoerr.Insufficient(mc.Params.StableTokenID, new(big.Int).Neg(delta), reserve)
	}
	amt, err := numeric.Uint64(next)
	if err != nil {
		return types.Output{}, err
	}
	out.Token.Amount = amt
	return out, nil
}

// settle resolves payouts for the remaining balances, compiles the
// transaction and checks that both agree on the fee.
func (mc MutationContext) settle(inputs []compiler.InputDescriptor, leading []types.Output, bal payout.Balances, rules []payout.Rule) (*compiler.TxResult, *payout.Result, error) {
	sizes, err := compiler.UnlockingSizes(mc.Compiler, inputs)
	if err != nil {
		return nil, nil, err
	}
	res, err := payout.Resolve(bal, rules, payout.Config{
		TxFeePerByte:   mc.TxFeePerByte,
		UnlockingSizes: sizes,
		LeadingOutputs: leading,
	})
	if err != nil {
		return nil, nil, err
	}

	outputs := make([]types.Output, 0, len(leading)+len(res.Payouts))
	outputs = append(outputs, leading...)
	outputs = append(outputs, res.Outputs()...)
	rate := mc.TxFeePerByte
	txr, err := mc.Compiler.Compile(&compiler.TxDescriptor{
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

// advance records txr and moves the singletons found at the given output
// indexes. A negative index leaves that covenant unchanged.
func (mc MutationContext) advance(txr *compiler.TxResult, moriaIdx, oracleIdx int) MutationContext {
	next := mc
	next.results = append(slices.Clone(mc.results), txr)
	if moriaIdx >= 0 {
		next.Moria.UTXO = txr.Output(moriaIdx)
	}
	if oracleIdx >= 0 {
		next.Oracle.UTXO = txr.Output(oracleIdx)
	}
	return next
}
