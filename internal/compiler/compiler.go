// Package compiler turns abstract transaction descriptors into signed
// transactions. Orchestrators only talk to the Compiler interface; Local is
// the in-process reference implementation.
package compiler

import (
	"encoding/hex"
	"encoding/json"

	"github.com/Klingon-tech/covenantlab/pkg/crypto"
	"github.com/Klingon-tech/covenantlab/pkg/numeric"
	"github.com/Klingon-tech/covenantlab/pkg/tx"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// ScriptID names an unlocking template known to a compiler.
type ScriptID string

// Script ids registered by NewLocal.
const (
	ScriptP2PKH         ScriptID = "p2pkh"
	ScriptPoolTrade     ScriptID = "cauldron.pool.trade"
	ScriptPoolWithdraw  ScriptID = "cauldron.pool.withdraw"
	ScriptCovenant      ScriptID = "covenant"
	ScriptCovenantOwner ScriptID = "covenant.owner"
)

// UnlockData is the wallet and covenant data a template needs.
type UnlockData struct {
	Key          crypto.Signer
	RedeemScript []byte
	// Selector picks the covenant function being invoked.
	Selector []byte
	// Args are extra pushes placed before the selector.
	Args [][]byte
}

// InputDescriptor is one input to compile.
type InputDescriptor struct {
	UTXO     types.UTXO
	ScriptID ScriptID
	Data     UnlockData
	// Sequence of zero means tx.DefaultSequence.
	Sequence uint32
}

// TxDescriptor is a transaction before compilation.
type TxDescriptor struct {
	Inputs   []InputDescriptor
	Outputs  []types.Output
	LockTime uint32
	// TxFeePerByte, when set, is the minimum fee rate the result must pay.
	TxFeePerByte *numeric.Fraction
	// Declared lists token categories with a declared mint or burn slot.
	Declared map[types.TokenID]bool
}

// Spent returns the UTXOs spent by the descriptor's inputs.
func (d *TxDescriptor) Spent() []types.UTXO {
	spent := make([]types.UTXO, len(d.Inputs))
	for i, in := range d.Inputs {
		spent[i] = in.UTXO
	}
	return spent
}

// Compiler compiles descriptors into transactions.
type Compiler interface {
	// UnlockingSize returns the exact unlocking bytecode size the given
	// template produces, for fee estimation.
	UnlockingSize(id ScriptID, data UnlockData) (int, error)
	Compile(desc *TxDescriptor) (*TxResult, error)
}

// UnlockingSizes returns the unlocking sizes of every input in inputs.
func UnlockingSizes(c Compiler, inputs []InputDescriptor) ([]int, error) {
	sizes := make([]int, len(inputs))
	for i, in := range inputs {
		n, err := c.UnlockingSize(in.ScriptID, in.Data)
		if err != nil {
			return nil, err
		}
		sizes[i] = n
	}
	return sizes, nil
}

// TxResult is a compiled transaction.
type TxResult struct {
	Transaction *tx.Transaction
	Raw         []byte
	Hash        types.Hash
	TxFee       uint64
	// Outputs are the produced outputs with their outpoints.
	Outputs []types.UTXO
}

// Output returns the produced UTXO at index i.
func (r *TxResult) Output(i int) types.UTXO {
	return r.Outputs[i].Clone()
}

type txResultJSON struct {
	Hash    types.Hash   `json:"hash"`
	Raw     string       `json:"raw"`
	Size    int          `json:"size"`
	TxFee   uint64       `json:"txfee"`
	Outputs []types.UTXO `json:"outputs"`
}

// MarshalJSON encodes the result with hex raw bytes.
func (r *TxResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(txResultJSON{
		Hash:    r.Hash,
		Raw:     hex.EncodeToString(r.Raw),
		Size:    len(r.Raw),
		TxFee:   r.TxFee,
		Outputs: r.Outputs,
	})
}

// ChainedResult is an ordered list of dependent transactions. Later
// transactions may spend outputs of earlier ones.
type ChainedResult struct {
	Results []*TxResult `json:"results"`
}

// TotalFee returns the sum of all fees in the chain.
func (c *ChainedResult) TotalFee() uint64 {
	var total uint64
	for _, r := range c.Results {
		total += r.TxFee
	}
	return total
}

// Last returns the final transaction of the chain, or nil.
func (c *ChainedResult) Last() *TxResult {
	if len(c.Results) == 0 {
		return nil
	}
	return c.Results[len(c.Results)-1]
}
