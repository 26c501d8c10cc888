// Package tx defines the transaction wire format, size and fee estimation,
// and the value-conservation checks applied to every built transaction.
package tx

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/covenantlab/pkg/crypto"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// DefaultVersion is the transaction version produced by the builders.
const DefaultVersion = 2

// DefaultSequence is the input sequence used when none is requested.
const DefaultSequence = 0xffffffff

// Transaction is a ledger transaction.
type Transaction struct {
	Version  uint32         `json:"version"`
	Inputs   []Input        `json:"inputs"`
	Outputs  []types.Output `json:"outputs"`
	LockTime uint32         `json:"locktime"`
}

// Input references a UTXO being spent.
type Input struct {
	PrevOut           types.Outpoint `json:"prevout"`
	UnlockingBytecode []byte         `json:"-"`
	Sequence          uint32         `json:"sequence"`
}

// inputJSON is the JSON representation of Input with hex-encoded bytecode.
type inputJSON struct {
	PrevOut           types.Outpoint `json:"prevout"`
	UnlockingBytecode string         `json:"unlocking_bytecode"`
	Sequence          uint32         `json:"sequence"`
}

// MarshalJSON encodes the input with hex-encoded unlocking bytecode.
func (in Input) MarshalJSON() ([]byte, error) {
	return json.Marshal(inputJSON{
		PrevOut:           in.PrevOut,
		UnlockingBytecode: hex.EncodeToString(in.UnlockingBytecode),
		Sequence:          in.Sequence,
	})
}

// UnmarshalJSON decodes an input with hex-encoded unlocking bytecode.
func (in *Input) UnmarshalJSON(data []byte) error {
	var j inputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	b, err := hex.DecodeString(j.UnlockingBytecode)
	if err != nil {
		return err
	}
	in.PrevOut = j.PrevOut
	in.UnlockingBytecode = b
	in.Sequence = j.Sequence
	return nil
}

// Serialize returns the wire encoding:
//
//	version(4) | cs(n_in) | [txid(32) index(4) cs(len) unlocking sequence(4)]... |
//	cs(n_out) | [amount(8) cs(len) token_prefix locking]... | locktime(4)
func (tx *Transaction) Serialize() []byte {
	return tx.appendBody(nil, false)
}

func (tx *Transaction) appendBody(buf []byte, stripUnlocking bool) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, tx.Version)

	buf = AppendCompactSize(buf, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = append(buf, in.PrevOut.TxID[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.PrevOut.Index)
		if stripUnlocking {
			buf = AppendCompactSize(buf, 0)
		} else {
			buf = AppendCompactSize(buf, uint64(len(in.UnlockingBytecode)))
			buf = append(buf, in.UnlockingBytecode...)
		}
		buf = binary.LittleEndian.AppendUint32(buf, in.Sequence)
	}

	buf = AppendCompactSize(buf, uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		buf = AppendOutput(buf, out)
	}

	return binary.LittleEndian.AppendUint32(buf, tx.LockTime)
}

// Hash computes the transaction ID, SHA256d of the serialized transaction.
func (tx *Transaction) Hash() types.Hash {
	return crypto.Sha256d(tx.Serialize())
}

// Size returns the serialized size in bytes.
func (tx *Transaction) Size() int {
	return len(tx.Serialize())
}

// SigningBytes returns the preimage signed for input idx: the transaction
// with all unlocking bytecode stripped, the input index, the spent output
// and the sighash type.
func (tx *Transaction) SigningBytes(idx int, spent types.Output, hashType byte) []byte {
	buf := tx.appendBody(nil, true)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(idx))
	buf = AppendOutput(buf, spent)
	return append(buf, hashType)
}

// SignatureHash returns SHA256d of SigningBytes.
func (tx *Transaction) SignatureHash(idx int, spent types.Output, hashType byte) types.Hash {
	return crypto.Sha256d(tx.SigningBytes(idx, spent, hashType))
}

// Decode parses a serialized transaction.
func Decode(b []byte) (*Transaction, error) {
	r := &reader{b: b}
	tx := &Transaction{}
	var err error
	if tx.Version, err = r.u32(); err != nil {
		return nil, fmt.Errorf("version: %w", err)
	}

	nIn, err := r.compactSize()
	if err != nil {
		return nil, fmt.Errorf("input count: %w", err)
	}
	if nIn > uint64(len(b)) {
		return nil, fmt.Errorf("input count %d: %w", nIn, ErrTruncated)
	}
	tx.Inputs = make([]Input, 0, nIn)
	for i := uint64(0); i < nIn; i++ {
		var in Input
		txid, err := r.take(types.HashSize)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		copy(in.PrevOut.TxID[:], txid)
		if in.PrevOut.Index, err = r.u32(); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		if in.UnlockingBytecode, err = r.bytes(); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		if in.Sequence, err = r.u32(); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		tx.Inputs = append(tx.Inputs, in)
	}

	nOut, err := r.compactSize()
	if err != nil {
		return nil, fmt.Errorf("output count: %w", err)
	}
	if nOut > uint64(len(b)) {
		return nil, fmt.Errorf("output count %d: %w", nOut, ErrTruncated)
	}
	tx.Outputs = make([]types.Output, 0, nOut)
	for i := uint64(0); i < nOut; i++ {
		out, err := r.output()
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		tx.Outputs = append(tx.Outputs, out)
	}

	if tx.LockTime, err = r.u32(); err != nil {
		return nil, fmt.Errorf("locktime: %w", err)
	}
	if r.pos != len(b) {
		return nil, fmt.Errorf("%w: %d", ErrTrailingBytes, len(b)-r.pos)
	}
	return tx, nil
}

// TotalOutputValue returns the sum of all native output amounts.
// Returns an error if the sum overflows uint64.
func (tx *Transaction) TotalOutputValue() (uint64, error) {
	var total uint64
	for i, out := range tx.Outputs {
		if total+out.Amount < total {
			return 0, fmt.Errorf("output %d: %w", i, ErrOutputOverflow)
		}
		total += out.Amount
	}
	return total, nil
}
