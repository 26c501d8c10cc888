package tx

import "github.com/Klingon-tech/covenantlab/pkg/types"

// Builder constructs transactions incrementally.
type Builder struct {
	tx *Transaction
}

// NewBuilder creates a new transaction builder.
func NewBuilder() *Builder {
	return &Builder{
		tx: &Transaction{Version: DefaultVersion},
	}
}

// AddInput adds an input referencing a previous output.
func (b *Builder) AddInput(prevOut types.Outpoint) *Builder {
	return b.AddInputWithSequence(prevOut, DefaultSequence)
}

// AddInputWithSequence adds an input with an explicit sequence number.
func (b *Builder) AddInputWithSequence(prevOut types.Outpoint, sequence uint32) *Builder {
	b.tx.Inputs = append(b.tx.Inputs, Input{PrevOut: prevOut, Sequence: sequence})
	return b
}

// AddOutput appends an output.
func (b *Builder) AddOutput(out types.Output) *Builder {
	b.tx.Outputs = append(b.tx.Outputs, out)
	return b
}

// SetUnlocking sets the unlocking bytecode of input i.
func (b *Builder) SetUnlocking(i int, unlocking []byte) *Builder {
	b.tx.Inputs[i].UnlockingBytecode = unlocking
	return b
}

// SetLockTime sets the transaction lock time.
func (b *Builder) SetLockTime(lockTime uint32) *Builder {
	b.tx.LockTime = lockTime
	return b
}

// Build returns the constructed transaction.
// Does NOT validate; call Validate or CheckConservation separately.
func (b *Builder) Build() *Transaction {
	return b.tx
}
