package compiler

import (
	"fmt"
	"sync"

	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/pkg/tx"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Local compiles and signs transactions in process.
type Local struct {
	mu        sync.RWMutex
	templates map[ScriptID]Template
}

// NewLocal returns a compiler with the built-in templates registered.
func NewLocal() *Local {
	return &Local{
		templates: map[ScriptID]Template{
			ScriptP2PKH:         p2pkhTemplate{},
			ScriptPoolTrade:     poolTradeTemplate{},
			ScriptPoolWithdraw:  poolWithdrawTemplate{},
			ScriptCovenant:      covenantTemplate{},
			ScriptCovenantOwner: covenantTemplate{withKey: true},
		},
	}
}

// Register adds or replaces a template.
func (l *Local) Register(id ScriptID, t Template) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates[id] = t
}

func (l *Local) template(id ScriptID) (Template, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.templates[id]
	if !ok {
		return nil, protoerr.NotFoundf("script %q is not registered", id)
	}
	return t, nil
}

// UnlockingSize implements Compiler.
func (l *Local) UnlockingSize(id ScriptID, data UnlockData) (int, error) {
	t, err := l.template(id)
	if err != nil {
		return 0, err
	}
	return t.UnlockingSize(data)
}

// Compile implements Compiler. The result is checked for structure, value
// conservation and, when a rate is given, the minimum fee.
func (l *Local) Compile(desc *TxDescriptor) (*TxResult, error) {
	b := tx.NewBuilder()
	templates := make([]Template, len(desc.Inputs))
	for i, in := range desc.Inputs {
		t, err := l.template(in.ScriptID)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		templates[i] = t
		seq := in.Sequence
		if seq == 0 {
			seq = tx.DefaultSequence
		}
		b.AddInputWithSequence(in.UTXO.Outpoint, seq)
	}
	for _, out := range desc.Outputs {
		b.AddOutput(out.Clone())
	}
	b.SetLockTime(desc.LockTime)
	t := b.Build()

	if err := t.Validate(); err != nil {
		return nil, protoerr.Valuef("compile: %v", err)
	}

	for i, in := range desc.Inputs {
		unlocking, err := templates[i].Unlock(t, i, in.UTXO.Output, in.Data)
		if err != nil {
			return nil, fmt.Errorf("unlock input %d: %w", i, err)
		}
		want, err := templates[i].UnlockingSize(in.Data)
		if err != nil {
			return nil, err
		}
		if len(unlocking) != want {
			return nil, protoerr.InvalidStatef("input %d: unlocking size %d, estimated %d", i, len(unlocking), want)
		}
		t.Inputs[i].UnlockingBytecode = unlocking
	}

	spent := desc.Spent()
	fee, err := t.Fee(spent)
	if err != nil {
		return nil, protoerr.InvalidStatef("compile: %v", err)
	}
	if err := t.CheckConservation(spent, fee, desc.Declared); err != nil {
		return nil, protoerr.InvalidStatef("compile: %v", err)
	}
	if desc.TxFeePerByte != nil {
		if req := tx.RequiredFee(t, *desc.TxFeePerByte); fee < req {
			return nil, protoerr.InvalidStatef("compile: fee %d below required %d", fee, req)
		}
	}

	return newTxResult(t, fee), nil
}

func newTxResult(t *tx.Transaction, fee uint64) *TxResult {
	raw := t.Serialize()
	hash := t.Hash()
	outs := make([]types.UTXO, len(t.Outputs))
	for i, o := range t.Outputs {
		outs[i] = types.UTXO{
			Outpoint: types.Outpoint{TxID: hash, Index: uint32(i)},
			Output:   o.Clone(),
		}
	}
	return &TxResult{Transaction: t, Raw: raw, Hash: hash, TxFee: fee, Outputs: outs}
}
