// Package wallet holds the spendable coins that fund covenant operations
// and selects among them.
package wallet

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/covenantlab/internal/compiler"
	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/pkg/crypto"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Capability is the spending method of a coin.
type Capability uint8

const (
	CapabilityP2PKH Capability = iota + 1
)

var capabilityNames = map[Capability]string{
	CapabilityP2PKH: "p2pkh",
}

func (c Capability) String() string {
	if n, ok := capabilityNames[c]; ok {
		return n
	}
	return fmt.Sprintf("capability(%d)", uint8(c))
}

// MarshalJSON encodes the capability by name.
func (c Capability) MarshalJSON() ([]byte, error) {
	n, ok := capabilityNames[c]
	if !ok {
		return nil, protoerr.NotImplementedf("coin capability %d", uint8(c))
	}
	return json.Marshal(n)
}

// SpendableCoin is a UTXO together with what is needed to spend it.
type SpendableCoin struct {
	UTXO       types.UTXO
	Capability Capability
	Key        *crypto.PrivateKey
}

// NewP2PKHCoin wraps a P2PKH UTXO owned by key.
func NewP2PKHCoin(u types.UTXO, key *crypto.PrivateKey) (SpendableCoin, error) {
	if key == nil {
		return SpendableCoin{}, protoerr.Valuef("p2pkh coin %s needs a key", u.Outpoint)
	}
	want := types.P2PKHLockingBytecode(key.PubKeyHash())
	if !bytes.Equal(u.Output.LockingBytecode, want) {
		return SpendableCoin{}, protoerr.Valuef("coin %s is not locked to the given key", u.Outpoint)
	}
	return SpendableCoin{UTXO: u.Clone(), Capability: CapabilityP2PKH, Key: key}, nil
}

// Input returns the compiler input spending the coin.
func (c SpendableCoin) Input() (compiler.InputDescriptor, error) {
	switch c.Capability {
	case CapabilityP2PKH:
		if c.Key == nil {
			return compiler.InputDescriptor{}, protoerr.Valuef("coin %s has no key", c.UTXO.Outpoint)
		}
		return compiler.InputDescriptor{
			UTXO:     c.UTXO,
			ScriptID: compiler.ScriptP2PKH,
			Data:     compiler.UnlockData{Key: c.Key},
		}, nil
	default:
		return compiler.InputDescriptor{}, protoerr.NotImplementedf("coin %s: %s", c.UTXO.Outpoint, c.Capability)
	}
}

// Inputs returns the compiler inputs for coins, in order.
func Inputs(coins []SpendableCoin) ([]compiler.InputDescriptor, error) {
	inputs := make([]compiler.InputDescriptor, 0, len(coins))
	for _, c := range coins {
		in, err := c.Input()
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}
