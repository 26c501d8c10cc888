// Package utxo keeps a local snapshot of protocol UTXOs: pools, the moria
// and oracle covenants, loans, and plain coins.
package utxo

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Kind tags what a stored UTXO is.
type Kind uint8

const (
	KindCoin Kind = iota + 1
	KindPool
	KindMoria
	KindOracle
	KindLoan
)

var kindNames = map[Kind]string{
	KindCoin:   "coin",
	KindPool:   "pool",
	KindMoria:  "moria",
	KindOracle: "oracle",
	KindLoan:   "loan",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind returns the kind named s.
func ParseKind(s string) (Kind, error) {
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown utxo kind %q", s)
}

// MarshalJSON encodes the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown utxo kind %d", uint8(k))
	}
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Entry is a stored UTXO. RedeemScript is set for covenant kinds.
type Entry struct {
	UTXO         types.UTXO `json:"utxo"`
	Kind         Kind       `json:"kind"`
	RedeemScript []byte     `json:"-"`
}

type entryJSON struct {
	UTXO         types.UTXO `json:"utxo"`
	Kind         Kind       `json:"kind"`
	RedeemScript string     `json:"redeem_script,omitempty"`
}

// MarshalJSON encodes the entry with a hex redeem script.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{UTXO: e.UTXO, Kind: e.Kind, RedeemScript: hex.EncodeToString(e.RedeemScript)})
}

// UnmarshalJSON decodes an entry with a hex redeem script.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var j entryJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	rs, err := hex.DecodeString(j.RedeemScript)
	if err != nil {
		return fmt.Errorf("invalid redeem script hex: %w", err)
	}
	e.UTXO, e.Kind = j.UTXO, j.Kind
	e.RedeemScript = nil
	if len(rs) > 0 {
		e.RedeemScript = rs
	}
	return nil
}

// Set is the interface for UTXO storage.
type Set interface {
	Get(outpoint types.Outpoint) (*Entry, error)
	Put(e *Entry) error
	Delete(outpoint types.Outpoint) error
	Has(outpoint types.Outpoint) (bool, error)
}
