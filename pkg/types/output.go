package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Output is a transaction output: native amount, locking bytecode and an
// optional token.
type Output struct {
	LockingBytecode []byte     `json:"-"`
	Amount          uint64     `json:"amount"`
	Token           *TokenData `json:"token,omitempty"`
}

type outputJSON struct {
	LockingBytecode string     `json:"locking_bytecode"`
	Amount          uint64     `json:"amount"`
	Token           *TokenData `json:"token,omitempty"`
}

// MarshalJSON encodes the output with hex locking bytecode.
func (o Output) MarshalJSON() ([]byte, error) {
	return json.Marshal(outputJSON{
		LockingBytecode: hex.EncodeToString(o.LockingBytecode),
		Amount:          o.Amount,
		Token:           o.Token,
	})
}

// UnmarshalJSON decodes an output with hex locking bytecode.
func (o *Output) UnmarshalJSON(data []byte) error {
	var j outputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	b, err := hex.DecodeString(j.LockingBytecode)
	if err != nil {
		return fmt.Errorf("invalid locking bytecode hex: %w", err)
	}
	o.LockingBytecode = b
	o.Amount = j.Amount
	o.Token = j.Token
	return nil
}

// Clone returns a deep copy of the output.
func (o Output) Clone() Output {
	lb := make([]byte, len(o.LockingBytecode))
	copy(lb, o.LockingBytecode)
	return Output{LockingBytecode: lb, Amount: o.Amount, Token: o.Token.Clone()}
}

// TokenAmount returns the fungible amount held for id. The native id
// returns the native amount.
func (o Output) TokenAmount(id TokenID) uint64 {
	if id.IsNative() {
		return o.Amount
	}
	if o.Token != nil && o.Token.ID == id {
		return o.Token.Amount
	}
	return 0
}

// HasNFT reports whether the output carries an NFT.
func (o Output) HasNFT() bool {
	return o.Token != nil && o.Token.NFT != nil
}

// UTXO is an unspent output together with its outpoint.
type UTXO struct {
	Outpoint    Outpoint `json:"outpoint"`
	Output      Output   `json:"output"`
	BlockHeight *uint64  `json:"block_height,omitempty"`
}

// Clone returns a deep copy of the UTXO.
func (u UTXO) Clone() UTXO {
	c := UTXO{Outpoint: u.Outpoint, Output: u.Output.Clone()}
	if u.BlockHeight != nil {
		h := *u.BlockHeight
		c.BlockHeight = &h
	}
	return c
}
