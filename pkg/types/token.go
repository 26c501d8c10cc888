package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Capability is the permission level of an NFT.
type Capability uint8

const (
	CapabilityNone    Capability = 0x00
	CapabilityMutable Capability = 0x01
	CapabilityMinting Capability = 0x02
)

// String returns the canonical capability name.
func (c Capability) String() string {
	switch c {
	case CapabilityNone:
		return "none"
	case CapabilityMutable:
		return "mutable"
	case CapabilityMinting:
		return "minting"
	default:
		return fmt.Sprintf("capability(%d)", uint8(c))
	}
}

// Valid reports whether c is one of the defined capabilities.
func (c Capability) Valid() bool {
	return c <= CapabilityMinting
}

// MarshalJSON encodes the capability as its name.
func (c Capability) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid capability %d", uint8(c))
	}
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a capability name.
func (c *Capability) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "none":
		*c = CapabilityNone
	case "mutable":
		*c = CapabilityMutable
	case "minting":
		*c = CapabilityMinting
	default:
		return fmt.Errorf("unknown capability %q", s)
	}
	return nil
}

// NFT is the non-fungible part of a token output.
type NFT struct {
	Capability Capability `json:"capability"`
	Commitment []byte     `json:"-"`
}

type nftJSON struct {
	Capability Capability `json:"capability"`
	Commitment string     `json:"commitment"`
}

// MarshalJSON encodes the NFT with a hex commitment.
func (n NFT) MarshalJSON() ([]byte, error) {
	return json.Marshal(nftJSON{Capability: n.Capability, Commitment: hex.EncodeToString(n.Commitment)})
}

// UnmarshalJSON decodes an NFT with a hex commitment.
func (n *NFT) UnmarshalJSON(data []byte) error {
	var j nftJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	c, err := hex.DecodeString(j.Commitment)
	if err != nil {
		return fmt.Errorf("invalid commitment hex: %w", err)
	}
	n.Capability = j.Capability
	n.Commitment = c
	return nil
}

// Clone returns a deep copy of the NFT.
func (n *NFT) Clone() *NFT {
	if n == nil {
		return nil
	}
	c := make([]byte, len(n.Commitment))
	copy(c, n.Commitment)
	return &NFT{Capability: n.Capability, Commitment: c}
}

// TokenData holds token information attached to an output. ID is never the
// native sentinel.
type TokenData struct {
	ID     TokenID `json:"id"`
	Amount uint64  `json:"amount"`
	NFT    *NFT    `json:"nft,omitempty"`
}

// Clone returns a deep copy of the token data.
func (t *TokenData) Clone() *TokenData {
	if t == nil {
		return nil
	}
	return &TokenData{ID: t.ID, Amount: t.Amount, NFT: t.NFT.Clone()}
}
