package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// PubKeyHashSize is the length of a public-key hash in bytes.
const PubKeyHashSize = 20

// PubKeyHash is a hash160 of a compressed public key.
type PubKeyHash [PubKeyHashSize]byte

// IsZero returns true if the hash is all zeros.
func (p PubKeyHash) IsZero() bool {
	return p == PubKeyHash{}
}

// String returns the hex-encoded hash.
func (p PubKeyHash) String() string {
	return hex.EncodeToString(p[:])
}

// Bytes returns a copy of the hash as a byte slice.
func (p PubKeyHash) Bytes() []byte {
	b := make([]byte, PubKeyHashSize)
	copy(b, p[:])
	return b
}

// MarshalJSON encodes the hash as a hex string.
func (p PubKeyHash) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a hex string into a public-key hash.
func (p *PubKeyHash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*p = PubKeyHash{}
		return nil
	}
	parsed, err := HexToPubKeyHash(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// HexToPubKeyHash converts 40 hex characters to a PubKeyHash.
func HexToPubKeyHash(s string) (PubKeyHash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PubKeyHash{}, fmt.Errorf("invalid hex: %w", err)
	}
	return PubKeyHashFromBytes(b)
}

// PubKeyHashFromBytes copies b into a PubKeyHash.
func PubKeyHashFromBytes(b []byte) (PubKeyHash, error) {
	if len(b) != PubKeyHashSize {
		return PubKeyHash{}, fmt.Errorf("pubkey hash must be %d bytes, got %d", PubKeyHashSize, len(b))
	}
	var p PubKeyHash
	copy(p[:], b)
	return p, nil
}
