// Package types defines the primitive value types shared by the covenant
// builders: hashes, token categories, outpoints, outputs and UTXOs.
package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashSize is the length of a hash in bytes.
const HashSize = 32

// Hash represents a 256-bit hash value.
type Hash [HashSize]byte

// TokenID identifies a token category. The zero value is reserved for the
// native asset.
type TokenID Hash

// NativeTokenID is the sentinel category of the native asset.
var NativeTokenID = TokenID{}

// NativeName is the textual form of NativeTokenID.
const NativeName = "native"

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the hex-encoded hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// MarshalJSON encodes the hash as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string into a hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*h = Hash{}
		return nil
	}
	decoded, err := HexToHash(s)
	if err != nil {
		return fmt.Errorf("invalid hash hex: %w", err)
	}
	*h = decoded
	return nil
}

// HexToHash converts a hex string to a Hash.
// Returns an error if the string is not exactly 64 hex characters.
func HexToHash(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// IsNative reports whether the token ID is the native-asset sentinel.
func (t TokenID) IsNative() bool {
	return t == NativeTokenID
}

// String returns the hex-encoded token ID, or NativeName for the native asset.
func (t TokenID) String() string {
	if t.IsNative() {
		return NativeName
	}
	return Hash(t).String()
}

// Compare orders token IDs bytewise. The native asset sorts first.
func (t TokenID) Compare(o TokenID) int {
	for i := range t {
		if t[i] != o[i] {
			if t[i] < o[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// MarshalJSON encodes the token ID as its string form.
func (t TokenID) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts NativeName, an empty string or 64 hex characters.
func (t *TokenID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := ParseTokenID(s)
	if err != nil {
		return err
	}
	*t = id
	return nil
}

// ParseTokenID parses NativeName (or "") as the native asset and anything
// else as a hex category.
func ParseTokenID(s string) (TokenID, error) {
	if s == "" || s == NativeName {
		return NativeTokenID, nil
	}
	h, err := HexToHash(s)
	if err != nil {
		return TokenID{}, fmt.Errorf("invalid token id: %w", err)
	}
	return TokenID(h), nil
}
