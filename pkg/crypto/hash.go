// Package crypto provides the hashing and signing primitives used by the
// covenant builders.
package crypto

import (
	"crypto/sha256"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // hash160 is consensus-defined

	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Hash computes a BLAKE3-256 hash of the input data. Used for off-chain
// linkage hashes and snapshot checksums.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// Sha256d computes SHA256(SHA256(data)), the transaction and signature hash.
func Sha256d(data []byte) types.Hash {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// Hash160 computes RIPEMD160(SHA256(data)).
func Hash160(data []byte) types.PubKeyHash {
	s := sha256.Sum256(data)
	r := ripemd160.New()
	r.Write(s[:])
	var out types.PubKeyHash
	copy(out[:], r.Sum(nil))
	return out
}

// PubKeyHashFromPubKey derives the P2PKH hash of a compressed public key.
func PubKeyHashFromPubKey(pubKey []byte) types.PubKeyHash {
	return Hash160(pubKey)
}
