package crypto

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"

	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// SigHashAllForkID is the sighash type appended to transaction signatures.
const SigHashAllForkID = 0x41

// SchnorrSignatureSize is the size of a signature without the sighash byte.
const SchnorrSignatureSize = 64

// Signer signs 32-byte hashes with a secp256k1 key.
type Signer interface {
	Sign(hash []byte) ([]byte, error)
	// PublicKey returns the compressed 33-byte public key.
	PublicKey() []byte
}

// PrivateKey is a secp256k1 key used for Schnorr signing of P2PKH inputs.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey creates a new random private key.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes parses a 32-byte secret. Zero and out-of-range
// scalars are rejected instead of being reduced.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(b); overflow || s.IsZero() {
		return nil, fmt.Errorf("private key is not a valid secp256k1 scalar")
	}
	return &PrivateKey{key: secp256k1.NewPrivateKey(&s)}, nil
}

// Sign produces a 64-byte Schnorr signature over a 32-byte hash.
func (pk *PrivateKey) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	sig, err := schnorr.Sign(pk.key, hash)
	if err != nil {
		return nil, fmt.Errorf("schnorr sign: %w", err)
	}
	return sig.Serialize(), nil
}

// PublicKey returns the compressed 33-byte public key.
func (pk *PrivateKey) PublicKey() []byte {
	return pk.key.PubKey().SerializeCompressed()
}

// PubKeyHash returns the hash160 of the compressed public key.
func (pk *PrivateKey) PubKeyHash() types.PubKeyHash {
	return Hash160(pk.PublicKey())
}

// Serialize returns the 32-byte private key scalar.
func (pk *PrivateKey) Serialize() []byte {
	return pk.key.Serialize()
}

// Zero clears the key material.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// SignTx signs a transaction signature hash and appends hashType, the
// form pushed in unlocking bytecode.
func SignTx(s Signer, hash types.Hash, hashType byte) ([]byte, error) {
	sig, err := s.Sign(hash[:])
	if err != nil {
		return nil, err
	}
	return append(sig, hashType), nil
}

// VerifyTx checks a signature produced by SignTx, including its trailing
// hash type.
func VerifyTx(hash types.Hash, sig, publicKey []byte, hashType byte) bool {
	if len(sig) != SchnorrSignatureSize+1 || sig[SchnorrSignatureSize] != hashType {
		return false
	}
	return VerifySignature(hash[:], sig[:SchnorrSignatureSize], publicKey)
}

// VerifySignature checks a Schnorr signature against a 32-byte hash and a
// compressed public key. Returns false on any error.
func VerifySignature(hash, signature, publicKey []byte) bool {
	pubKey, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(hash, pubKey)
}
