// Package codec packs and unpacks the fixed-layout covenant data: pool
// redeem scripts, loan and oracle commitments, and loan-agent NFTs.
package codec

import (
	"bytes"
	"encoding/hex"

	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/pkg/crypto"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Pool redeem script layout:
//
//	[6 bytes:  prefix, ends with a 20-byte push]
//	[20 bytes: withdraw public-key hash]
//	[43 bytes: suffix, withdraw checksig then the constant-product trade branch]
//
// The unlocking bytecode of a pool input is some optional pushes followed by
// a single push of the redeem script.
var (
	poolV0Prefix = mustHex("74926376a914")
	poolV0Suffix = mustHex("88ac67c0cec0d188c0c7c0cd88c0cfc0d288c252a269c0c6c0d095c0cc76539502e8039694c0d395a09168")
)

// PoolRedeemScriptSize is the length of a v0 pool redeem script.
var PoolRedeemScriptSize = len(poolV0Prefix) + types.PubKeyHashSize + len(poolV0Suffix)

// PoolVersion tags the pool contract revision.
type PoolVersion uint8

const PoolV0 PoolVersion = 0

// PoolParams are the parameters embedded in a pool redeem script.
type PoolParams struct {
	Version     PoolVersion      `json:"version"`
	WithdrawPKH types.PubKeyHash `json:"withdraw_pkh"`
}

// UnlockPurpose says why a pool input is being spent.
type UnlockPurpose uint8

const (
	PurposeTrade UnlockPurpose = iota + 1
	PurposeWithdraw
)

func (p UnlockPurpose) String() string {
	switch p {
	case PurposeTrade:
		return "trade"
	case PurposeWithdraw:
		return "withdraw"
	default:
		return "unknown"
	}
}

// BuildPoolRedeemScript returns the v0 pool redeem script for pkh.
func BuildPoolRedeemScript(pkh []byte) ([]byte, error) {
	if len(pkh) != types.PubKeyHashSize {
		return nil, protoerr.Valuef("withdraw pubkey hash must be %d bytes, got %d", types.PubKeyHashSize, len(pkh))
	}
	b := make([]byte, 0, PoolRedeemScriptSize)
	b = append(b, poolV0Prefix...)
	b = append(b, pkh...)
	return append(b, poolV0Suffix...), nil
}

// ParsePoolRedeemScript decodes a v0 pool redeem script. ok is false when b
// does not match the template.
func ParsePoolRedeemScript(b []byte) (PoolParams, bool) {
	if len(b) != PoolRedeemScriptSize {
		return PoolParams{}, false
	}
	pkhEnd := len(poolV0Prefix) + types.PubKeyHashSize
	if !bytes.Equal(b[:len(poolV0Prefix)], poolV0Prefix) || !bytes.Equal(b[pkhEnd:], poolV0Suffix) {
		return PoolParams{}, false
	}
	var p PoolParams
	p.Version = PoolV0
	copy(p.WithdrawPKH[:], b[len(poolV0Prefix):pkhEnd])
	return p, true
}

// PoolUnlockingBytecode returns the trade-mode unlocking bytecode: a bare
// push of the redeem script.
func PoolUnlockingBytecode(redeem []byte) []byte {
	return types.PushData(redeem)
}

// PoolWithdrawUnlockingBytecode returns <sig> <pubkey> <redeem>.
func PoolWithdrawUnlockingBytecode(sig, pubKey, redeem []byte) []byte {
	b := types.PushData(sig)
	b = append(b, types.PushData(pubKey)...)
	return append(b, types.PushData(redeem)...)
}

// PoolLockingBytecode returns the P2SH32 locking bytecode of a pool.
func PoolLockingBytecode(redeem []byte) []byte {
	return types.P2SH32LockingBytecode(crypto.Sha256d(redeem))
}

// ParsePoolUnlockingBytecode finds the pool redeem script push at the end of
// an unlocking bytecode. A push starting at offset 0 is the pool spending
// itself in a trade; a push after other data is an owner withdraw.
func ParsePoolUnlockingBytecode(b []byte) (PoolParams, UnlockPurpose, bool) {
	pushLen := 1 + PoolRedeemScriptSize
	if len(b) < pushLen {
		return PoolParams{}, 0, false
	}
	offset := len(b) - pushLen
	if b[offset] != byte(PoolRedeemScriptSize) {
		return PoolParams{}, 0, false
	}
	params, ok := ParsePoolRedeemScript(b[offset+1:])
	if !ok {
		return PoolParams{}, 0, false
	}
	if offset == 0 {
		return params, PurposeTrade, true
	}
	if !onlyPushes(b[:offset]) {
		return PoolParams{}, 0, false
	}
	return params, PurposeWithdraw, true
}

// onlyPushes reports whether b is a sequence of direct data pushes.
func onlyPushes(b []byte) bool {
	for i := 0; i < len(b); {
		op := int(b[i])
		if op == 0 || op >= types.OpPushData1 {
			return false
		}
		i += 1 + op
		if i > len(b) {
			return false
		}
	}
	return true
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
