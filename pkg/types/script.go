package types

import "bytes"

// Opcodes used by the standard locking bytecode templates.
const (
	OpDup         = 0x76
	OpHash160     = 0xa9
	OpHash256     = 0xaa
	OpEqual       = 0x87
	OpEqualVerify = 0x88
	OpCheckSig    = 0xac
	OpPushData1   = 0x4c
	OpPushData2   = 0x4d
)

// ScriptType identifies the shape of a locking bytecode.
type ScriptType uint8

const (
	ScriptTypeNonStandard ScriptType = 0x00
	ScriptTypeP2PKH       ScriptType = 0x01 // Pay to public key hash
	ScriptTypeP2SH20      ScriptType = 0x02 // Pay to 20-byte script hash
	ScriptTypeP2SH32      ScriptType = 0x03 // Pay to 32-byte script hash
)

// String returns a human-readable name for the script type.
func (st ScriptType) String() string {
	switch st {
	case ScriptTypeP2PKH:
		return "P2PKH"
	case ScriptTypeP2SH20:
		return "P2SH20"
	case ScriptTypeP2SH32:
		return "P2SH32"
	default:
		return "NonStandard"
	}
}

// P2PKHLockingBytecode returns OP_DUP OP_HASH160 <pkh> OP_EQUALVERIFY OP_CHECKSIG.
func P2PKHLockingBytecode(pkh PubKeyHash) []byte {
	b := make([]byte, 0, 25)
	b = append(b, OpDup, OpHash160, PubKeyHashSize)
	b = append(b, pkh[:]...)
	return append(b, OpEqualVerify, OpCheckSig)
}

// P2SH32LockingBytecode returns OP_HASH256 <h> OP_EQUAL.
func P2SH32LockingBytecode(h Hash) []byte {
	b := make([]byte, 0, 35)
	b = append(b, OpHash256, HashSize)
	b = append(b, h[:]...)
	return append(b, OpEqual)
}

// ClassifyLockingBytecode reports the template of b.
func ClassifyLockingBytecode(b []byte) ScriptType {
	switch {
	case len(b) == 25 && b[0] == OpDup && b[1] == OpHash160 && b[2] == PubKeyHashSize &&
		b[23] == OpEqualVerify && b[24] == OpCheckSig:
		return ScriptTypeP2PKH
	case len(b) == 23 && b[0] == OpHash160 && b[1] == 20 && b[22] == OpEqual:
		return ScriptTypeP2SH20
	case len(b) == 35 && b[0] == OpHash256 && b[1] == HashSize && b[34] == OpEqual:
		return ScriptTypeP2SH32
	default:
		return ScriptTypeNonStandard
	}
}

// PubKeyHashFromLockingBytecode extracts the pkh of a P2PKH locking bytecode.
func PubKeyHashFromLockingBytecode(b []byte) (PubKeyHash, bool) {
	if ClassifyLockingBytecode(b) != ScriptTypeP2PKH {
		return PubKeyHash{}, false
	}
	var p PubKeyHash
	copy(p[:], b[3:23])
	return p, true
}

// PushData returns the minimal push of data.
func PushData(data []byte) []byte {
	n := len(data)
	var b []byte
	switch {
	case n < OpPushData1:
		b = make([]byte, 0, n+1)
		b = append(b, byte(n))
	case n <= 0xff:
		b = make([]byte, 0, n+2)
		b = append(b, OpPushData1, byte(n))
	default:
		b = make([]byte, 0, n+3)
		b = append(b, OpPushData2, byte(n), byte(n>>8))
	}
	return append(b, data...)
}

// SameBytecode reports whether a and b are equal bytecode.
func SameBytecode(a, b []byte) bool {
	return bytes.Equal(a, b)
}
