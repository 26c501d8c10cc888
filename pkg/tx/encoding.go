package tx

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Token prefix layout:
//
//	0xef | category(32) | bitfield(1) | [commitment_len(cs) | commitment] | [amount(cs)]
//
// The bitfield high nibble carries the structure flags, the low nibble the
// NFT capability.
const (
	TokenPrefixByte = 0xef

	tokenHasCommitment = 0x40
	tokenHasNFT        = 0x20
	tokenHasAmount     = 0x10
	tokenReservedBit   = 0x80
	capabilityMask     = 0x0f

	// MaxCommitmentLength bounds NFT commitments.
	MaxCommitmentLength = 128
)

// Encoding errors.
var (
	ErrTruncated          = errors.New("truncated encoding")
	ErrTrailingBytes      = errors.New("trailing bytes after transaction")
	ErrInvalidTokenPrefix = errors.New("invalid token prefix")
	ErrNonMinimalVarInt   = errors.New("non-minimal compact size")
)

// AppendCompactSize appends the Bitcoin compact-size encoding of n.
func AppendCompactSize(buf []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(buf, byte(n))
	case n <= 0xffff:
		buf = append(buf, 0xfd)
		return binary.LittleEndian.AppendUint16(buf, uint16(n))
	case n <= 0xffffffff:
		buf = append(buf, 0xfe)
		return binary.LittleEndian.AppendUint32(buf, uint32(n))
	default:
		buf = append(buf, 0xff)
		return binary.LittleEndian.AppendUint64(buf, n)
	}
}

// CompactSizeLen returns the encoded length of n.
func CompactSizeLen(n uint64) int {
	switch {
	case n < 0xfd:
		return 1
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// EncodeTokenPrefix returns the token prefix for t, or nil when t is nil.
func EncodeTokenPrefix(t *types.TokenData) []byte {
	if t == nil {
		return nil
	}
	buf := make([]byte, 0, 1+types.HashSize+1+9+MaxCommitmentLength+9)
	buf = append(buf, TokenPrefixByte)
	buf = append(buf, t.ID[:]...)
	var bits byte
	if t.NFT != nil {
		bits |= tokenHasNFT | byte(t.NFT.Capability)
		if len(t.NFT.Commitment) > 0 {
			bits |= tokenHasCommitment
		}
	}
	if t.Amount > 0 {
		bits |= tokenHasAmount
	}
	buf = append(buf, bits)
	if t.NFT != nil && len(t.NFT.Commitment) > 0 {
		buf = AppendCompactSize(buf, uint64(len(t.NFT.Commitment)))
		buf = append(buf, t.NFT.Commitment...)
	}
	if t.Amount > 0 {
		buf = AppendCompactSize(buf, t.Amount)
	}
	return buf
}

// AppendOutput appends the wire encoding of out.
func AppendOutput(buf []byte, out types.Output) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, out.Amount)
	prefix := EncodeTokenPrefix(out.Token)
	buf = AppendCompactSize(buf, uint64(len(prefix)+len(out.LockingBytecode)))
	buf = append(buf, prefix...)
	return append(buf, out.LockingBytecode...)
}

// OutputSize returns the encoded size of out in bytes.
func OutputSize(out types.Output) int {
	return len(AppendOutput(nil, out))
}

type reader struct {
	b   []byte
	pos int
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.b) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d", ErrTruncated, n, r.pos)
	}
	s := r.b[r.pos : r.pos+n]
	r.pos += n
	return s, nil
}

func (r *reader) u32() (uint32, error) {
	s, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(s), nil
}

func (r *reader) u64() (uint64, error) {
	s, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(s), nil
}

func (r *reader) compactSize() (uint64, error) {
	s, err := r.take(1)
	if err != nil {
		return 0, err
	}
	var n uint64
	switch s[0] {
	case 0xfd:
		v, err := r.take(2)
		if err != nil {
			return 0, err
		}
		n = uint64(binary.LittleEndian.Uint16(v))
	case 0xfe:
		v, err := r.take(4)
		if err != nil {
			return 0, err
		}
		n = uint64(binary.LittleEndian.Uint32(v))
	case 0xff:
		v, err := r.take(8)
		if err != nil {
			return 0, err
		}
		n = binary.LittleEndian.Uint64(v)
	default:
		return uint64(s[0]), nil
	}
	if CompactSizeLen(n) != 1+compactSizeWidth[s[0]] {
		return 0, ErrNonMinimalVarInt
	}
	return n, nil
}

var compactSizeWidth = map[byte]int{0xfd: 2, 0xfe: 4, 0xff: 8}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.compactSize()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(r.b)) {
		return nil, fmt.Errorf("%w: length %d", ErrTruncated, n)
	}
	s, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(s))
	copy(out, s)
	return out, nil
}

// decodeTokenPrefix splits a token prefix off the front of b.
func decodeTokenPrefix(b []byte) (*types.TokenData, []byte, error) {
	if len(b) == 0 || b[0] != TokenPrefixByte {
		return nil, b, nil
	}
	r := &reader{b: b, pos: 1}
	cat, err := r.take(types.HashSize)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidTokenPrefix, err)
	}
	bits, err := r.take(1)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidTokenPrefix, err)
	}
	flags := bits[0]
	capability := types.Capability(flags & capabilityMask)
	if flags&tokenReservedBit != 0 {
		return nil, nil, fmt.Errorf("%w: reserved bit set", ErrInvalidTokenPrefix)
	}
	hasNFT := flags&tokenHasNFT != 0
	if !hasNFT && (capability != 0 || flags&tokenHasCommitment != 0) {
		return nil, nil, fmt.Errorf("%w: nft fields without nft", ErrInvalidTokenPrefix)
	}
	if !hasNFT && flags&tokenHasAmount == 0 {
		return nil, nil, fmt.Errorf("%w: empty token", ErrInvalidTokenPrefix)
	}
	if !capability.Valid() {
		return nil, nil, fmt.Errorf("%w: capability %d", ErrInvalidTokenPrefix, capability)
	}

	t := &types.TokenData{}
	copy(t.ID[:], cat)
	if hasNFT {
		t.NFT = &types.NFT{Capability: capability}
		if flags&tokenHasCommitment != 0 {
			c, err := r.bytes()
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %v", ErrInvalidTokenPrefix, err)
			}
			if len(c) == 0 || len(c) > MaxCommitmentLength {
				return nil, nil, fmt.Errorf("%w: commitment length %d", ErrInvalidTokenPrefix, len(c))
			}
			t.NFT.Commitment = c
		}
	}
	if flags&tokenHasAmount != 0 {
		amt, err := r.compactSize()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidTokenPrefix, err)
		}
		if amt == 0 {
			return nil, nil, fmt.Errorf("%w: zero amount", ErrInvalidTokenPrefix)
		}
		t.Amount = amt
	}
	return t, b[r.pos:], nil
}

func (r *reader) output() (types.Output, error) {
	amount, err := r.u64()
	if err != nil {
		return types.Output{}, err
	}
	body, err := r.bytes()
	if err != nil {
		return types.Output{}, err
	}
	token, lock, err := decodeTokenPrefix(body)
	if err != nil {
		return types.Output{}, err
	}
	return types.Output{LockingBytecode: lock, Amount: amount, Token: token}, nil
}
