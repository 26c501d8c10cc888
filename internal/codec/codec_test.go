package codec

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

var testPKH = []byte{
	0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a,
	0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11, 0x12, 0x13, 0x14,
}

func TestPoolRedeemScriptRoundTrip(t *testing.T) {
	redeem, err := BuildPoolRedeemScript(testPKH)
	require.NoError(t, err)
	require.Len(t, redeem, PoolRedeemScriptSize)
	require.Equal(t, 69, PoolRedeemScriptSize)

	params, ok := ParsePoolRedeemScript(redeem)
	require.True(t, ok)
	require.Equal(t, PoolV0, params.Version)
	require.Equal(t, testPKH, params.WithdrawPKH[:])
}

func TestBuildPoolRedeemScriptBadPKH(t *testing.T) {
	for _, n := range []int{0, 19, 21, 32} {
		_, err := BuildPoolRedeemScript(make([]byte, n))
		require.ErrorIs(t, err, protoerr.ErrValue, "len %d", n)
	}
}

func TestParsePoolRedeemScriptTampered(t *testing.T) {
	redeem, err := BuildPoolRedeemScript(testPKH)
	require.NoError(t, err)

	cases := map[string][]byte{
		"prefix":     flip(redeem, 0),
		"suffix":     flip(redeem, len(redeem)-1),
		"mid-suffix": flip(redeem, 30),
		"short":      redeem[:len(redeem)-1],
		"long":       append(append([]byte{}, redeem...), 0x00),
		"empty":      nil,
	}
	for name, b := range cases {
		_, ok := ParsePoolRedeemScript(b)
		require.False(t, ok, name)
	}

	// The pkh region is free data.
	_, ok := ParsePoolRedeemScript(flip(redeem, 10))
	require.True(t, ok)
}

func TestParsePoolUnlockingBytecode(t *testing.T) {
	redeem, err := BuildPoolRedeemScript(testPKH)
	require.NoError(t, err)

	params, purpose, ok := ParsePoolUnlockingBytecode(PoolUnlockingBytecode(redeem))
	require.True(t, ok)
	require.Equal(t, PurposeTrade, purpose)
	require.Equal(t, testPKH, params.WithdrawPKH[:])

	sig := bytes.Repeat([]byte{0xaa}, 65)
	pub := bytes.Repeat([]byte{0x02}, 33)
	params, purpose, ok = ParsePoolUnlockingBytecode(PoolWithdrawUnlockingBytecode(sig, pub, redeem))
	require.True(t, ok)
	require.Equal(t, PurposeWithdraw, purpose)
	require.Equal(t, "withdraw", purpose.String())
	require.Equal(t, testPKH, params.WithdrawPKH[:])
}

func TestParsePoolUnlockingBytecodeNoMatch(t *testing.T) {
	redeem, err := BuildPoolRedeemScript(testPKH)
	require.NoError(t, err)
	unlock := PoolUnlockingBytecode(redeem)

	_, _, ok := ParsePoolUnlockingBytecode(flip(unlock, 5))
	require.False(t, ok)

	_, _, ok = ParsePoolUnlockingBytecode(unlock[:20])
	require.False(t, ok)

	// Garbage in front that is not a push sequence.
	junk := append([]byte{0x76, 0xa9}, unlock...)
	_, _, ok = ParsePoolUnlockingBytecode(junk)
	require.False(t, ok)
}

func TestPoolLockingBytecode(t *testing.T) {
	redeem, err := BuildPoolRedeemScript(testPKH)
	require.NoError(t, err)
	lock := PoolLockingBytecode(redeem)
	require.Equal(t, types.ScriptTypeP2SH32, types.ClassifyLockingBytecode(lock))
}

func TestLoanCommitmentRoundTrip(t *testing.T) {
	pkh, err := types.PubKeyHashFromBytes(testPKH)
	require.NoError(t, err)
	agent := types.Hash{0x99, 0x01}

	cases := []LoanCommitment{
		{BorrowerPKH: pkh, Principal: 50000, AnnualInterestBP: 500, Timestamp: 1749302927},
		{BorrowerPKH: pkh, Principal: ^uint64(0), AnnualInterestBP: 0xffff, Timestamp: 0xffffffff, LoanAgentHash: &agent},
		{},
	}
	for _, c := range cases {
		b := EncodeLoanCommitment(c)
		if c.LoanAgentHash != nil {
			require.Len(t, b, LoanCommitmentV1Size)
			require.Equal(t, 1, c.Version())
		} else {
			require.Len(t, b, LoanCommitmentV0Size)
			require.Equal(t, 0, c.Version())
		}
		got, err := DecodeLoanCommitment(b)
		require.NoError(t, err)
		require.Equal(t, c, got)
	}
}

func TestLoanCommitmentLayout(t *testing.T) {
	pkh, _ := types.PubKeyHashFromBytes(testPKH)
	b := EncodeLoanCommitment(LoanCommitment{BorrowerPKH: pkh, Principal: 0x0102, AnnualInterestBP: 0x0304, Timestamp: 0x05060708})
	require.Equal(t, testPKH, b[:20])
	require.Equal(t, []byte{0x02, 0x01, 0, 0, 0, 0, 0, 0}, b[20:28])
	require.Equal(t, []byte{0x04, 0x03}, b[28:30])
	require.Equal(t, []byte{0x08, 0x07, 0x06, 0x05}, b[30:34])
}

func TestDecodeLoanCommitmentBadLength(t *testing.T) {
	for _, n := range []int{0, 33, 35, 65, 67} {
		_, err := DecodeLoanCommitment(make([]byte, n))
		require.ErrorIs(t, err, protoerr.ErrValue, "len %d", n)
	}
}

func TestDecodeDelphiCommitmentVector(t *testing.T) {
	b, err := hex.DecodeString("8f3e44680000e8034cdc1100779e0000")
	require.NoError(t, err)

	c, err := DecodeDelphiCommitment(b)
	require.NoError(t, err)

	// Each field is read straight from its offset.
	require.Equal(t, uint32(b[0])|uint32(b[1])<<8|uint32(b[2])<<16|uint32(b[3])<<24, c.Timestamp)
	require.Equal(t, uint16(b[4])|uint16(b[5])<<8, c.DataSequence)
	require.Equal(t, uint16(b[6])|uint16(b[7])<<8, c.UseFee)
	require.Equal(t, uint32(b[8])|uint32(b[9])<<8|uint32(b[10])<<16, c.MessageSequence)
	require.Equal(t, uint32(b[12])|uint32(b[13])<<8, c.Price)

	require.Equal(t, uint32(1749302927), c.Timestamp)
	require.Equal(t, uint16(0), c.DataSequence)
	require.Equal(t, uint16(1000), c.UseFee)
	require.Equal(t, uint32(1170508), c.MessageSequence)
	require.Equal(t, uint32(40567), c.Price)

	require.Equal(t, b, EncodeDelphiCommitment(c))
}

func TestDecodeDelphiCommitmentBadLength(t *testing.T) {
	_, err := DecodeDelphiCommitment(make([]byte, 15))
	require.ErrorIs(t, err, protoerr.ErrValue)
	_, err = DecodeDelphiCommitment(make([]byte, 17))
	require.ErrorIs(t, err, protoerr.ErrValue)
}

func TestLoanAgentCommitment(t *testing.T) {
	var c LoanAgentCommitment
	copy(c.AgentID[:], testPKH)
	b := EncodeLoanAgentCommitment(c)
	require.Len(t, b, LoanAgentCommitmentSize)
	require.Equal(t, byte(0x01), b[0])

	got, err := DecodeLoanAgentCommitment(b)
	require.NoError(t, err)
	require.Equal(t, c, got)

	_, err = DecodeLoanAgentCommitment(flip(b, 0))
	require.ErrorIs(t, err, protoerr.ErrValue)
	_, err = DecodeLoanAgentCommitment(b[:20])
	require.ErrorIs(t, err, protoerr.ErrValue)
}

func TestLoanAgentHash(t *testing.T) {
	cat := types.TokenID{0x42}
	commitment := EncodeLoanAgentCommitment(LoanAgentCommitment{AgentID: [20]byte{0x01}})

	h1 := LoanAgentHash(cat, commitment)
	require.Equal(t, h1, LoanAgentHash(cat, commitment))
	require.NotEqual(t, h1, LoanAgentHash(types.TokenID{0x43}, commitment))
	require.NotEqual(t, h1, LoanAgentHash(cat, flip(commitment, 20)))
}

func flip(b []byte, i int) []byte {
	c := append([]byte{}, b...)
	c[i] ^= 0xff
	return c
}
