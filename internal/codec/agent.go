package codec

import (
	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/pkg/crypto"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Loan-agent NFT commitment layout:
//
//	[1 byte:   type tag, always 0x01]
//	[20 bytes: agent id]
const (
	loanAgentTag            = 0x01
	LoanAgentCommitmentSize = 1 + 20
)

// LoanAgentCommitment identifies a loan agent NFT.
type LoanAgentCommitment struct {
	AgentID [20]byte `json:"agent_id"`
}

// EncodeLoanAgentCommitment packs c.
func EncodeLoanAgentCommitment(c LoanAgentCommitment) []byte {
	buf := make([]byte, 0, LoanAgentCommitmentSize)
	buf = append(buf, loanAgentTag)
	return append(buf, c.AgentID[:]...)
}

// DecodeLoanAgentCommitment unpacks a loan agent commitment.
func DecodeLoanAgentCommitment(b []byte) (LoanAgentCommitment, error) {
	if len(b) != LoanAgentCommitmentSize {
		return LoanAgentCommitment{}, protoerr.Valuef("loan agent commitment must be %d bytes, got %d", LoanAgentCommitmentSize, len(b))
	}
	if b[0] != loanAgentTag {
		return LoanAgentCommitment{}, protoerr.Valuef("loan agent commitment tag %#x", b[0])
	}
	var c LoanAgentCommitment
	copy(c.AgentID[:], b[1:])
	return c, nil
}

// LoanAgentHash links a loan to its agent NFT: BLAKE3(category || commitment).
func LoanAgentHash(category types.TokenID, commitment []byte) types.Hash {
	buf := make([]byte, 0, types.HashSize+len(commitment))
	buf = append(buf, category[:]...)
	buf = append(buf, commitment...)
	return crypto.Hash(buf)
}
