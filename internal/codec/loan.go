package codec

import (
	"encoding/binary"

	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Loan commitment layout, little-endian:
//
//	[20 bytes: borrower pubkey hash]
//	[8 bytes:  principal]
//	[2 bytes:  annual interest, basis points]
//	[4 bytes:  origination timestamp]
//	[32 bytes: loan-agent hash, v1 only]
const (
	LoanCommitmentV0Size = types.PubKeyHashSize + 8 + 2 + 4
	LoanCommitmentV1Size = LoanCommitmentV0Size + types.HashSize
)

// LoanCommitment is the decoded state of a loan NFT.
type LoanCommitment struct {
	BorrowerPKH      types.PubKeyHash `json:"borrower_pkh"`
	Principal        uint64           `json:"principal"`
	AnnualInterestBP uint16           `json:"annual_interest_bp"`
	Timestamp        uint32           `json:"timestamp"`
	// LoanAgentHash links a v1 loan to the agent NFT that may mutate it.
	LoanAgentHash *types.Hash `json:"loan_agent_hash,omitempty"`
}

// Version returns 1 when the loan is agent-linked, else 0.
func (c LoanCommitment) Version() int {
	if c.LoanAgentHash != nil {
		return 1
	}
	return 0
}

// EncodeLoanCommitment packs c.
func EncodeLoanCommitment(c LoanCommitment) []byte {
	size := LoanCommitmentV0Size
	if c.LoanAgentHash != nil {
		size = LoanCommitmentV1Size
	}
	buf := make([]byte, 0, size)
	buf = append(buf, c.BorrowerPKH[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, c.Principal)
	buf = binary.LittleEndian.AppendUint16(buf, c.AnnualInterestBP)
	buf = binary.LittleEndian.AppendUint32(buf, c.Timestamp)
	if c.LoanAgentHash != nil {
		buf = append(buf, c.LoanAgentHash[:]...)
	}
	return buf
}

// DecodeLoanCommitment unpacks a v0 or v1 loan commitment.
func DecodeLoanCommitment(b []byte) (LoanCommitment, error) {
	if len(b) != LoanCommitmentV0Size && len(b) != LoanCommitmentV1Size {
		return LoanCommitment{}, protoerr.Valuef("loan commitment must be %d or %d bytes, got %d",
			LoanCommitmentV0Size, LoanCommitmentV1Size, len(b))
	}
	var c LoanCommitment
	off := 0
	copy(c.BorrowerPKH[:], b[off:off+types.PubKeyHashSize])
	off += types.PubKeyHashSize
	c.Principal = binary.LittleEndian.Uint64(b[off:])
	off += 8
	c.AnnualInterestBP = binary.LittleEndian.Uint16(b[off:])
	off += 2
	c.Timestamp = binary.LittleEndian.Uint32(b[off:])
	off += 4
	if len(b) == LoanCommitmentV1Size {
		var h types.Hash
		copy(h[:], b[off:])
		c.LoanAgentHash = &h
	}
	return c, nil
}
