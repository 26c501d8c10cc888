package codec

import (
	"encoding/binary"

	"github.com/Klingon-tech/covenantlab/internal/protoerr"
)

// Delphi oracle commitment layout, little-endian:
//
//	[4 bytes: message timestamp]
//	[2 bytes: data sequence]
//	[2 bytes: oracle use fee]
//	[4 bytes: message sequence]
//	[4 bytes: price, token units per 1e8 native units]
const DelphiCommitmentSize = 4 + 2 + 2 + 4 + 4

// DelphiCommitment is the decoded state of the price oracle NFT.
type DelphiCommitment struct {
	Timestamp       uint32 `json:"timestamp"`
	DataSequence    uint16 `json:"data_sequence"`
	UseFee          uint16 `json:"use_fee"`
	MessageSequence uint32 `json:"message_sequence"`
	Price           uint32 `json:"price"`
}

// EncodeDelphiCommitment packs c.
func EncodeDelphiCommitment(c DelphiCommitment) []byte {
	buf := make([]byte, 0, DelphiCommitmentSize)
	buf = binary.LittleEndian.AppendUint32(buf, c.Timestamp)
	buf = binary.LittleEndian.AppendUint16(buf, c.DataSequence)
	buf = binary.LittleEndian.AppendUint16(buf, c.UseFee)
	buf = binary.LittleEndian.AppendUint32(buf, c.MessageSequence)
	return binary.LittleEndian.AppendUint32(buf, c.Price)
}

// DecodeDelphiCommitment unpacks an oracle commitment.
func DecodeDelphiCommitment(b []byte) (DelphiCommitment, error) {
	if len(b) != DelphiCommitmentSize {
		return DelphiCommitment{}, protoerr.Valuef("delphi commitment must be %d bytes, got %d", DelphiCommitmentSize, len(b))
	}
	return DelphiCommitment{
		Timestamp:       binary.LittleEndian.Uint32(b[0:4]),
		DataSequence:    binary.LittleEndian.Uint16(b[4:6]),
		UseFee:          binary.LittleEndian.Uint16(b[6:8]),
		MessageSequence: binary.LittleEndian.Uint32(b[8:12]),
		Price:           binary.LittleEndian.Uint32(b[12:16]),
	}, nil
}
