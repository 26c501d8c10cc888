package tx

import (
	"math/big"

	"github.com/Klingon-tech/covenantlab/pkg/numeric"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Fixed size contributions, in bytes.
const (
	// BaseTxSize covers version, locktime and the two single-byte counts.
	BaseTxSize = 4 + 4 + 1 + 1

	// P2PKHUnlockingSize is push(sig+hashtype) push(pubkey).
	P2PKHUnlockingSize = 1 + 64 + 1 + 1 + 33

	// outpoint + sequence
	inputOverhead = 32 + 4 + 4

	// dustRelaySpend is the assumed size of the input that later spends an output.
	dustRelaySpend = 148
)

// InputSize returns the size of an input with unlocking bytecode of n bytes.
func InputSize(n int) int {
	return inputOverhead + CompactSizeLen(uint64(n)) + n
}

// DustAmount returns the minimum native amount out must carry to be relayed.
// A plain P2PKH output has a floor of 546.
func DustAmount(out types.Output) uint64 {
	return uint64(3 * (OutputSize(out) + dustRelaySpend))
}

// IsDust reports whether out carries less than its dust floor.
func IsDust(out types.Output) bool {
	return out.Amount < DustAmount(out)
}

// FeeForSize returns ceil(size * feePerByte).
func FeeForSize(size int, feePerByte numeric.Fraction) uint64 {
	return feePerByte.MulCeil(big.NewInt(int64(size))).Uint64()
}

// EstimateTxFee estimates the fee of a transaction from its input unlocking
// sizes and its outputs.
func EstimateTxFee(unlockingSizes []int, outputs []types.Output, feePerByte numeric.Fraction) uint64 {
	return FeeForSize(EstimateSize(unlockingSizes, outputs), feePerByte)
}

// EstimateSize returns the serialized size of a transaction with inputs of
// the given unlocking sizes and the given outputs.
func EstimateSize(unlockingSizes []int, outputs []types.Output) int {
	size := BaseTxSize - 2 + CompactSizeLen(uint64(len(unlockingSizes))) + CompactSizeLen(uint64(len(outputs)))
	for _, n := range unlockingSizes {
		size += InputSize(n)
	}
	for _, out := range outputs {
		size += OutputSize(out)
	}
	return size
}

// RequiredFee returns the exact minimum fee for a fully built transaction.
func RequiredFee(transaction *Transaction, feePerByte numeric.Fraction) uint64 {
	return FeeForSize(transaction.Size(), feePerByte)
}
