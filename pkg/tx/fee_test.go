package tx

import (
	"testing"

	"github.com/Klingon-tech/covenantlab/pkg/numeric"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

func TestDustAmount(t *testing.T) {
	p2pkh := types.P2PKHLockingBytecode(testPKH)
	tests := []struct {
		name string
		out  types.Output
		want uint64
	}{
		{"p2pkh", types.Output{LockingBytecode: p2pkh}, 546},
		{"p2sh32", types.Output{LockingBytecode: types.P2SH32LockingBytecode(types.Hash{})}, 3 * (8 + 1 + 35 + 148)},
		// 0xef + 32 + bitfield + amount(1)
		{"p2pkh with fungible token", types.Output{
			LockingBytecode: p2pkh,
			Token:           &types.TokenData{ID: testCategory, Amount: 50},
		}, 3 * (8 + 1 + 35 + 25 + 148)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DustAmount(tt.out); got != tt.want {
				t.Errorf("DustAmount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsDust(t *testing.T) {
	out := types.Output{LockingBytecode: types.P2PKHLockingBytecode(testPKH), Amount: 545}
	if !IsDust(out) {
		t.Error("545 should be dust")
	}
	out.Amount = 546
	if IsDust(out) {
		t.Error("546 should not be dust")
	}
}

func TestFeeForSize(t *testing.T) {
	tests := []struct {
		name string
		size int
		rate numeric.Fraction
		want uint64
	}{
		{"zero rate", 250, numeric.NewFraction(0, 1), 0},
		{"1 sat/byte", 250, numeric.NewFraction(1, 1), 250},
		{"fractional rounds up", 250, numeric.NewFraction(1001, 1000), 251},
		{"half sat/byte", 3, numeric.NewFraction(1, 2), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FeeForSize(tt.size, tt.rate); got != tt.want {
				t.Errorf("FeeForSize(%d, %s) = %d, want %d", tt.size, tt.rate, got, tt.want)
			}
		})
	}
}

func TestEstimateSize_MatchesSerialized(t *testing.T) {
	tx := sampleTx()
	sizes := make([]int, len(tx.Inputs))
	for i, in := range tx.Inputs {
		sizes[i] = len(in.UnlockingBytecode)
	}
	if got, want := EstimateSize(sizes, tx.Outputs), tx.Size(); got != want {
		t.Errorf("EstimateSize() = %d, Size() = %d", got, want)
	}
	rate := numeric.NewFraction(1, 1)
	if EstimateTxFee(sizes, tx.Outputs, rate) != RequiredFee(tx, rate) {
		t.Error("EstimateTxFee should match RequiredFee")
	}
}

func TestInputSize(t *testing.T) {
	if got := InputSize(P2PKHUnlockingSize); got != 141 {
		t.Errorf("P2PKH input size = %d, want 141", got)
	}
}
