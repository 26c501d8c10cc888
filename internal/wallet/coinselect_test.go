package wallet

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

var native = types.NativeTokenID

func makeUTXOs(values ...uint64) []SpendableCoin {
	coins := make([]SpendableCoin, len(values))
	for i, v := range values {
		coins[i] = SpendableCoin{
			UTXO: types.UTXO{
				Outpoint: types.Outpoint{TxID: types.Hash{byte(i + 1)}, Index: 0},
				Output:   types.Output{Amount: v},
			},
			Capability: CapabilityP2PKH,
		}
	}
	return coins
}

func TestSelectCoins_ExactMatch(t *testing.T) {
	utxos := makeUTXOs(1000, 2000, 3000)
	sel, err := SelectCoins(utxos, native, 2000)
	if err != nil {
		t.Fatalf("SelectCoins: %v", err)
	}
	if sel.Total != 2000 {
		t.Errorf("total = %d, want 2000", sel.Total)
	}
	if sel.Change != 0 {
		t.Errorf("change = %d, want 0", sel.Change)
	}
	if len(sel.Inputs) != 1 {
		t.Errorf("inputs = %d, want 1 (exact single match)", len(sel.Inputs))
	}
}

func TestSelectCoins_SingleUTXO(t *testing.T) {
	utxos := makeUTXOs(5000)
	sel, err := SelectCoins(utxos, native, 3000)
	if err != nil {
		t.Fatalf("SelectCoins: %v", err)
	}
	if sel.Total != 5000 {
		t.Errorf("total = %d, want 5000", sel.Total)
	}
	if sel.Change != 2000 {
		t.Errorf("change = %d, want 2000", sel.Change)
	}
}

func TestSelectCoins_MultipleUTXOs(t *testing.T) {
	// No single UTXO covers 4000, must combine.
	utxos := makeUTXOs(1000, 2000, 1500)
	sel, err := SelectCoins(utxos, native, 4000)
	if err != nil {
		t.Fatalf("SelectCoins: %v", err)
	}
	if sel.Total < 4000 {
		t.Errorf("total = %d, should be >= 4000", sel.Total)
	}
	if len(sel.Inputs) > 1 {
		// largest-first: 2000 + 1500 + 1000 = 4500
		if sel.Total != 4500 {
			t.Errorf("total = %d, want 4500", sel.Total)
		}
		if sel.Change != 500 {
			t.Errorf("change = %d, want 500", sel.Change)
		}
	}
}

func TestSelectCoins_PrefersLessChange(t *testing.T) {
	// Single match: 5000 (change=2000). Accumulation: 3000+2000=5000 (change=2000).
	// Both same change; single wins (fewer inputs).
	utxos := makeUTXOs(1000, 2000, 3000, 5000)
	sel, err := SelectCoins(utxos, native, 3000)
	if err != nil {
		t.Fatalf("SelectCoins: %v", err)
	}
	// Should pick the single UTXO of 3000 (exact match, 0 change).
	if sel.Change != 0 {
		t.Errorf("change = %d, want 0 (exact 3000 match)", sel.Change)
	}
	if len(sel.Inputs) != 1 {
		t.Errorf("inputs = %d, want 1", len(sel.Inputs))
	}
}

func TestSelectCoins_InsufficientFunds(t *testing.T) {
	utxos := makeUTXOs(1000, 2000)
	_, err := SelectCoins(utxos, native, 5000)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got: %v", err)
	}
}

func TestSelectCoins_NoUTXOs(t *testing.T) {
	_, err := SelectCoins(nil, native, 1000)
	if !errors.Is(err, ErrNoCoins) {
		t.Errorf("expected ErrNoCoins, got: %v", err)
	}
}

func TestSelectCoins_ZeroTarget(t *testing.T) {
	utxos := makeUTXOs(1000)
	_, err := SelectCoins(utxos, native, 0)
	if err == nil {
		t.Error("zero target should fail")
	}
}

func TestSelectCoins_AllZeroValue(t *testing.T) {
	utxos := makeUTXOs(0, 0, 0)
	_, err := SelectCoins(utxos, native, 1000)
	if !errors.Is(err, ErrNoCoins) {
		t.Errorf("expected ErrNoCoins for all-zero UTXOs, got: %v", err)
	}
}

func TestSelectCoins_LargestFirst(t *testing.T) {
	// Target = 7000. No single UTXO covers it.
	// Largest-first: 5000 + 3000 = 8000 (change=1000).
	utxos := makeUTXOs(1000, 3000, 5000, 2000)
	sel, err := SelectCoins(utxos, native, 7000)
	if err != nil {
		t.Fatalf("SelectCoins: %v", err)
	}
	if sel.Total != 8000 {
		t.Errorf("total = %d, want 8000", sel.Total)
	}
	if sel.Change != 1000 {
		t.Errorf("change = %d, want 1000", sel.Change)
	}
	if len(sel.Inputs) != 2 {
		t.Errorf("inputs = %d, want 2", len(sel.Inputs))
	}
}

func TestSelectCoins_AllUTXOs(t *testing.T) {
	// Need all UTXOs to cover the target.
	utxos := makeUTXOs(1000, 2000, 3000)
	sel, err := SelectCoins(utxos, native, 6000)
	if err != nil {
		t.Fatalf("SelectCoins: %v", err)
	}
	if sel.Total != 6000 {
		t.Errorf("total = %d, want 6000", sel.Total)
	}
	if sel.Change != 0 {
		t.Errorf("change = %d, want 0", sel.Change)
	}
	if len(sel.Inputs) != 3 {
		t.Errorf("inputs = %d, want 3", len(sel.Inputs))
	}
}

func TestCoinSelection_Fields(t *testing.T) {
	utxos := makeUTXOs(5000)
	sel, _ := SelectCoins(utxos, native, 3000)
	if sel.Total != sel.Change+3000 {
		t.Error("Total should equal Change + target")
	}
}

func TestSelectCoins_TokenCategory(t *testing.T) {
	tokenA := types.TokenID{0xaa}
	coins := makeUTXOs(1000, 2000, 3000)
	coins[0].UTXO.Output.Token = &types.TokenData{ID: tokenA, Amount: 40}
	coins[1].UTXO.Output.Token = &types.TokenData{ID: tokenA, Amount: 70}

	sel, err := SelectCoins(coins, tokenA, 100)
	if err != nil {
		t.Fatalf("SelectCoins: %v", err)
	}
	if sel.Total != 110 || sel.Change != 10 || len(sel.Inputs) != 2 {
		t.Errorf("selection = total %d change %d inputs %d, want 110/10/2", sel.Total, sel.Change, len(sel.Inputs))
	}

	// Native selection ignores the token-carrying coins.
	sel, err = SelectCoins(coins, native, 2500)
	if err != nil {
		t.Fatalf("SelectCoins: %v", err)
	}
	if len(sel.Inputs) != 1 || sel.Total != 3000 {
		t.Errorf("native selection = %d inputs total %d, want the 3000 coin", len(sel.Inputs), sel.Total)
	}
}

func TestSelectCoins_ShortfallPayload(t *testing.T) {
	_, err := SelectCoins(makeUTXOs(1000, 2000), native, 5000)
	var perr *protoerr.Error
	if !errors.As(err, &perr) || perr.Funds == nil {
		t.Fatalf("expected shortfall payload, got: %v", err)
	}
	if got := perr.Funds.Missing().Int64(); got != 2000 {
		t.Errorf("missing = %d, want 2000", got)
	}
}

func TestWithout(t *testing.T) {
	coins := makeUTXOs(1, 2, 3)
	rest := Without(coins, coins[1:2])
	if len(rest) != 2 || rest[0].UTXO.Output.Amount != 1 || rest[1].UTXO.Output.Amount != 3 {
		t.Errorf("Without = %v", rest)
	}
}
