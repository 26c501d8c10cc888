package wallet

import (
	"errors"
	"math/big"
	"sort"

	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Coin selection errors.
var (
	ErrInsufficientFunds = protoerr.ErrInsufficientFunds
	ErrNoCoins           = errors.New("no coins available")
)

// CoinSelection holds the result of coin selection.
type CoinSelection struct {
	Inputs []SpendableCoin // Selected coins to spend.
	Total  uint64          // Sum of selected amounts of the target token.
	Change uint64          // Change = Total - target.
}

// amountOf returns what c contributes towards id. Native selection skips
// coins carrying tokens so they are not dragged into unrelated spends.
func amountOf(c SpendableCoin, id types.TokenID) uint64 {
	if id.IsNative() && c.UTXO.Output.Token != nil {
		return 0
	}
	return c.UTXO.Output.TokenAmount(id)
}

// SelectCoins chooses coins to fund target units of token id.
// It tries two strategies:
//  1. Single coin: finds the smallest single coin that covers the target (minimizes inputs).
//  2. Largest-first accumulation: greedily adds the largest coins until the target is met.
//
// Returns the strategy that produces the least change (waste).
func SelectCoins(coins []SpendableCoin, id types.TokenID, target uint64) (*CoinSelection, error) {
	if len(coins) == 0 {
		return nil, ErrNoCoins
	}
	if target == 0 {
		return nil, protoerr.Valuef("target must be positive")
	}

	// Filter out coins holding none of the token and sort ascending.
	candidates := make([]SpendableCoin, 0, len(coins))
	for _, c := range coins {
		if amountOf(c, id) > 0 {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoCoins
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return amountOf(candidates[i], id) < amountOf(candidates[j], id)
	})

	// Strategy 1: the smallest single coin that covers the target.
	var single *CoinSelection
	for _, c := range candidates {
		if v := amountOf(c, id); v >= target {
			single = &CoinSelection{
				Inputs: []SpendableCoin{c},
				Total:  v,
				Change: v - target,
			}
			break // Already sorted ascending, first match is smallest.
		}
	}

	// Strategy 2: Largest-first accumulation.
	var accum *CoinSelection
	var selected []SpendableCoin
	var total uint64
	// Iterate from largest to smallest.
	for i := len(candidates) - 1; i >= 0; i-- {
		selected = append(selected, candidates[i])
		total += amountOf(candidates[i], id)
		if total >= target {
			accum = &CoinSelection{
				Inputs: selected,
				Total:  total,
				Change: total - target,
			}
			break
		}
	}

	// Pick the best result.
	switch {
	case single != nil && accum != nil:
		// Prefer whichever produces less change (less waste).
		if single.Change <= accum.Change {
			return single, nil
		}
		return accum, nil
	case single != nil:
		return single, nil
	case accum != nil:
		return accum, nil
	default:
		return nil, protoerr.Insufficient(id, new(big.Int).SetUint64(target), totalValue(candidates, id))
	}
}

func totalValue(coins []SpendableCoin, id types.TokenID) *big.Int {
	total := new(big.Int)
	for _, c := range coins {
		total.Add(total, new(big.Int).SetUint64(amountOf(c, id)))
	}
	return total
}

// Without returns coins minus the ones in used, matched by outpoint.
func Without(coins, used []SpendableCoin) []SpendableCoin {
	skip := make(map[types.Outpoint]bool, len(used))
	for _, u := range used {
		skip[u.UTXO.Outpoint] = true
	}
	var out []SpendableCoin
	for _, c := range coins {
		if !skip[c.UTXO.Outpoint] {
			out = append(out, c)
		}
	}
	return out
}
