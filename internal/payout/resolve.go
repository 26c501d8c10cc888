package payout

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/Klingon-tech/covenantlab/internal/log"
	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/pkg/numeric"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Resolve distributes balances over rules. FIXED rules are paid first in
// rule order, then the single CHANGE rule (if any) takes the remaining
// tokens, NFTs and native value net of the transaction fee. Payouts come
// back in rule order, a CHANGE rule's outputs at its own position.
//
// Every emitted output carries at least its dust floor. Native change too
// small for its own output is placed according to the change rule's flags
// or rejected.
func Resolve(balances Balances, rules []Rule, cfg Config) (*Result, error) {
	if err := cfg.TxFeePerByte.Validate(); err != nil {
		return nil, fmt.Errorf("txfee per byte: %w", err)
	}

	bal := balances.Clone()
	if err := checkTokenBalances(bal); err != nil {
		return nil, err
	}

	res := &Result{}
	var (
		change    *ChangeRule
		changeIdx int
	)
	for i, r := range rules {
		switch r := r.(type) {
		case FixedRule:
			out, err := payFixed(&bal, r, cfg)
			if err != nil {
				return nil, fmt.Errorf("rule %d: %w", i, err)
			}
			res.Payouts = append(res.Payouts, Payout{Output: out, RuleIndex: i, SpendingParameters: r.SpendingParameters})
		case ChangeRule:
			if change != nil {
				return nil, protoerr.Valuef("rule %d: only one change rule is allowed", i)
			}
			c := r
			change, changeIdx = &c, i
		case nil:
			return nil, protoerr.Valuef("rule %d is nil", i)
		default:
			return nil, protoerr.NotImplementedf("rule %d: unsupported rule type %T", i, r)
		}
	}

	var err error
	if change == nil {
		res, err = finishWithoutChange(bal, res, cfg)
	} else {
		res, err = finishWithChange(bal, res, change, changeIdx, cfg)
	}
	if err != nil {
		return nil, err
	}
	// Outputs follow rule order; the fee does not depend on it.
	sort.SliceStable(res.Payouts, func(i, j int) bool {
		return res.Payouts[i].RuleIndex < res.Payouts[j].RuleIndex
	})
	return res, nil
}

func checkTokenBalances(bal Balances) error {
	for id, v := range bal.Tokens {
		if id.IsNative() {
			return protoerr.Valuef("native balance listed as a token")
		}
		if v.Sign() < 0 {
			return protoerr.Insufficient(id, new(big.Int).Neg(v), new(big.Int))
		}
	}
	return nil
}

func payFixed(bal *Balances, r FixedRule, cfg Config) (types.Output, error) {
	if len(r.LockingBytecode) == 0 {
		return types.Output{}, protoerr.Valuef("fixed payout has no locking bytecode")
	}
	out := types.Output{LockingBytecode: bytes.Clone(r.LockingBytecode)}

	if r.Token != nil {
		td, err := fixedToken(r.Token)
		if err != nil {
			return types.Output{}, err
		}
		out.Token = td
	}

	switch {
	case r.UseMin:
		out.Amount = cfg.minAmount(out)
	case r.Amount == nil:
		return types.Output{}, protoerr.Valuef("fixed payout needs an amount or the min sentinel")
	default:
		amt, err := numeric.Uint64(r.Amount)
		if err != nil {
			return types.Output{}, err
		}
		if floor := cfg.minAmount(out); amt < floor {
			return types.Output{}, protoerr.Valuef("fixed payout of %d is below the dust floor %d", amt, floor)
		}
		out.Amount = amt
	}

	if t := out.Token; t != nil {
		if t.Amount > 0 {
			need := new(big.Int).SetUint64(t.Amount)
			if have := bal.Token(t.ID); have.Cmp(need) < 0 {
				return types.Output{}, protoerr.Insufficient(t.ID, need, have)
			}
			bal.AddToken(t.ID, new(big.Int).Neg(need))
		}
		if t.NFT != nil && !bal.takeNFT(t.ID, t.NFT) {
			return types.Output{}, protoerr.Insufficient(t.ID, big.NewInt(1), new(big.Int))
		}
	}

	need := new(big.Int).SetUint64(out.Amount)
	if have := bal.Token(types.NativeTokenID); have.Cmp(need) < 0 {
		return types.Output{}, protoerr.Insufficient(types.NativeTokenID, need, have)
	}
	bal.AddNative(new(big.Int).Neg(need))
	return out, nil
}

func fixedToken(t *TokenAmount) (*types.TokenData, error) {
	if t.ID.IsNative() {
		return nil, protoerr.Valuef("token payout must name a token category")
	}
	td := &types.TokenData{ID: t.ID}
	if t.Amount != nil {
		amt, err := numeric.Uint64(t.Amount)
		if err != nil {
			return nil, err
		}
		td.Amount = amt
	}
	if t.NFT != nil {
		if !t.NFT.Capability.Valid() {
			return nil, protoerr.Valuef("invalid nft capability %d", t.NFT.Capability)
		}
		td.NFT = t.NFT.Clone()
	}
	if td.Amount == 0 && td.NFT == nil {
		return nil, protoerr.Valuef("token payout of %s carries nothing", t.ID)
	}
	return td, nil
}

// finishWithoutChange settles the fee when no change rule exists. Leftover
// tokens would be burned implicitly, so they are refused.
func finishWithoutChange(bal Balances, res *Result, cfg Config) (*Result, error) {
	for _, id := range sortedTokenIDs(bal.Tokens) {
		if v := bal.Tokens[id]; v.Sign() > 0 {
			return nil, protoerr.BurnToken(id, "%s of %s left without a change rule", v, id)
		}
	}
	if len(bal.NFTs) > 0 {
		return nil, protoerr.BurnNFT(bal.NFTs[0].ID, "nft of %s left without a change rule", bal.NFTs[0].ID)
	}

	fee := cfg.fee(res.Outputs())
	rem := new(big.Int).Sub(bal.Native, fee)
	if rem.Sign() < 0 {
		return nil, protoerr.Insufficient(types.NativeTokenID, fee, bal.Native)
	}
	floor := new(big.Int).SetUint64(cfg.minAmount(types.Output{LockingBytecode: make([]byte, 25)}))
	if rem.Cmp(floor) >= 0 {
		return nil, protoerr.Valuef("native remainder %s needs a change rule", rem)
	}
	res.TxFee = fee.Add(fee, rem)
	return res, nil
}

func finishWithChange(bal Balances, res *Result, change *ChangeRule, idx int, cfg Config) (*Result, error) {
	var tokenChange []int

	emit := func(candidate types.Output) error {
		lock, err := changeLockingBytecode(change, candidate)
		if err != nil {
			return err
		}
		candidate.LockingBytecode = lock
		candidate.Amount = cfg.tokenOutputAmount(candidate)

		if change.ShouldBurn != nil {
			d := change.ShouldBurn(candidate.Clone())
			if d.IsBurn() {
				res.Burned = append(res.Burned, *candidate.Token.Clone())
				return nil
			}
			if !sameToken(d.output.Token, candidate.Token) {
				return protoerr.InvalidStatef("keep decision altered the token of %s", candidate.Token.ID)
			}
			if len(d.output.LockingBytecode) == 0 {
				return protoerr.Valuef("keep decision for %s has no locking bytecode", candidate.Token.ID)
			}
			if floor := cfg.minAmount(d.output); d.output.Amount < floor {
				return protoerr.Valuef("keep decision for %s is below the dust floor %d", candidate.Token.ID, floor)
			}
			candidate = d.output.Clone()
		}

		bal.AddNative(new(big.Int).Neg(new(big.Int).SetUint64(candidate.Amount)))
		tokenChange = append(tokenChange, len(res.Payouts))
		res.Payouts = append(res.Payouts, Payout{Output: candidate, RuleIndex: idx, SpendingParameters: change.SpendingParameters})
		return nil
	}

	for _, id := range sortedTokenIDs(bal.Tokens) {
		v := bal.Tokens[id]
		if v.Sign() == 0 {
			continue
		}
		amt, err := numeric.Uint64(v)
		if err != nil {
			return nil, err
		}
		if err := emit(types.Output{Token: &types.TokenData{ID: id, Amount: amt}}); err != nil {
			return nil, err
		}
	}
	for _, n := range bal.NFTs {
		if err := emit(types.Output{Token: &types.TokenData{ID: n.ID, NFT: n.NFT.Clone()}}); err != nil {
			return nil, err
		}
	}

	native := bal.Native
	mixAlways := change.AllowMixingNativeAndToken && len(tokenChange) > 0

	if !mixAlways {
		candidate := types.Output{}
		lock, err := changeLockingBytecode(change, candidate)
		if err != nil {
			return nil, err
		}
		candidate.LockingBytecode = lock

		fee := cfg.fee(append(res.Outputs(), candidate))
		rem := new(big.Int).Sub(native, fee)
		if rem.Sign() >= 0 && rem.Cmp(new(big.Int).SetUint64(cfg.minAmount(candidate))) >= 0 {
			amt, err := numeric.Uint64(rem)
			if err != nil {
				return nil, err
			}
			candidate.Amount = amt
			res.Payouts = append(res.Payouts, Payout{Output: candidate, RuleIndex: idx, SpendingParameters: change.SpendingParameters})
			res.TxFee = fee
			return res, nil
		}
	}

	fee := cfg.fee(res.Outputs())
	rem := new(big.Int).Sub(native, fee)
	if rem.Sign() < 0 {
		return nil, protoerr.Insufficient(types.NativeTokenID, fee, native)
	}

	switch {
	case rem.Sign() == 0:
	case mixAlways:
		if err := addNative(&res.Payouts[tokenChange[0]].Output, rem); err != nil {
			return nil, err
		}
	case change.AddChangeToTxfeeWhenBCHChangeIsDust:
		log.Payout.Debug().Str("remainder", rem.String()).Msg("dust change added to fee")
		fee.Add(fee, rem)
	case change.AllowMixingNativeAndTokenWhenBCHChangeIsDust && len(tokenChange) > 0:
		log.Payout.Debug().Str("remainder", rem.String()).Msg("dust change merged into token change")
		if err := addNative(&res.Payouts[tokenChange[0]].Output, rem); err != nil {
			return nil, err
		}
	default:
		return nil, protoerr.Valuef("native change of %s is below the dust floor and cannot be placed", rem)
	}

	res.TxFee = fee
	return res, nil
}

func changeLockingBytecode(change *ChangeRule, candidate types.Output) ([]byte, error) {
	if change.GenerateChangeLockingBytecodeForOutput != nil {
		lock, err := change.GenerateChangeLockingBytecodeForOutput(candidate.Clone())
		if err != nil {
			return nil, fmt.Errorf("generate change locking bytecode: %w", err)
		}
		if len(lock) == 0 {
			return nil, protoerr.Valuef("change locking bytecode generator returned nothing")
		}
		return lock, nil
	}
	if len(change.LockingBytecode) == 0 {
		return nil, protoerr.Valuef("change rule has no locking bytecode")
	}
	return bytes.Clone(change.LockingBytecode), nil
}

func addNative(out *types.Output, v *big.Int) error {
	sum := new(big.Int).Add(new(big.Int).SetUint64(out.Amount), v)
	amt, err := numeric.Uint64(sum)
	if err != nil {
		return err
	}
	out.Amount = amt
	return nil
}

func sameToken(a, b *types.TokenData) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ID != b.ID || a.Amount != b.Amount {
		return false
	}
	if (a.NFT == nil) != (b.NFT == nil) {
		return false
	}
	if a.NFT == nil {
		return true
	}
	return a.NFT.Capability == b.NFT.Capability && bytes.Equal(a.NFT.Commitment, b.NFT.Commitment)
}

func sortedTokenIDs(m map[types.TokenID]*big.Int) []types.TokenID {
	ids := make([]types.TokenID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })
	return ids
}
