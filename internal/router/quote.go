package router

import (
	"math/big"

	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/pkg/numeric"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

var one = big.NewInt(1)

// PoolQuote is the result of supplying an amount to one pool.
type PoolQuote struct {
	Supply          *big.Int `json:"supply"`
	DemandBeforeFee *big.Int `json:"demand_before_fee"`
	Fee             *big.Int `json:"fee"`
	DemandAfterFee  *big.Int `json:"demand_after_fee"`
}

// fee returns floor(v * FeeBP / 10000).
func fee(v *big.Int) *big.Int {
	return numeric.FloorDiv(new(big.Int).Mul(v, feeBP), basisPoints)
}

// withFee returns v + fee(v), the native a pool gives up to pay out v.
func withFee(v *big.Int) *big.Int {
	return new(big.Int).Add(v, fee(v))
}

// lessFee returns v - fee(v), the native a pool credits when receiving v.
func lessFee(v *big.Int) *big.Int {
	return new(big.Int).Sub(v, fee(v))
}

// maxNativeOut returns the largest d with withFee(d) <= budget.
func (sd *side) maxNativeOut(budget *big.Int) *big.Int {
	if budget.Sign() <= 0 {
		return new(big.Int)
	}
	d := numeric.FloorDiv(new(big.Int).Mul(budget, basisPoints), new(big.Int).Add(basisPoints, feeBP))
	for withFee(new(big.Int).Add(d, one)).Cmp(budget) <= 0 {
		d.Add(d, one)
	}
	return d
}

// quote returns demand for a supply amount.
func (sd *side) quote(supply *big.Int) PoolQuote {
	q := PoolQuote{Supply: new(big.Int).Set(supply)}
	if sd.nativeDemand {
		// Native released before the fee is taken out of it.
		t := new(big.Int).Add(sd.t, supply)
		before := new(big.Int).Sub(sd.n, numeric.CeilDiv(sd.k, t))
		after := sd.maxNativeOut(before)
		q.DemandAfterFee = after
		q.Fee = fee(after)
		q.DemandBeforeFee = new(big.Int).Add(after, q.Fee)
		return q
	}
	q.Fee = fee(supply)
	n := new(big.Int).Add(sd.n, supply)
	n.Sub(n, q.Fee)
	out := new(big.Int).Sub(sd.t, numeric.CeilDiv(sd.k, n))
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	q.DemandBeforeFee = out
	q.DemandAfterFee = new(big.Int).Set(out)
	return q
}

// supplyFor returns the least supply that yields at least demand. demand
// must not exceed sd.cap.
func (sd *side) supplyFor(demand *big.Int) *big.Int {
	if demand.Sign() == 0 {
		return new(big.Int)
	}
	if sd.nativeDemand {
		m := new(big.Int).Sub(sd.n, withFee(demand))
		t := numeric.CeilDiv(sd.k, m)
		return t.Sub(t, sd.t)
	}
	r := numeric.CeilDiv(sd.k, new(big.Int).Sub(sd.t, demand))
	b := r.Sub(r, sd.n)
	if b.Sign() <= 0 {
		return new(big.Int)
	}
	s := numeric.CeilDiv(new(big.Int).Mul(b, basisPoints), new(big.Int).Sub(basisPoints, feeBP))
	for s.Sign() > 0 && lessFee(new(big.Int).Sub(s, one)).Cmp(b) >= 0 {
		s.Sub(s, one)
	}
	return s
}

// feeFor returns the native fee of a fill.
func (sd *side) feeFor(supply, demand *big.Int) *big.Int {
	if sd.nativeDemand {
		return fee(demand)
	}
	return fee(supply)
}

// Quote quotes supplying amount of supplyID to p. It fails like
// SupplyForDemand when the demand would exceed the pool's capacity above
// its minimum reserves.
func Quote(p Pool, supplyID types.TokenID, amount *big.Int) (PoolQuote, error) {
	if amount.Sign() < 0 {
		return PoolQuote{}, protoerr.Valuef("supply must not be negative, got %s", amount)
	}
	demandID := p.TokenID()
	if !supplyID.IsNative() {
		demandID = types.NativeTokenID
	}
	sd, err := newSide(p, supplyID, demandID)
	if err != nil {
		return PoolQuote{}, err
	}
	q := sd.quote(amount)
	if q.DemandAfterFee.Cmp(sd.cap) > 0 {
		return PoolQuote{}, protoerr.Valuef("supply %s takes pool %s below its minimum reserve, at most %s can be bought", amount, p.UTXO.Outpoint, sd.cap)
	}
	return q, nil
}

// SupplyForDemand returns the least amount of the other asset that must be
// supplied to p to receive amount of demandID after fees.
func SupplyForDemand(p Pool, demandID types.TokenID, amount *big.Int) (*big.Int, error) {
	if amount.Sign() < 0 {
		return nil, protoerr.Valuef("demand must not be negative, got %s", amount)
	}
	supplyID := types.NativeTokenID
	if demandID.IsNative() {
		supplyID = p.TokenID()
	}
	sd, err := newSide(p, supplyID, demandID)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(sd.cap) > 0 {
		return nil, protoerr.Valuef("demand %s exceeds pool %s capacity %s", amount, p.UTXO.Outpoint, sd.cap)
	}
	return sd.supplyFor(amount), nil
}
