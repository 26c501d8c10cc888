package router

import (
	"math/big"
	"sort"

	"github.com/Klingon-tech/covenantlab/internal/codec"
	"github.com/Klingon-tech/covenantlab/internal/log"
	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/pkg/numeric"
	"github.com/Klingon-tech/covenantlab/pkg/tx"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

var rateDenominator = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// RateDenominator returns the denominator of every summary rate.
func RateDenominator() *big.Int {
	return new(big.Int).Set(rateDenominator)
}

// TradeEntry is one fill against one pool.
type TradeEntry struct {
	SupplyTokenID types.TokenID `json:"supply_token_id"`
	Supply        *big.Int      `json:"supply"`
	DemandTokenID types.TokenID `json:"demand_token_id"`
	Demand        *big.Int      `json:"demand"`
	TradeFee      *big.Int      `json:"trade_fee"`
	Pool          Pool          `json:"pool"`
}

// TradeSummary aggregates the entries of a trade.
type TradeSummary struct {
	Supply   *big.Int `json:"supply"`
	Demand   *big.Int `json:"demand"`
	TradeFee *big.Int `json:"trade_fee"`
	// Rate is supply per unit of demand over RateDenominator, rounded up.
	Rate numeric.Fraction `json:"rate"`
	// EstimatedTxFee covers the pool inputs and outputs only; nil when no
	// fee rate was given.
	EstimatedTxFee *big.Int `json:"estimated_tx_fee,omitempty"`
}

// TradeResult is a routed trade.
type TradeResult struct {
	Entries []TradeEntry `json:"entries"`
	Summary TradeSummary `json:"summary"`
}

// fill is the running allocation against one side.
type fill struct {
	sd     *side
	demand *big.Int
}

// sides builds the trade view of every pool, ordered by spot price with
// ties kept in input order.
func sides(supplyID, demandID types.TokenID, pools []Pool) ([]*side, error) {
	out := make([]*side, 0, len(pools))
	for _, p := range pools {
		sd, err := newSide(p, supplyID, demandID)
		if err != nil {
			return nil, err
		}
		out = append(out, sd)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a := new(big.Int).Mul(out[i].s, out[j].d)
		b := new(big.Int).Mul(out[j].s, out[i].d)
		return a.Cmp(b) < 0
	})
	return out, nil
}

// demandAtRate returns the largest demand after which the pool's marginal
// price (s + supply) / (d - demand) is still at most num/den.
func (sd *side) demandAtRate(num, den *big.Int) *big.Int {
	ok := func(d *big.Int) bool {
		lhs := new(big.Int).Add(sd.s, sd.supplyFor(d))
		lhs.Mul(lhs, den)
		rhs := new(big.Int).Sub(sd.d, d)
		rhs.Mul(rhs, num)
		return lhs.Cmp(rhs) <= 0
	}
	if !ok(new(big.Int)) {
		return new(big.Int)
	}
	return maxTrue(new(big.Int), sd.cap, ok)
}

// levelAtCap returns the smallest rate level, over rateDenominator, at which
// the pool is filled to capacity.
func (sd *side) levelAtCap() *big.Int {
	n := new(big.Int).Add(sd.s, sd.supplyFor(sd.cap))
	n.Mul(n, rateDenominator)
	return numeric.CeilDiv(n, new(big.Int).Sub(sd.d, sd.cap))
}

// maxTrue returns the largest v in [lo, hi] with pred(v), given pred(lo)
// holds and pred is monotone.
func maxTrue(lo, hi *big.Int, pred func(*big.Int) bool) *big.Int {
	lo, hi = new(big.Int).Set(lo), new(big.Int).Set(hi)
	for lo.Cmp(hi) < 0 {
		mid := new(big.Int).Add(lo, hi)
		mid.Add(mid, one)
		mid.Rsh(mid, 1)
		if pred(mid) {
			lo = mid
		} else {
			hi = mid.Sub(mid, one)
		}
	}
	return lo
}

// minTrue returns the smallest v in [lo, hi] with pred(v), given pred(hi)
// holds and pred is monotone.
func minTrue(lo, hi *big.Int, pred func(*big.Int) bool) *big.Int {
	lo, hi = new(big.Int).Set(lo), new(big.Int).Set(hi)
	for lo.Cmp(hi) < 0 {
		mid := new(big.Int).Add(lo, hi)
		mid.Rsh(mid, 1)
		if pred(mid) {
			hi = mid
		} else {
			lo = mid.Add(mid, one)
		}
	}
	return lo
}

func allocateAtLevel(ss []*side, level *big.Int) []fill {
	fills := make([]fill, len(ss))
	for i, sd := range ss {
		fills[i] = fill{sd: sd, demand: sd.demandAtRate(level, rateDenominator)}
	}
	return fills
}

func totalDemand(fills []fill) *big.Int {
	total := new(big.Int)
	for _, f := range fills {
		total.Add(total, f.demand)
	}
	return total
}

func totalSupply(fills []fill) *big.Int {
	total := new(big.Int)
	for _, f := range fills {
		total.Add(total, f.sd.supplyFor(f.demand))
	}
	return total
}

// ConstructTradeBestRateForTargetDemand fills target demand for the least
// total supply: each unit of demand goes to the pool whose next unit is
// cheapest. If the pools cannot cover target, every pool is filled to
// capacity.
func ConstructTradeBestRateForTargetDemand(supplyID, demandID types.TokenID, target *big.Int, pools []Pool, txFeePerByte *numeric.Fraction) (*TradeResult, error) {
	if target == nil || target.Sign() <= 0 {
		return nil, protoerr.Valuef("target demand must be positive, got %v", target)
	}
	defer log.Timed(log.Router, "best rate route")()
	ss, err := sides(supplyID, demandID, pools)
	if err != nil {
		return nil, err
	}

	capacity := new(big.Int)
	for _, sd := range ss {
		capacity.Add(capacity, sd.cap)
	}

	var fills []fill
	if capacity.Cmp(target) <= 0 {
		log.Router.Debug().Str("target", target.String()).Str("capacity", capacity.String()).Msg("partial fill at pool capacity")
		fills = make([]fill, len(ss))
		for i, sd := range ss {
			fills[i] = fill{sd: sd, demand: new(big.Int).Set(sd.cap)}
		}
	} else {
		fills = bestRateFills(ss, target)
	}
	return buildResult(fills, txFeePerByte)
}

// ConstructTradeAvailableAmountBelowTargetRate fills each pool only while
// its marginal price stays at or below rate.
func ConstructTradeAvailableAmountBelowTargetRate(supplyID, demandID types.TokenID, rate numeric.Fraction, pools []Pool, txFeePerByte *numeric.Fraction) (*TradeResult, error) {
	if err := checkRate(rate); err != nil {
		return nil, err
	}
	ss, err := sides(supplyID, demandID, pools)
	if err != nil {
		return nil, err
	}
	fills := make([]fill, len(ss))
	for i, sd := range ss {
		fills[i] = fill{sd: sd, demand: sd.demandAtRate(rate.Numerator, rate.Denominator)}
	}
	return buildResult(fills, txFeePerByte)
}

// ConstructTradeAvailableAmountForTargetAvgRate fills as much as possible
// while the volume-weighted average price stays at or below rate. Pools are
// first raised to a common marginal level, then extended one by one in
// spot-price order.
func ConstructTradeAvailableAmountForTargetAvgRate(supplyID, demandID types.TokenID, rate numeric.Fraction, pools []Pool, txFeePerByte *numeric.Fraction) (*TradeResult, error) {
	if err := checkRate(rate); err != nil {
		return nil, err
	}
	ss, err := sides(supplyID, demandID, pools)
	if err != nil {
		return nil, err
	}

	within := func(supply, demand *big.Int) bool {
		lhs := new(big.Int).Mul(supply, rate.Denominator)
		rhs := new(big.Int).Mul(demand, rate.Numerator)
		return lhs.Cmp(rhs) <= 0
	}

	maxLevel := new(big.Int)
	for _, sd := range ss {
		if sd.cap.Sign() > 0 {
			if l := sd.levelAtCap(); l.Cmp(maxLevel) > 0 {
				maxLevel = l
			}
		}
	}
	level := maxTrue(new(big.Int), maxLevel, func(l *big.Int) bool {
		fills := allocateAtLevel(ss, l)
		return within(totalSupply(fills), totalDemand(fills))
	})
	fills := allocateAtLevel(ss, level)

	supply, demand := totalSupply(fills), totalDemand(fills)
	for i := range fills {
		f := &fills[i]
		base := f.sd.supplyFor(f.demand)
		room := new(big.Int).Sub(f.sd.cap, f.demand)
		if room.Sign() <= 0 {
			continue
		}
		extra := maxTrue(new(big.Int), room, func(e *big.Int) bool {
			d := new(big.Int).Add(f.demand, e)
			s := new(big.Int).Sub(supply, base)
			s.Add(s, f.sd.supplyFor(d))
			return within(s, new(big.Int).Add(demand, e))
		})
		if extra.Sign() == 0 {
			continue
		}
		f.demand.Add(f.demand, extra)
		supply.Sub(supply, base)
		supply.Add(supply, f.sd.supplyFor(f.demand))
		demand.Add(demand, extra)
	}
	log.Router.Debug().Str("level", level.String()).Str("demand", demand.String()).Msg("average rate fill")
	return buildResult(fills, txFeePerByte)
}

func checkRate(rate numeric.Fraction) error {
	if err := rate.Validate(); err != nil {
		return err
	}
	if rate.Numerator.Sign() < 0 {
		return protoerr.Valuef("rate must not be negative, got %s", rate)
	}
	return nil
}

// PoolUnlockingSize is the size of a pool's trade-mode unlocking bytecode.
var PoolUnlockingSize = 1 + codec.PoolRedeemScriptSize

func buildResult(fills []fill, txFeePerByte *numeric.Fraction) (*TradeResult, error) {
	res := &TradeResult{Summary: TradeSummary{Supply: new(big.Int), Demand: new(big.Int), TradeFee: new(big.Int)}}
	var unlocking []int
	var outputs []types.Output
	for _, f := range fills {
		if f.demand.Sign() == 0 {
			continue
		}
		supply := f.sd.supplyFor(f.demand)
		e := TradeEntry{
			SupplyTokenID: f.sd.supplyID(),
			Supply:        supply,
			DemandTokenID: f.sd.demandID(),
			Demand:        new(big.Int).Set(f.demand),
			TradeFee:      f.sd.feeFor(supply, f.demand),
			Pool:          f.sd.pool,
		}
		res.Entries = append(res.Entries, e)
		res.Summary.Supply.Add(res.Summary.Supply, e.Supply)
		res.Summary.Demand.Add(res.Summary.Demand, e.Demand)
		res.Summary.TradeFee.Add(res.Summary.TradeFee, e.TradeFee)

		out, err := e.Pool.Apply(e)
		if err != nil {
			return nil, err
		}
		unlocking = append(unlocking, PoolUnlockingSize)
		outputs = append(outputs, out)
	}
	res.Summary.Rate = SummaryRate(res.Summary.Supply, res.Summary.Demand)
	if txFeePerByte != nil {
		res.Summary.EstimatedTxFee = new(big.Int).SetUint64(tx.EstimateTxFee(unlocking, outputs, *txFeePerByte))
	}
	return res, nil
}

// SummaryRate returns ceil(supply * RateDenominator / demand) over
// RateDenominator, or zero when demand is zero.
func SummaryRate(supply, demand *big.Int) numeric.Fraction {
	if demand.Sign() == 0 {
		return numeric.Fraction{Numerator: new(big.Int), Denominator: RateDenominator()}
	}
	n := numeric.CeilDiv(new(big.Int).Mul(supply, rateDenominator), demand)
	return numeric.Fraction{Numerator: n, Denominator: RateDenominator()}
}
