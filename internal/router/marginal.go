package router

import (
	"math/big"
	"slices"

	"github.com/Klingon-tech/covenantlab/internal/log"
	"github.com/Klingon-tech/covenantlab/pkg/numeric"
)

const (
	// exchangeWindow bounds the moves tried between two pools when
	// settling rounding, in units of demand and in supply steps.
	exchangeWindow = 4
	// exchangeRounds bounds the improving moves made per route.
	exchangeRounds = 256
)

// unitCost returns the supply the demand-th unit of demand costs, before
// rounding, as num/den. It never falls as demand grows. demand must be in
// [1, sd.cap].
func (sd *side) unitCost(demand *big.Int) (num, den *big.Int) {
	prev := new(big.Int).Sub(demand, one)
	if sd.nativeDemand {
		// Native leaves the pool with the fee on top.
		step := new(big.Int).Add(basisPoints, feeBP)
		left := func(d *big.Int) *big.Int {
			v := new(big.Int).Mul(sd.n, basisPoints)
			return v.Sub(v, new(big.Int).Mul(d, step))
		}
		num = new(big.Int).Mul(sd.k, step)
		num.Mul(num, basisPoints)
		return num, left(prev).Mul(left(prev), left(demand))
	}
	num = new(big.Int).Mul(sd.k, basisPoints)
	den = new(big.Int).Sub(basisPoints, feeBP)
	den.Mul(den, new(big.Int).Sub(sd.t, prev))
	den.Mul(den, new(big.Int).Sub(sd.t, demand))
	return num, den
}

// unitCostWithin reports whether the demand-th unit costs at most
// level/rateDenominator.
func (sd *side) unitCostWithin(demand, level *big.Int) bool {
	num, den := sd.unitCost(demand)
	num.Mul(num, rateDenominator)
	return num.Cmp(den.Mul(den, level)) <= 0
}

// demandAtUnitCost returns the largest demand whose last unit costs at most
// level/rateDenominator.
func (sd *side) demandAtUnitCost(level *big.Int) *big.Int {
	return maxTrue(new(big.Int), sd.cap, func(d *big.Int) bool {
		return d.Sign() == 0 || sd.unitCostWithin(d, level)
	})
}

// unitLevelAtCap returns the smallest level at which demandAtUnitCost
// reaches sd.cap.
func (sd *side) unitLevelAtCap() *big.Int {
	num, den := sd.unitCost(sd.cap)
	return numeric.CeilDiv(num.Mul(num, rateDenominator), den)
}

// demandFor returns the most demand supply buys, up to sd.cap.
func (sd *side) demandFor(supply *big.Int) *big.Int {
	d := sd.quote(supply).DemandAfterFee
	if d.Cmp(sd.cap) > 0 {
		d.Set(sd.cap)
	}
	return d
}

// bestRateFills splits target, which must be below the total capacity of
// ss, so that no pool pays more for its last unit than another pool would
// for its next one. Pools are raised to a common unit cost level, the
// remainder goes unit by unit to the cheapest next unit, and rounding is
// then settled by exchanges between pairs of pools.
func bestRateFills(ss []*side, target *big.Int) []fill {
	maxLevel := new(big.Int)
	for _, sd := range ss {
		if sd.cap.Sign() > 0 {
			if l := sd.unitLevelAtCap(); l.Cmp(maxLevel) > 0 {
				maxLevel = l
			}
		}
	}
	at := func(level *big.Int) []fill {
		fills := make([]fill, len(ss))
		for i, sd := range ss {
			fills[i] = fill{sd: sd, demand: sd.demandAtUnitCost(level)}
		}
		return fills
	}
	level := minTrue(new(big.Int), maxLevel, func(l *big.Int) bool {
		return totalDemand(at(l)).Cmp(target) >= 0
	})

	fills := at(new(big.Int).Sub(level, one))
	deficit := new(big.Int).Sub(target, totalDemand(fills))
	for ; deficit.Sign() > 0; deficit.Sub(deficit, one) {
		best := -1
		var bestNum, bestDen *big.Int
		for i, f := range fills {
			if f.demand.Cmp(f.sd.cap) >= 0 {
				continue
			}
			num, den := f.sd.unitCost(new(big.Int).Add(f.demand, one))
			if best < 0 || new(big.Int).Mul(num, bestDen).Cmp(new(big.Int).Mul(bestNum, den)) < 0 {
				best, bestNum, bestDen = i, num, den
			}
		}
		fills[best].demand.Add(fills[best].demand, one)
	}

	moves := 0
	for moves < exchangeRounds && exchange(fills) {
		moves++
	}
	log.Router.Debug().Str("level", level.String()).Int("pools", len(ss)).Int("exchanges", moves).Msg("best rate split")
	return fills
}

// exchange makes the first move of demand between two pools that lowers
// total supply, and reports whether it found one. Supply is rounded up per
// pool, so the split by unit cost can miss the cheapest integer split by a
// few units or by a few supply steps.
func exchange(fills []fill) bool {
	for i := range fills {
		from := &fills[i]
		if from.demand.Sign() == 0 {
			continue
		}
		fromSupply := from.sd.supplyFor(from.demand)
		var base []*big.Int
		for a := int64(1); a <= exchangeWindow; a++ {
			base = append(base, big.NewInt(a))
			// Drop to the top of a lower supply step.
			if s := new(big.Int).Sub(fromSupply, big.NewInt(a)); s.Sign() >= 0 {
				base = append(base, new(big.Int).Sub(from.demand, from.sd.demandFor(s)))
			}
		}
		for j := range fills {
			to := &fills[j]
			room := new(big.Int).Sub(to.sd.cap, to.demand)
			if i == j || room.Sign() <= 0 {
				continue
			}
			toSupply := to.sd.supplyFor(to.demand)
			moves := append([]*big.Int(nil), base...)
			for a := int64(1); a <= exchangeWindow; a++ {
				// Fill to the top of a higher supply step.
				s := new(big.Int).Add(toSupply, big.NewInt(a))
				moves = append(moves, new(big.Int).Sub(to.sd.demandFor(s), to.demand))
			}
			slices.SortFunc(moves, (*big.Int).Cmp)
			for _, m := range moves {
				if m.Sign() <= 0 || m.Cmp(from.demand) > 0 || m.Cmp(room) > 0 {
					continue
				}
				fromLeft := new(big.Int).Sub(from.demand, m)
				toLeft := new(big.Int).Add(to.demand, m)
				after := new(big.Int).Add(from.sd.supplyFor(fromLeft), to.sd.supplyFor(toLeft))
				before := new(big.Int).Add(fromSupply, toSupply)
				if after.Cmp(before) < 0 {
					from.demand, to.demand = fromLeft, toLeft
					return true
				}
			}
		}
	}
	return false
}
