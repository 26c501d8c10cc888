// Package router allocates trades across constant-product pools. It never
// mutates a Pool; every computation works on hypothetical post-trade
// reserves.
package router

import (
	"bytes"
	"math/big"

	"github.com/Klingon-tech/covenantlab/internal/codec"
	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

const (
	// FeeBP is the pool trading fee in basis points, charged on the native leg.
	FeeBP = 30
	// MinPoolNativeReserve is the native amount a pool always keeps, enough
	// to stay above the dust floor of any pool output.
	MinPoolNativeReserve = 1000
	// MinPoolTokenReserve is the token amount a pool always keeps.
	MinPoolTokenReserve = 1
)

var (
	feeBP       = big.NewInt(FeeBP)
	basisPoints = big.NewInt(10_000)
)

// Pool is a read-only snapshot of a pool UTXO: native reserve in the output
// amount, token reserve in the fungible token amount.
type Pool struct {
	Version      codec.PoolVersion `json:"version"`
	Params       codec.PoolParams  `json:"params"`
	RedeemScript []byte            `json:"redeem_script"`
	UTXO         types.UTXO        `json:"utxo"`
}

// NewPool validates u against the redeem script and returns the pool.
func NewPool(u types.UTXO, redeem []byte) (Pool, error) {
	params, ok := codec.ParsePoolRedeemScript(redeem)
	if !ok {
		return Pool{}, protoerr.Valuef("pool %s: redeem script does not match a known pool template", u.Outpoint)
	}
	if !bytes.Equal(u.Output.LockingBytecode, codec.PoolLockingBytecode(redeem)) {
		return Pool{}, protoerr.Valuef("pool %s: locking bytecode does not commit to redeem script", u.Outpoint)
	}
	t := u.Output.Token
	if t == nil || t.NFT != nil || t.Amount == 0 {
		return Pool{}, protoerr.Valuef("pool %s: must hold a fungible token reserve and no nft", u.Outpoint)
	}
	return Pool{Version: params.Version, Params: params, RedeemScript: redeem, UTXO: u}, nil
}

// TokenID returns the category of the pool's token reserve.
func (p Pool) TokenID() types.TokenID {
	return p.UTXO.Output.Token.ID
}

// NativeReserve returns the pool's native amount.
func (p Pool) NativeReserve() *big.Int {
	return new(big.Int).SetUint64(p.UTXO.Output.Amount)
}

// TokenReserve returns the pool's token amount.
func (p Pool) TokenReserve() *big.Int {
	return new(big.Int).SetUint64(p.UTXO.Output.Token.Amount)
}

// Invariant returns native * token, the value no trade may decrease.
func (p Pool) Invariant() *big.Int {
	return new(big.Int).Mul(p.NativeReserve(), p.TokenReserve())
}

// Apply returns the pool output after the trade e.
func (p Pool) Apply(e TradeEntry) (types.Output, error) {
	out := p.UTXO.Output.Clone()
	native, token := p.NativeReserve(), p.TokenReserve()
	if e.SupplyTokenID.IsNative() {
		native.Add(native, e.Supply)
		token.Sub(token, e.Demand)
	} else {
		native.Sub(native, e.Demand)
		token.Add(token, e.Supply)
	}
	if native.Sign() <= 0 || token.Sign() <= 0 || !native.IsUint64() || !token.IsUint64() {
		return types.Output{}, protoerr.InvalidStatef("pool %s: trade leaves reserves out of range", p.UTXO.Outpoint)
	}
	out.Amount = native.Uint64()
	out.Token.Amount = token.Uint64()
	return out, nil
}

// side is a pool seen from one trade direction.
type side struct {
	pool         Pool
	nativeDemand bool     // supplying tokens for native
	s, d         *big.Int // supply and demand reserves
	n, t         *big.Int // native and token reserves
	k            *big.Int
	cap          *big.Int // largest fillable demand
}

func newSide(p Pool, supplyID, demandID types.TokenID) (*side, error) {
	if supplyID == demandID {
		return nil, protoerr.Valuef("supply and demand token are both %s", supplyID)
	}
	tok := p.TokenID()
	var nativeDemand bool
	switch {
	case supplyID.IsNative() && demandID == tok:
		nativeDemand = false
	case demandID.IsNative() && supplyID == tok:
		nativeDemand = true
	default:
		return nil, protoerr.Valuef("pool %s trades native/%s, not %s/%s", p.UTXO.Outpoint, tok, supplyID, demandID)
	}
	sd := &side{pool: p, nativeDemand: nativeDemand, n: p.NativeReserve(), t: p.TokenReserve()}
	sd.k = new(big.Int).Mul(sd.n, sd.t)
	if nativeDemand {
		sd.s, sd.d = sd.t, sd.n
		sd.cap = sd.maxNativeOut(new(big.Int).Sub(sd.n, big.NewInt(MinPoolNativeReserve)))
	} else {
		sd.s, sd.d = sd.n, sd.t
		sd.cap = new(big.Int).Sub(sd.t, big.NewInt(MinPoolTokenReserve))
	}
	if sd.cap.Sign() < 0 {
		sd.cap.SetInt64(0)
	}
	return sd, nil
}

func (sd *side) supplyID() types.TokenID {
	if sd.nativeDemand {
		return sd.pool.TokenID()
	}
	return types.NativeTokenID
}

func (sd *side) demandID() types.TokenID {
	if sd.nativeDemand {
		return types.NativeTokenID
	}
	return sd.pool.TokenID()
}
