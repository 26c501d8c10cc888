// Package payout turns a post-operation balance sheet into concrete
// outputs under caller-supplied FIXED and CHANGE rules.
package payout

import (
	"math/big"

	"github.com/Klingon-tech/covenantlab/pkg/numeric"
	"github.com/Klingon-tech/covenantlab/pkg/tx"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Rule is either a FixedRule or a ChangeRule.
type Rule interface {
	isRule()
}

// TokenAmount is the token part of a FIXED payout. NFT is matched by
// category, capability and commitment against the available NFTs.
type TokenAmount struct {
	ID     types.TokenID `json:"id"`
	Amount *big.Int      `json:"amount"`
	NFT    *types.NFT    `json:"nft,omitempty"`
}

// FixedRule pays a declared amount to a locking bytecode.
type FixedRule struct {
	LockingBytecode []byte
	// Amount is the native amount; ignored when UseMin is set.
	Amount *big.Int
	// UseMin pays the dust floor of the composed output.
	UseMin bool
	Token  *TokenAmount
	// SpendingParameters is carried untouched onto the resulting Payout.
	SpendingParameters any
}

func (FixedRule) isRule() {}

// ChangeRule receives whatever is left after the FIXED rules and the fee.
type ChangeRule struct {
	LockingBytecode []byte

	AllowMixingNativeAndToken                    bool
	AllowMixingNativeAndTokenWhenBCHChangeIsDust bool
	AddChangeToTxfeeWhenBCHChangeIsDust          bool

	// GenerateChangeLockingBytecodeForOutput picks the destination of each
	// composed change output. Falls back to LockingBytecode when nil.
	GenerateChangeLockingBytecodeForOutput func(types.Output) ([]byte, error)
	// ShouldBurn decides, per token change output, whether to keep it.
	ShouldBurn func(types.Output) Decision

	SpendingParameters any
}

func (ChangeRule) isRule() {}

// Decision is the outcome of a ShouldBurn hook.
type Decision struct {
	burn   bool
	output types.Output
}

// Keep keeps out, which may carry a replacement locking bytecode or native
// amount but must hold the same token.
func Keep(out types.Output) Decision {
	return Decision{output: out}
}

// Burn drops the candidate output and its token.
func Burn() Decision {
	return Decision{burn: true}
}

// IsBurn reports whether the decision discards the output.
func (d Decision) IsBurn() bool {
	return d.burn
}

// NFTBalance is one NFT available for payout.
type NFTBalance struct {
	ID  types.TokenID `json:"id"`
	NFT types.NFT     `json:"nft"`
}

// Balances is the available value to distribute. Native may be negative
// when the operation over-spent.
type Balances struct {
	Native *big.Int
	Tokens map[types.TokenID]*big.Int
	NFTs   []NFTBalance
}

// Clone returns a deep copy of b.
func (b Balances) Clone() Balances {
	c := Balances{Native: new(big.Int), Tokens: make(map[types.TokenID]*big.Int, len(b.Tokens))}
	if b.Native != nil {
		c.Native.Set(b.Native)
	}
	for id, v := range b.Tokens {
		c.Tokens[id] = new(big.Int).Set(v)
	}
	for _, n := range b.NFTs {
		c.NFTs = append(c.NFTs, NFTBalance{ID: n.ID, NFT: *n.NFT.Clone()})
	}
	return c
}

// AddOutput credits the value held by out.
func (b *Balances) AddOutput(out types.Output) {
	if b.Native == nil {
		b.Native = new(big.Int)
	}
	if b.Tokens == nil {
		b.Tokens = make(map[types.TokenID]*big.Int)
	}
	b.Native.Add(b.Native, new(big.Int).SetUint64(out.Amount))
	if out.Token == nil {
		return
	}
	if out.Token.Amount > 0 {
		v, ok := b.Tokens[out.Token.ID]
		if !ok {
			v = new(big.Int)
			b.Tokens[out.Token.ID] = v
		}
		v.Add(v, new(big.Int).SetUint64(out.Token.Amount))
	}
	if out.Token.NFT != nil {
		b.NFTs = append(b.NFTs, NFTBalance{ID: out.Token.ID, NFT: *out.Token.NFT.Clone()})
	}
}

// SubOutput debits the value held by out. NFTs must be present.
func (b *Balances) SubOutput(out types.Output) bool {
	b.AddNative(new(big.Int).Neg(new(big.Int).SetUint64(out.Amount)))
	if out.Token == nil {
		return true
	}
	if out.Token.Amount > 0 {
		b.AddToken(out.Token.ID, new(big.Int).Neg(new(big.Int).SetUint64(out.Token.Amount)))
	}
	if out.Token.NFT != nil {
		return b.takeNFT(out.Token.ID, out.Token.NFT)
	}
	return true
}

// AddNative adds v (which may be negative) to the native balance.
func (b *Balances) AddNative(v *big.Int) {
	if b.Native == nil {
		b.Native = new(big.Int)
	}
	b.Native.Add(b.Native, v)
}

// AddToken adds v (which may be negative) to a token balance.
func (b *Balances) AddToken(id types.TokenID, v *big.Int) {
	if b.Tokens == nil {
		b.Tokens = make(map[types.TokenID]*big.Int)
	}
	cur, ok := b.Tokens[id]
	if !ok {
		cur = new(big.Int)
		b.Tokens[id] = cur
	}
	cur.Add(cur, v)
}

// Token returns the balance of id, zero when absent.
func (b Balances) Token(id types.TokenID) *big.Int {
	if id.IsNative() {
		if b.Native == nil {
			return new(big.Int)
		}
		return new(big.Int).Set(b.Native)
	}
	if v, ok := b.Tokens[id]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (b *Balances) takeNFT(id types.TokenID, nft *types.NFT) bool {
	for i, n := range b.NFTs {
		if n.ID == id && n.NFT.Capability == nft.Capability && string(n.NFT.Commitment) == string(nft.Commitment) {
			b.NFTs = append(b.NFTs[:i], b.NFTs[i+1:]...)
			return true
		}
	}
	return false
}

// Config is the fee and dust policy the resolver works under.
type Config struct {
	TxFeePerByte numeric.Fraction
	// UnlockingSizes holds the unlocking bytecode size of every input.
	UnlockingSizes []int
	// LeadingOutputs are the outputs placed before the payouts, such as
	// covenant outputs.
	LeadingOutputs []types.Output
	// OutputMinAmount returns the dust floor of an output. Defaults to
	// tx.DustAmount.
	OutputMinAmount func(types.Output) uint64
	// PreferredTokenOutputAmount is the native amount attached to token
	// change outputs. Defaults to OutputMinAmount.
	PreferredTokenOutputAmount func(types.Output) uint64
}

func (c Config) fee(payouts []types.Output) *big.Int {
	outs := make([]types.Output, 0, len(c.LeadingOutputs)+len(payouts))
	outs = append(outs, c.LeadingOutputs...)
	outs = append(outs, payouts...)
	return new(big.Int).SetUint64(tx.EstimateTxFee(c.UnlockingSizes, outs, c.TxFeePerByte))
}

func (c Config) minAmount(out types.Output) uint64 {
	if c.OutputMinAmount != nil {
		return c.OutputMinAmount(out)
	}
	return tx.DustAmount(out)
}

func (c Config) tokenOutputAmount(out types.Output) uint64 {
	if c.PreferredTokenOutputAmount != nil {
		if v := c.PreferredTokenOutputAmount(out); v >= c.minAmount(out) {
			return v
		}
	}
	return c.minAmount(out)
}

// Payout is one produced output.
type Payout struct {
	Output             types.Output `json:"output"`
	RuleIndex          int          `json:"rule_index"`
	SpendingParameters any          `json:"-"`
}

// Result is the resolver's outcome.
type Result struct {
	Payouts []Payout          `json:"payouts"`
	TxFee   *big.Int          `json:"txfee"`
	Burned  []types.TokenData `json:"burned,omitempty"`
}

// Outputs returns the payout outputs in order.
func (r *Result) Outputs() []types.Output {
	out := make([]types.Output, len(r.Payouts))
	for i, p := range r.Payouts {
		out[i] = p.Output
	}
	return out
}
