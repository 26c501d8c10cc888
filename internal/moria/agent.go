package moria

import (
	"bytes"
	"math/big"

	"github.com/Klingon-tech/covenantlab/internal/codec"
	"github.com/Klingon-tech/covenantlab/internal/compiler"
	"github.com/Klingon-tech/covenantlab/internal/payout"
	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/internal/wallet"
	"github.com/Klingon-tech/covenantlab/pkg/tx"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// agentSpend is a loan-agent coin being spent to authorize a v1 loan.
type agentSpend struct {
	coin  wallet.SpendableCoin
	hash  types.Hash
	input compiler.InputDescriptor
}

func newAgentSpend(c wallet.SpendableCoin) (*agentSpend, error) {
	t := c.UTXO.Output.Token
	if t == nil || t.NFT == nil {
		return nil, protoerr.Valuef("coin %s does not hold a loan agent nft", c.UTXO.Outpoint)
	}
	if _, err := codec.DecodeLoanAgentCommitment(t.NFT.Commitment); err != nil {
		return nil, err
	}
	in, err := c.Input()
	if err != nil {
		return nil, err
	}
	return &agentSpend{
		coin:  c,
		hash:  codec.LoanAgentHash(t.ID, t.NFT.Commitment),
		input: in,
	}, nil
}

func (a *agentSpend) category() types.TokenID {
	return a.coin.UTXO.Output.Token.ID
}

// successor re-creates the agent at its current lock with the dust amount.
func (a *agentSpend) successor() types.Output {
	out := types.Output{
		LockingBytecode: bytes.Clone(a.coin.UTXO.Output.LockingBytecode),
		Token:           a.coin.UTXO.Output.Token.Clone(),
	}
	out.Amount = tx.DustAmount(out)
	return out
}

// keepAsSuccessor credits bal with what the agent coin holds beyond its
// successor output.
func (a *agentSpend) keepAsSuccessor(bal *payout.Balances) types.Output {
	out := a.successor()
	bal.AddNative(new(big.Int).Sub(
		new(big.Int).SetUint64(a.coin.UTXO.Output.Amount),
		new(big.Int).SetUint64(out.Amount),
	))
	return out
}

// burnInto credits bal with the agent coin's value and drops its NFT.
func (a *agentSpend) burnInto(bal *payout.Balances) {
	out := a.coin.UTXO.Output.Clone()
	if out.Token.Amount > 0 {
		out.Token.NFT = nil
	} else {
		out.Token = nil
	}
	bal.AddOutput(out)
}

// burned reports whether the agent NFT appears among burned tokens.
func (a *agentSpend) burned(res *payout.Result) bool {
	nft := a.coin.UTXO.Output.Token.NFT
	for _, b := range res.Burned {
		if b.ID == a.category() && b.NFT != nil && bytes.Equal(b.NFT.Commitment, nft.Commitment) {
			return true
		}
	}
	return false
}
