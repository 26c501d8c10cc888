package tx

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Validation errors.
var (
	ErrNoInputs          = errors.New("transaction has no inputs")
	ErrNoOutputs         = errors.New("transaction has no outputs")
	ErrDuplicateInput    = errors.New("duplicate input")
	ErrOutputOverflow    = errors.New("output values overflow")
	ErrInputOverflow     = errors.New("input values overflow")
	ErrInvalidToken      = errors.New("invalid token data")
	ErrCommitmentTooLong = errors.New("nft commitment too long")
	ErrSpentMismatch     = errors.New("spent outputs do not match inputs")
	ErrInsufficientFee   = errors.New("insufficient fee")
	ErrFeeMismatch       = errors.New("fee does not balance")
	ErrTokenImbalance    = errors.New("token amounts not conserved")
	ErrNFTNotAuthorized  = errors.New("nft output not authorized by inputs")
)

// Validate checks transaction structure. It does not look at spent outputs.
func (tx *Transaction) Validate() error {
	if len(tx.Inputs) == 0 {
		return ErrNoInputs
	}
	if len(tx.Outputs) == 0 {
		return ErrNoOutputs
	}

	seen := make(map[types.Outpoint]bool, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if seen[in.PrevOut] {
			return fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
		}
		seen[in.PrevOut] = true
	}

	for i, out := range tx.Outputs {
		if out.Token == nil {
			continue
		}
		if out.Token.ID.IsNative() {
			return fmt.Errorf("output %d: %w: native category", i, ErrInvalidToken)
		}
		if out.Token.Amount == 0 && out.Token.NFT == nil {
			return fmt.Errorf("output %d: %w: empty token", i, ErrInvalidToken)
		}
		if out.Token.NFT != nil {
			if !out.Token.NFT.Capability.Valid() {
				return fmt.Errorf("output %d: %w: capability %d", i, ErrInvalidToken, out.Token.NFT.Capability)
			}
			if len(out.Token.NFT.Commitment) > MaxCommitmentLength {
				return fmt.Errorf("output %d: %w: %d bytes", i, ErrCommitmentTooLong, len(out.Token.NFT.Commitment))
			}
		}
	}

	if _, err := tx.TotalOutputValue(); err != nil {
		return err
	}
	return nil
}

// Fee returns the native fee paid by tx given the outputs it spends, in
// input order.
func (tx *Transaction) Fee(spent []types.UTXO) (uint64, error) {
	if err := matchSpent(tx, spent); err != nil {
		return 0, err
	}
	var in uint64
	for i, u := range spent {
		if in+u.Output.Amount < in {
			return 0, fmt.Errorf("input %d: %w", i, ErrInputOverflow)
		}
		in += u.Output.Amount
	}
	out, err := tx.TotalOutputValue()
	if err != nil {
		return 0, err
	}
	if in < out {
		return 0, fmt.Errorf("%w: inputs=%d outputs=%d", ErrInsufficientFee, in, out)
	}
	return in - out, nil
}

// CheckConservation verifies that native value balances to exactly fee and
// that every fungible category is conserved, except categories listed in
// declared, whose supply the transaction mints or burns on purpose.
// New NFTs require a minting or mutable NFT of the same category among the
// inputs.
func (tx *Transaction) CheckConservation(spent []types.UTXO, fee uint64, declared map[types.TokenID]bool) error {
	got, err := tx.Fee(spent)
	if err != nil {
		return err
	}
	if got != fee {
		return fmt.Errorf("%w: inputs-outputs=%d declared=%d", ErrFeeMismatch, got, fee)
	}

	in := make(map[types.TokenID]*big.Int)
	authority := make(map[types.TokenID]types.Capability)
	immutables := make(map[types.TokenID][][]byte)
	for _, u := range spent {
		t := u.Output.Token
		if t == nil {
			continue
		}
		addTo(in, t.ID, t.Amount)
		if t.NFT == nil {
			continue
		}
		if t.NFT.Capability > authority[t.ID] {
			authority[t.ID] = t.NFT.Capability
		}
		if t.NFT.Capability == types.CapabilityNone {
			immutables[t.ID] = append(immutables[t.ID], t.NFT.Commitment)
		}
	}

	out := make(map[types.TokenID]*big.Int)
	for i, o := range tx.Outputs {
		t := o.Token
		if t == nil {
			continue
		}
		addTo(out, t.ID, t.Amount)
		if t.NFT == nil || authority[t.ID] == types.CapabilityMinting {
			continue
		}
		if authority[t.ID] == types.CapabilityMutable {
			// A mutable NFT may be re-emitted once, at most as mutable.
			if t.NFT.Capability != types.CapabilityMinting {
				authority[t.ID] = types.CapabilityNone
				continue
			}
		}
		if t.NFT.Capability == types.CapabilityNone && takeImmutable(immutables, t.ID, t.NFT.Commitment) {
			continue
		}
		return fmt.Errorf("output %d: %w: category %s", i, ErrNFTNotAuthorized, t.ID)
	}

	for id, total := range in {
		if declared[id] {
			continue
		}
		o := out[id]
		if o == nil {
			o = new(big.Int)
		}
		if o.Cmp(total) != 0 {
			return fmt.Errorf("%w: %s in=%s out=%s", ErrTokenImbalance, id, total, o)
		}
	}
	for id, total := range out {
		if declared[id] || in[id] != nil || total.Sign() == 0 {
			continue
		}
		return fmt.Errorf("%w: %s in=0 out=%s", ErrTokenImbalance, id, total)
	}
	return nil
}

func matchSpent(tx *Transaction, spent []types.UTXO) error {
	if len(spent) != len(tx.Inputs) {
		return fmt.Errorf("%w: %d inputs, %d spent", ErrSpentMismatch, len(tx.Inputs), len(spent))
	}
	for i, u := range spent {
		if u.Outpoint != tx.Inputs[i].PrevOut {
			return fmt.Errorf("input %d: %w: %s != %s", i, ErrSpentMismatch, u.Outpoint, tx.Inputs[i].PrevOut)
		}
	}
	return nil
}

func addTo(m map[types.TokenID]*big.Int, id types.TokenID, amount uint64) {
	v, ok := m[id]
	if !ok {
		v = new(big.Int)
		m[id] = v
	}
	v.Add(v, new(big.Int).SetUint64(amount))
}

func takeImmutable(m map[types.TokenID][][]byte, id types.TokenID, commitment []byte) bool {
	list := m[id]
	for i, c := range list {
		if bytes.Equal(c, commitment) {
			m[id] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}
