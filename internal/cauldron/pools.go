package cauldron

import (
	"fmt"

	"github.com/Klingon-tech/covenantlab/internal/log"
	"github.com/Klingon-tech/covenantlab/internal/router"
	"github.com/Klingon-tech/covenantlab/internal/utxo"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// PoolEntry converts p for the snapshot store.
func PoolEntry(p router.Pool) *utxo.Entry {
	return &utxo.Entry{UTXO: p.UTXO.Clone(), Kind: utxo.KindPool, RedeemScript: p.RedeemScript}
}

// LoadPools returns the stored pools trading token id. Entries that no
// longer parse as pools are skipped.
func LoadPools(s *utxo.Store, id types.TokenID) ([]router.Pool, error) {
	entries, err := s.ByCategory(id)
	if err != nil {
		return nil, err
	}
	var pools []router.Pool
	for _, e := range entries {
		if e.Kind != utxo.KindPool {
			continue
		}
		p, err := router.NewPool(e.UTXO, e.RedeemScript)
		if err != nil {
			log.Trade.Debug().Err(err).Str("utxo", e.UTXO.Outpoint.String()).Msg("skipping stored pool")
			continue
		}
		pools = append(pools, p)
	}
	return pools, nil
}

// Record moves the snapshot past a built trade or withdraw: the spent
// pools are dropped and their successors stored.
func (r *TxResult) Record(s *utxo.Store) error {
	var spent []types.Outpoint
	for _, in := range r.Tx.Transaction.Inputs {
		ok, err := s.Has(in.PrevOut)
		if err != nil {
			return err
		}
		if ok {
			spent = append(spent, in.PrevOut)
		}
	}
	created := make([]*utxo.Entry, 0, len(r.Pools))
	for _, p := range r.Pools {
		created = append(created, PoolEntry(p))
	}
	if err := s.Apply(spent, created); err != nil {
		return fmt.Errorf("record %s: %w", r.Tx.Hash, err)
	}
	return nil
}
