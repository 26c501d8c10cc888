package utxo

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/Klingon-tech/covenantlab/pkg/crypto"
	"github.com/Klingon-tech/covenantlab/pkg/tx"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Commitment computes a checksum over every entry in the store. Each entry
// is hashed deterministically, the hashes are sorted and hashed together.
// Returns a zero hash for an empty set.
func Commitment(store *Store) (types.Hash, error) {
	var hashes []types.Hash

	err := store.ForEach(func(e *Entry) error {
		hashes = append(hashes, hashEntry(e))
		return nil
	})
	if err != nil {
		return types.Hash{}, fmt.Errorf("utxo commitment: %w", err)
	}

	if len(hashes) == 0 {
		return types.Hash{}, nil
	}

	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i][:], hashes[j][:]) < 0
	})
	buf := make([]byte, 0, len(hashes)*types.HashSize)
	for _, h := range hashes {
		buf = append(buf, h[:]...)
	}
	return crypto.Hash(buf), nil
}

// hashEntry produces a deterministic BLAKE3 hash of an entry.
// Format: txid(32) | index(4) | kind(1) | serialized output | redeem script
func hashEntry(e *Entry) types.Hash {
	var buf []byte
	buf = append(buf, e.UTXO.Outpoint.TxID[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, e.UTXO.Outpoint.Index)
	buf = append(buf, byte(e.Kind))
	buf = tx.AppendOutput(buf, e.UTXO.Output)
	buf = append(buf, e.RedeemScript...)
	return crypto.Hash(buf)
}
