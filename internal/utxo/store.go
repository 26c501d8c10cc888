package utxo

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/covenantlab/internal/log"
	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/internal/storage"
	"github.com/Klingon-tech/covenantlab/pkg/crypto"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

// Key prefixes for the UTXO store.
var (
	prefixUTXO     = []byte("u/") // u/<txid><index> -> Entry JSON
	prefixCategory = []byte("c/") // c/<category><txid><index> -> empty (token index)
	prefixLock     = []byte("l/") // l/<hash(lock)><txid><index> -> empty (lock index)
	prefixKind     = []byte("k/") // k/<kind><txid><index> -> empty (kind index)
)

const outpointSize = types.HashSize + 4

// Store implements Set backed by a storage.DB.
type Store struct {
	db storage.DB
}

var _ Set = (*Store)(nil)

// NewStore creates a new UTXO store backed by the given database.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

func appendOutpoint(key []byte, op types.Outpoint) []byte {
	key = append(key, op.TxID[:]...)
	return binary.BigEndian.AppendUint32(key, op.Index)
}

func parseOutpoint(b []byte) (types.Outpoint, bool) {
	if len(b) != outpointSize {
		return types.Outpoint{}, false
	}
	var op types.Outpoint
	copy(op.TxID[:], b[:types.HashSize])
	op.Index = binary.BigEndian.Uint32(b[types.HashSize:])
	return op, true
}

func utxoKey(op types.Outpoint) []byte {
	return appendOutpoint(append([]byte{}, prefixUTXO...), op)
}

func categoryPrefix(id types.TokenID) []byte {
	return append(append([]byte{}, prefixCategory...), id[:]...)
}

func lockPrefix(lock []byte) []byte {
	h := crypto.Hash(lock)
	return append(append([]byte{}, prefixLock...), h[:]...)
}

func kindPrefix(k Kind) []byte {
	return append(append([]byte{}, prefixKind...), byte(k))
}

// indexKeys returns every secondary index key of e.
func indexKeys(e *Entry) [][]byte {
	op := e.UTXO.Outpoint
	keys := [][]byte{
		appendOutpoint(lockPrefix(e.UTXO.Output.LockingBytecode), op),
		appendOutpoint(kindPrefix(e.Kind), op),
	}
	if t := e.UTXO.Output.Token; t != nil {
		keys = append(keys, appendOutpoint(categoryPrefix(t.ID), op))
	}
	return keys
}

// Get retrieves an entry by its outpoint. A missing outpoint is a
// NotFound protocol error.
func (s *Store) Get(outpoint types.Outpoint) (*Entry, error) {
	data, err := s.db.Get(utxoKey(outpoint))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, protoerr.NotFoundf("utxo %s", outpoint)
	}
	if err != nil {
		return nil, fmt.Errorf("utxo get: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("utxo unmarshal: %w", err)
	}
	return &e, nil
}

// Put stores an entry and its index entries, replacing any previous entry
// at the same outpoint.
func (s *Store) Put(e *Entry) error {
	if _, ok := kindNames[e.Kind]; !ok {
		return protoerr.Valuef("utxo %s has unknown kind %d", e.UTXO.Outpoint, uint8(e.Kind))
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("utxo marshal: %w", err)
	}

	fresh := indexKeys(e)
	keep := make(map[string]bool, len(fresh))
	for _, k := range fresh {
		keep[string(k)] = true
	}
	b := storage.NewBatch(s.db)
	if old, err := s.Get(e.UTXO.Outpoint); err == nil {
		for _, k := range indexKeys(old) {
			if !keep[string(k)] {
				b.Delete(k)
			}
		}
	}
	if err := b.Put(utxoKey(e.UTXO.Outpoint), data); err != nil {
		return fmt.Errorf("utxo put: %w", err)
	}
	for _, k := range fresh {
		if err := b.Put(k, []byte{}); err != nil {
			return fmt.Errorf("utxo index put: %w", err)
		}
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("utxo put: %w", err)
	}
	return nil
}

// Delete removes an entry and its index entries. Deleting a missing
// outpoint is not an error.
func (s *Store) Delete(outpoint types.Outpoint) error {
	b := storage.NewBatch(s.db)
	if e, err := s.Get(outpoint); err == nil {
		for _, k := range indexKeys(e) {
			b.Delete(k)
		}
	}
	b.Delete(utxoKey(outpoint))
	if err := b.Commit(); err != nil {
		return fmt.Errorf("utxo delete: %w", err)
	}
	return nil
}

// Has checks if an entry exists for the given outpoint.
func (s *Store) Has(outpoint types.Outpoint) (bool, error) {
	return s.db.Has(utxoKey(outpoint))
}

// ForEach iterates over all entries in outpoint order.
func (s *Store) ForEach(fn func(*Entry) error) error {
	return s.db.ForEach(prefixUTXO, func(_, value []byte) error {
		var e Entry
		if err := json.Unmarshal(value, &e); err != nil {
			return fmt.Errorf("utxo unmarshal: %w", err)
		}
		return fn(&e)
	})
}

// scan loads every entry referenced by an index prefix.
func (s *Store) scan(prefix []byte) ([]*Entry, error) {
	var entries []*Entry
	err := s.db.ForEach(prefix, func(key, _ []byte) error {
		op, ok := parseOutpoint(key[len(prefix):])
		if !ok {
			return nil // Malformed key, skip.
		}
		e, err := s.Get(op)
		if err != nil {
			return nil // Index entry without its utxo, skip.
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan index: %w", err)
	}
	return entries, nil
}

// ByCategory returns every entry carrying a token of category id.
func (s *Store) ByCategory(id types.TokenID) ([]*Entry, error) {
	return s.scan(categoryPrefix(id))
}

// ByLockingBytecode returns every entry locked by lock.
func (s *Store) ByLockingBytecode(lock []byte) ([]*Entry, error) {
	return s.scan(lockPrefix(lock))
}

// ByKind returns every entry of kind k.
func (s *Store) ByKind(k Kind) ([]*Entry, error) {
	return s.scan(kindPrefix(k))
}

// Apply removes spent and stores created as one batch, as when a built
// transaction is accepted.
func (s *Store) Apply(spent []types.Outpoint, created []*Entry) error {
	b := storage.NewBatch(s.db)
	for _, op := range spent {
		e, err := s.Get(op)
		if err != nil {
			return fmt.Errorf("apply: spent %w", err)
		}
		for _, k := range indexKeys(e) {
			b.Delete(k)
		}
		b.Delete(utxoKey(op))
	}
	for _, e := range created {
		if _, ok := kindNames[e.Kind]; !ok {
			return protoerr.Valuef("utxo %s has unknown kind %d", e.UTXO.Outpoint, uint8(e.Kind))
		}
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("utxo marshal: %w", err)
		}
		b.Put(utxoKey(e.UTXO.Outpoint), data)
		for _, k := range indexKeys(e) {
			b.Put(k, []byte{})
		}
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	log.Storage.Debug().Int("spent", len(spent)).Int("created", len(created)).Msg("snapshot updated")
	return nil
}

// ClearAll removes all entries and their secondary indexes.
func (s *Store) ClearAll() error {
	var keys [][]byte
	for _, prefix := range [][]byte{prefixUTXO, prefixCategory, prefixLock, prefixKind} {
		if err := s.db.ForEach(prefix, func(key, _ []byte) error {
			keys = append(keys, key)
			return nil
		}); err != nil {
			return fmt.Errorf("scan prefix %s: %w", prefix, err)
		}
	}
	b := storage.NewBatch(s.db)
	for _, key := range keys {
		b.Delete(key)
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("delete utxo keys: %w", err)
	}
	return nil
}
