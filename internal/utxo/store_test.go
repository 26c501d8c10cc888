package utxo

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/internal/storage"
	"github.com/Klingon-tech/covenantlab/pkg/crypto"
	"github.com/Klingon-tech/covenantlab/pkg/types"
)

var (
	testToken = types.TokenID{0x5a, 0x01}
	otherTok  = types.TokenID{0x5a, 0x02}
	testLock  = []byte{0x76, 0xa9, 0x14, 0x01, 0x88, 0xac}
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(storage.NewMemory())
}

func makeOutpoint(data string, index uint32) types.Outpoint {
	return types.Outpoint{
		TxID:  crypto.Hash([]byte(data)),
		Index: index,
	}
}

func makeEntry(data string, index uint32, amount uint64, token *types.TokenData) *Entry {
	return &Entry{
		UTXO: types.UTXO{
			Outpoint: makeOutpoint(data, index),
			Output: types.Output{
				LockingBytecode: testLock,
				Amount:          amount,
				Token:           token,
			},
		},
		Kind: KindCoin,
	}
}

func TestStore_PutAndGet(t *testing.T) {
	s := testStore(t)
	e := makeEntry("tx1", 0, 5000, &types.TokenData{ID: testToken, Amount: 7})
	e.Kind = KindPool
	e.RedeemScript = []byte{0x51, 0x52}

	if err := s.Put(e); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := s.Get(e.UTXO.Outpoint)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.UTXO.Output.Amount != 5000 {
		t.Errorf("Amount = %d, want 5000", got.UTXO.Output.Amount)
	}
	if got.UTXO.Outpoint != e.UTXO.Outpoint {
		t.Error("Outpoint mismatch")
	}
	if got.Kind != KindPool {
		t.Errorf("Kind = %s, want pool", got.Kind)
	}
	if string(got.RedeemScript) != string(e.RedeemScript) {
		t.Errorf("RedeemScript = %x, want %x", got.RedeemScript, e.RedeemScript)
	}
	if got.UTXO.Output.Token == nil || got.UTXO.Output.Token.Amount != 7 {
		t.Errorf("Token = %+v, want amount 7", got.UTXO.Output.Token)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := testStore(t)
	_, err := s.Get(makeOutpoint("nope", 0))
	if !errors.Is(err, protoerr.ErrNotFound) {
		t.Errorf("Get() missing = %v, want NotFound", err)
	}
}

func TestStore_PutUnknownKind(t *testing.T) {
	s := testStore(t)
	e := makeEntry("tx1", 0, 5000, nil)
	e.Kind = 0
	if err := s.Put(e); !errors.Is(err, protoerr.ErrValue) {
		t.Errorf("Put() unknown kind = %v, want ValueError", err)
	}
}

func TestStore_Has(t *testing.T) {
	s := testStore(t)
	e := makeEntry("tx1", 0, 1000, nil)

	ok, _ := s.Has(e.UTXO.Outpoint)
	if ok {
		t.Error("Has() should be false before Put()")
	}
	s.Put(e)
	ok, _ = s.Has(e.UTXO.Outpoint)
	if !ok {
		t.Error("Has() should be true after Put()")
	}
}

func TestStore_Delete(t *testing.T) {
	s := testStore(t)
	e := makeEntry("tx1", 0, 1000, &types.TokenData{ID: testToken, Amount: 1})
	s.Put(e)

	if err := s.Delete(e.UTXO.Outpoint); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if ok, _ := s.Has(e.UTXO.Outpoint); ok {
		t.Error("entry should be gone after Delete()")
	}
	got, err := s.ByCategory(testToken)
	if err != nil {
		t.Fatalf("ByCategory() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("category index still lists %d entries", len(got))
	}
	if err := s.Delete(e.UTXO.Outpoint); err != nil {
		t.Errorf("Delete() missing entry error: %v", err)
	}
}

func TestStore_ByCategory(t *testing.T) {
	s := testStore(t)
	s.Put(makeEntry("a", 0, 1000, &types.TokenData{ID: testToken, Amount: 1}))
	s.Put(makeEntry("b", 0, 1000, &types.TokenData{ID: testToken, Amount: 2}))
	s.Put(makeEntry("c", 0, 1000, &types.TokenData{ID: otherTok, Amount: 3}))
	s.Put(makeEntry("d", 0, 1000, nil))

	tests := []struct {
		id   types.TokenID
		want int
	}{
		{testToken, 2},
		{otherTok, 1},
		{types.TokenID{0x99}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.id.String(), func(t *testing.T) {
			got, err := s.ByCategory(tt.id)
			if err != nil {
				t.Fatalf("ByCategory() error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("ByCategory() = %d entries, want %d", len(got), tt.want)
			}
			for _, e := range got {
				if e.UTXO.Output.Token.ID != tt.id {
					t.Errorf("entry %s has category %s", e.UTXO.Outpoint, e.UTXO.Output.Token.ID)
				}
			}
		})
	}
}

func TestStore_ByKindAndLock(t *testing.T) {
	s := testStore(t)
	pool := makeEntry("pool", 0, 1000, &types.TokenData{ID: testToken, Amount: 1})
	pool.Kind = KindPool
	pool.UTXO.Output.LockingBytecode = []byte{0xaa, 0x20, 0x01, 0x87}
	s.Put(pool)
	s.Put(makeEntry("coin", 0, 1000, nil))

	pools, err := s.ByKind(KindPool)
	if err != nil {
		t.Fatalf("ByKind() error: %v", err)
	}
	if len(pools) != 1 || pools[0].UTXO.Outpoint != pool.UTXO.Outpoint {
		t.Errorf("ByKind(pool) = %v", pools)
	}

	coins, err := s.ByLockingBytecode(testLock)
	if err != nil {
		t.Fatalf("ByLockingBytecode() error: %v", err)
	}
	if len(coins) != 1 || coins[0].Kind != KindCoin {
		t.Errorf("ByLockingBytecode() = %v", coins)
	}
}

func TestStore_PutReplacesIndexes(t *testing.T) {
	s := testStore(t)
	e := makeEntry("tx1", 0, 1000, &types.TokenData{ID: testToken, Amount: 1})
	s.Put(e)

	moved := makeEntry("tx1", 0, 1000, &types.TokenData{ID: otherTok, Amount: 1})
	moved.Kind = KindLoan
	if err := s.Put(moved); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if got, _ := s.ByCategory(testToken); len(got) != 0 {
		t.Errorf("old category index kept %d entries", len(got))
	}
	if got, _ := s.ByCategory(otherTok); len(got) != 1 {
		t.Errorf("new category index has %d entries, want 1", len(got))
	}
	if got, _ := s.ByKind(KindCoin); len(got) != 0 {
		t.Errorf("old kind index kept %d entries", len(got))
	}
	if got, _ := s.ByLockingBytecode(testLock); len(got) != 1 {
		t.Errorf("lock index has %d entries, want 1", len(got))
	}
}

func TestStore_Apply(t *testing.T) {
	s := testStore(t)
	spent := makeEntry("in", 0, 1000, &types.TokenData{ID: testToken, Amount: 5})
	s.Put(spent)

	created := []*Entry{
		makeEntry("out", 0, 600, &types.TokenData{ID: testToken, Amount: 5}),
		makeEntry("out", 1, 300, nil),
	}
	if err := s.Apply([]types.Outpoint{spent.UTXO.Outpoint}, created); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if ok, _ := s.Has(spent.UTXO.Outpoint); ok {
		t.Error("spent entry still present")
	}
	for _, e := range created {
		if ok, _ := s.Has(e.UTXO.Outpoint); !ok {
			t.Errorf("created entry %s missing", e.UTXO.Outpoint)
		}
	}
	if got, _ := s.ByCategory(testToken); len(got) != 1 {
		t.Errorf("ByCategory() = %d entries, want 1", len(got))
	}

	err := s.Apply([]types.Outpoint{spent.UTXO.Outpoint}, nil)
	if !errors.Is(err, protoerr.ErrNotFound) {
		t.Errorf("Apply() with unknown spent = %v, want NotFound", err)
	}
}

func TestStore_ForEachAndClearAll(t *testing.T) {
	s := testStore(t)
	for i := uint32(0); i < 5; i++ {
		s.Put(makeEntry("tx", i, 1000+uint64(i), &types.TokenData{ID: testToken, Amount: 1}))
	}

	var count int
	s.ForEach(func(*Entry) error {
		count++
		return nil
	})
	if count != 5 {
		t.Errorf("ForEach() visited %d, want 5", count)
	}

	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll() error: %v", err)
	}
	count = 0
	s.ForEach(func(*Entry) error {
		count++
		return nil
	})
	if count != 0 {
		t.Errorf("ForEach() after ClearAll() visited %d", count)
	}
	if got, _ := s.ByCategory(testToken); len(got) != 0 {
		t.Errorf("category index survived ClearAll(): %d", len(got))
	}
}

func TestStore_Badger(t *testing.T) {
	db, err := storage.NewBadger(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	defer db.Close()

	s := NewStore(storage.NewPrefixDB(db, []byte("chipnet/")))
	e := makeEntry("tx1", 3, 2000, &types.TokenData{ID: testToken, Amount: 9})
	if err := s.Put(e); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	got, err := s.ByCategory(testToken)
	if err != nil || len(got) != 1 {
		t.Fatalf("ByCategory() = %v, %v", got, err)
	}
	if got[0].UTXO.Outpoint.Index != 3 {
		t.Errorf("Index = %d, want 3", got[0].UTXO.Outpoint.Index)
	}

	other := NewStore(storage.NewPrefixDB(db, []byte("mainnet/")))
	if ok, _ := other.Has(e.UTXO.Outpoint); ok {
		t.Error("network namespaces should be isolated")
	}
}

func TestKind_JSON(t *testing.T) {
	for k, name := range kindNames {
		data, err := k.MarshalJSON()
		if err != nil {
			t.Fatalf("MarshalJSON(%s) error: %v", name, err)
		}
		var back Kind
		if err := back.UnmarshalJSON(data); err != nil {
			t.Fatalf("UnmarshalJSON(%s) error: %v", data, err)
		}
		if back != k {
			t.Errorf("roundtrip %s = %s", name, back)
		}
	}
	if _, err := Kind(42).MarshalJSON(); err == nil {
		t.Error("MarshalJSON() should reject unknown kind")
	}
	if _, err := ParseKind("vault"); err == nil {
		t.Error("ParseKind() should reject unknown name")
	}
}
