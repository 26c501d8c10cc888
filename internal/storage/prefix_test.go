package storage

import (
	"errors"
	"testing"
)

// plainDB hides the inner store's batch support.
type plainDB struct{ DB }

func mustPut(t *testing.T, db DB, key, value string) {
	t.Helper()
	if err := db.Put([]byte(key), []byte(value)); err != nil {
		t.Fatalf("Put(%q): %v", key, err)
	}
}

func keysOf(t *testing.T, db DB, prefix string) []string {
	t.Helper()
	var keys []string
	if err := db.ForEach([]byte(prefix), func(k, _ []byte) error {
		keys = append(keys, string(k))
		return nil
	}); err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	return keys
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPrefixDB_NetworkIsolation(t *testing.T) {
	inner, err := NewBadgerInMemory()
	if err != nil {
		t.Fatalf("NewBadgerInMemory: %v", err)
	}
	defer inner.Close()

	mainnet := NewPrefixDB(inner, []byte("mainnet/"))
	chipnet := NewPrefixDB(inner, []byte("chipnet/"))
	mustPut(t, mainnet, "u/pool", "m")
	mustPut(t, chipnet, "u/pool", "c")

	got, err := mainnet.Get([]byte("u/pool"))
	if err != nil || string(got) != "m" {
		t.Fatalf("mainnet Get = %q, %v", got, err)
	}
	got, err = chipnet.Get([]byte("u/pool"))
	if err != nil || string(got) != "c" {
		t.Fatalf("chipnet Get = %q, %v", got, err)
	}
	if _, err := mainnet.Get([]byte("chipnet/u/pool")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-namespace Get error = %v, want ErrNotFound", err)
	}

	raw := keysOf(t, inner, "")
	if !equalKeys(raw, []string{"chipnet/u/pool", "mainnet/u/pool"}) {
		t.Fatalf("inner keys = %v", raw)
	}
}

func TestPrefixDB_ForEachStripsPrefix(t *testing.T) {
	inner := NewMemory()
	db := NewPrefixDB(inner, []byte("ns/"))
	mustPut(t, db, "c/b", "2")
	mustPut(t, db, "c/a", "1")
	mustPut(t, db, "k/x", "3")
	mustPut(t, inner, "other/c/z", "4")

	if got := keysOf(t, db, "c/"); !equalKeys(got, []string{"c/a", "c/b"}) {
		t.Fatalf("ForEach(c/) = %v", got)
	}
	if got := keysOf(t, db, ""); !equalKeys(got, []string{"c/a", "c/b", "k/x"}) {
		t.Fatalf("ForEach() = %v", got)
	}

	stop := errors.New("stop")
	calls := 0
	err := db.ForEach(nil, func(_, _ []byte) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("ForEach stop: err=%v calls=%d", err, calls)
	}
}

func TestPrefixDB_PrefixIsCopied(t *testing.T) {
	prefix := []byte("ns/")
	db := NewPrefixDB(NewMemory(), prefix)
	prefix[0] = 'x'
	mustPut(t, db, "k", "v")
	if got := keysOf(t, db.inner, ""); !equalKeys(got, []string{"ns/k"}) {
		t.Fatalf("inner keys = %v", got)
	}
}

func TestPrefixDB_DeleteAll(t *testing.T) {
	inner := NewMemory()
	a := NewPrefixDB(inner, []byte("a/"))
	b := NewPrefixDB(inner, []byte("b/"))
	for _, k := range []string{"1", "2", "3"} {
		mustPut(t, a, k, "x")
	}
	mustPut(t, b, "1", "y")

	if err := a.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if got := keysOf(t, a, ""); len(got) != 0 {
		t.Fatalf("a keys after DeleteAll = %v", got)
	}
	if got := keysOf(t, b, ""); !equalKeys(got, []string{"1"}) {
		t.Fatalf("b keys after a.DeleteAll = %v", got)
	}
	if err := a.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll on empty namespace: %v", err)
	}
}

func TestPrefixDB_Batch(t *testing.T) {
	inners := map[string]DB{
		"batcher":  NewMemory(),
		"fallback": plainDB{NewMemory()},
	}
	for name, inner := range inners {
		t.Run(name, func(t *testing.T) {
			db := NewPrefixDB(inner, []byte("ns/"))
			mustPut(t, db, "gone", "x")

			b := db.NewBatch()
			if err := b.Put([]byte("k1"), []byte("v1")); err != nil {
				t.Fatal(err)
			}
			if err := b.Put([]byte("idx"), []byte{}); err != nil {
				t.Fatal(err)
			}
			if err := b.Delete([]byte("gone")); err != nil {
				t.Fatal(err)
			}
			if ok, _ := db.Has([]byte("k1")); ok {
				t.Fatal("batch write visible before Commit")
			}
			if err := b.Commit(); err != nil {
				t.Fatalf("Commit: %v", err)
			}

			if got := keysOf(t, inner, ""); !equalKeys(got, []string{"ns/idx", "ns/k1"}) {
				t.Fatalf("inner keys = %v", got)
			}
			v, err := db.Get([]byte("idx"))
			if err != nil || len(v) != 0 {
				t.Fatalf("empty value Get = %q, %v", v, err)
			}
		})
	}
}

func TestPrefixDB_CloseLeavesInnerOpen(t *testing.T) {
	inner := NewMemory()
	db := NewPrefixDB(inner, []byte("ns/"))
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	mustPut(t, inner, "still", "open")
}
