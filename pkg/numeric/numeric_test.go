package numeric

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/covenantlab/internal/protoerr"
)

func TestCeilDiv(t *testing.T) {
	cases := []struct {
		a, b, want int64
	}{
		{10, 5, 2},
		{11, 5, 3},
		{0, 7, 0},
		{1, 10000, 1},
		{-11, 5, -2},
		{9999, 10000, 1},
	}
	for _, c := range cases {
		got := CeilDiv(big.NewInt(c.a), big.NewInt(c.b))
		require.Equal(t, c.want, got.Int64(), "ceil(%d/%d)", c.a, c.b)
	}
}

func TestFloorDiv(t *testing.T) {
	cases := []struct {
		a, b, want int64
	}{
		{10, 5, 2},
		{11, 5, 2},
		{-11, 5, -3},
		{0, 3, 0},
	}
	for _, c := range cases {
		got := FloorDiv(big.NewInt(c.a), big.NewInt(c.b))
		require.Equal(t, c.want, got.Int64(), "floor(%d/%d)", c.a, c.b)
	}
}

func TestCheckedCeilDiv(t *testing.T) {
	_, err := CheckedCeilDiv(big.NewInt(1), big.NewInt(0))
	require.ErrorIs(t, err, protoerr.ErrValue)

	v, err := CheckedCeilDiv(big.NewInt(7), big.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, int64(4), v.Int64())
}

func TestMinMax(t *testing.T) {
	a, b, c := big.NewInt(3), big.NewInt(-1), big.NewInt(8)
	require.Equal(t, int64(-1), Min(a, b, c).Int64())
	require.Equal(t, int64(8), Max(a, b, c).Int64())

	m := Min(a)
	m.SetInt64(100)
	require.Equal(t, int64(3), a.Int64(), "Min must return a copy")
}

func TestSortBigInts(t *testing.T) {
	vals := []*big.Int{big.NewInt(5), big.NewInt(-2), big.NewInt(9), big.NewInt(0)}
	require.NoError(t, SortBigInts(vals, Compare))
	got := make([]int64, len(vals))
	for i, v := range vals {
		got[i] = v.Int64()
	}
	require.Equal(t, []int64{-2, 0, 5, 9}, got)
}

func TestSortBigIntsNilResult(t *testing.T) {
	vals := []int{3, 1, 2}
	err := SortBigInts(vals, func(a, b int) *big.Int { return nil })
	require.Error(t, err)
	require.True(t, errors.Is(err, protoerr.ErrValue))
}

func TestUint64(t *testing.T) {
	v, err := Uint64(big.NewInt(42))
	require.NoError(t, err)
	require.Equal(t, uint64(42), v)

	_, err = Uint64(big.NewInt(-1))
	require.ErrorIs(t, err, protoerr.ErrValue)

	huge := new(big.Int).Lsh(big.NewInt(1), 64)
	_, err = Uint64(huge)
	require.ErrorIs(t, err, protoerr.ErrValue)
}

func TestRequireNonNegative(t *testing.T) {
	require.NoError(t, RequireNonNegative("x", big.NewInt(0)))
	require.ErrorIs(t, RequireNonNegative("x", big.NewInt(-5)), protoerr.ErrValue)
}
