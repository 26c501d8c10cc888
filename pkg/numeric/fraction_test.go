package numeric

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/covenantlab/internal/protoerr"
)

func TestConvertDenominator(t *testing.T) {
	f := NewFraction(100, 64258078)
	d := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	floor := f.ConvertDenominator(d, false)
	ceil := f.ConvertDenominator(d, true)

	require.Equal(t, d.String(), floor.Denominator.String())
	require.Equal(t, "1556224573041", floor.Numerator.String())
	require.Equal(t, "1556224573042", ceil.Numerator.String())
	require.LessOrEqual(t, floor.Cmp(f), 0)
	require.GreaterOrEqual(t, ceil.Cmp(f), 0)
}

func TestConvertDenominatorExact(t *testing.T) {
	f := NewFraction(3, 4)
	g := f.ConvertDenominator(big.NewInt(100), true)
	require.Equal(t, int64(75), g.Numerator.Int64())
	require.Equal(t, 0, g.Cmp(f))
}

func TestFractionCmp(t *testing.T) {
	require.Equal(t, 0, NewFraction(1, 2).Cmp(NewFraction(2, 4)))
	require.Equal(t, -1, NewFraction(1, 3).Cmp(NewFraction(1, 2)))
	require.Equal(t, 1, NewFraction(2, 3).Cmp(NewFraction(1, 2)))
}

func TestFractionMul(t *testing.T) {
	f := NewFraction(3, 2)
	require.Equal(t, int64(2), f.MulFloor(big.NewInt(1)).Int64())
	require.Equal(t, int64(1), NewFraction(1, 2).MulFloor(big.NewInt(3)).Int64())
	require.Equal(t, int64(2), NewFraction(1, 2).MulCeil(big.NewInt(3)).Int64())
}

func TestParseFraction(t *testing.T) {
	f, err := ParseFraction("100/64258078")
	require.NoError(t, err)
	require.Equal(t, "100/64258078", f.String())

	f, err = ParseFraction("5")
	require.NoError(t, err)
	require.Equal(t, "5/1", f.String())

	for _, bad := range []string{"", "a/b", "1/0", "1/-3", "1/x"} {
		_, err := ParseFraction(bad)
		require.ErrorIs(t, err, protoerr.ErrValue, bad)
	}
}
