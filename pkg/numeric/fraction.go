package numeric

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/Klingon-tech/covenantlab/internal/protoerr"
)

// Fraction is an unreduced rational number. Fractions are only compared
// after conversion to a common denominator.
type Fraction struct {
	Numerator   *big.Int `json:"numerator"`
	Denominator *big.Int `json:"denominator"`
}

// NewFraction builds n/d from int64 values.
func NewFraction(n, d int64) Fraction {
	return Fraction{Numerator: big.NewInt(n), Denominator: big.NewInt(d)}
}

// Validate rejects nil parts and a non-positive denominator.
func (f Fraction) Validate() error {
	if f.Numerator == nil || f.Denominator == nil {
		return protoerr.Valuef("fraction has nil part")
	}
	if f.Denominator.Sign() <= 0 {
		return protoerr.Valuef("fraction denominator must be positive, got %s", f.Denominator)
	}
	return nil
}

// ConvertDenominator rescales f into denominator d. The numerator is
// floored unless ceil is set.
func (f Fraction) ConvertDenominator(d *big.Int, ceil bool) Fraction {
	n := new(big.Int).Mul(f.Numerator, d)
	if ceil {
		n = CeilDiv(n, f.Denominator)
	} else {
		n = FloorDiv(n, f.Denominator)
	}
	return Fraction{Numerator: n, Denominator: new(big.Int).Set(d)}
}

// Cmp compares f and g exactly by cross-multiplication.
func (f Fraction) Cmp(g Fraction) int {
	a := new(big.Int).Mul(f.Numerator, g.Denominator)
	b := new(big.Int).Mul(g.Numerator, f.Denominator)
	return a.Cmp(b)
}

// MulCeil returns ceil(v * f).
func (f Fraction) MulCeil(v *big.Int) *big.Int {
	return CeilDiv(new(big.Int).Mul(v, f.Numerator), f.Denominator)
}

// MulFloor returns floor(v * f).
func (f Fraction) MulFloor(v *big.Int) *big.Int {
	return FloorDiv(new(big.Int).Mul(v, f.Numerator), f.Denominator)
}

// Float64 approximates f for display only.
func (f Fraction) Float64() float64 {
	r, _ := new(big.Rat).SetFrac(f.Numerator, f.Denominator).Float64()
	return r
}

// String returns "n/d".
func (f Fraction) String() string {
	return fmt.Sprintf("%s/%s", f.Numerator, f.Denominator)
}

// ParseFraction parses "n/d" or a bare integer "n" (denominator 1).
func ParseFraction(s string) (Fraction, error) {
	ns, ds, ok := strings.Cut(s, "/")
	if !ok {
		ds = "1"
	}
	n, ok := new(big.Int).SetString(ns, 10)
	if !ok {
		return Fraction{}, protoerr.Valuef("invalid fraction numerator %q", ns)
	}
	d, ok := new(big.Int).SetString(ds, 10)
	if !ok {
		return Fraction{}, protoerr.Valuef("invalid fraction denominator %q", ds)
	}
	f := Fraction{Numerator: n, Denominator: d}
	return f, f.Validate()
}
