// Package numeric holds the arbitrary-precision helpers used by every
// protocol layer. Rounding that favors the protocol goes through CeilDiv,
// amounts paid to a user go through FloorDiv.
package numeric

import (
	"math/big"
	"sort"

	"github.com/Klingon-tech/covenantlab/internal/protoerr"
)

var (
	zero = big.NewInt(0)
	one  = big.NewInt(1)
)

// ErrDivisionByZero is returned when a divisor is zero.
var ErrDivisionByZero = protoerr.Valuef("division by zero")

// CeilDiv returns ceil(a / b) for b > 0. The quotient is bumped by one iff
// truncation dropped a positive remainder.
func CeilDiv(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() > 0 && b.Sign() > 0 || r.Sign() < 0 && b.Sign() < 0 {
		q.Add(q, one)
	}
	return q
}

// FloorDiv returns floor(a / b).
func FloorDiv(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 && (r.Sign() < 0) != (b.Sign() < 0) {
		q.Sub(q, one)
	}
	return q
}

// CheckedCeilDiv is CeilDiv returning ErrDivisionByZero instead of panicking.
func CheckedCeilDiv(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	return CeilDiv(a, b), nil
}

// Min returns the smallest of the values. It panics on an empty list.
func Min(vals ...*big.Int) *big.Int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v.Cmp(m) < 0 {
			m = v
		}
	}
	return new(big.Int).Set(m)
}

// Max returns the largest of the values. It panics on an empty list.
func Max(vals ...*big.Int) *big.Int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v.Cmp(m) > 0 {
			m = v
		}
	}
	return new(big.Int).Set(m)
}

// Compare is the ascending comparator: negative, zero or positive as a <, ==, > b.
func Compare(a, b *big.Int) *big.Int {
	return new(big.Int).Sub(a, b)
}

// Comparator orders two values by the sign of its result.
type Comparator[T any] func(a, b T) *big.Int

// SortBigInts sorts vals in place with cmp. A nil comparator result is a
// ValueError and leaves vals in an unspecified order.
func SortBigInts[T any](vals []T, cmp Comparator[T]) (err error) {
	sort.SliceStable(vals, func(i, j int) bool {
		if err != nil {
			return false
		}
		r := cmp(vals[i], vals[j])
		if r == nil {
			err = protoerr.Valuef("comparator returned a non-integer result")
			return false
		}
		return r.Sign() < 0
	})
	return err
}

// Uint64 converts v to uint64, failing when it does not fit.
func Uint64(v *big.Int) (uint64, error) {
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, protoerr.Valuef("value %s out of uint64 range", v)
	}
	return v.Uint64(), nil
}

// IsZero reports whether v is zero.
func IsZero(v *big.Int) bool {
	return v.Cmp(zero) == 0
}

// RequireNonNegative returns a ValueError naming field when v < 0.
func RequireNonNegative(field string, v *big.Int) error {
	if v.Sign() < 0 {
		return protoerr.Valuef("%s must not be negative, got %s", field, v)
	}
	return nil
}
