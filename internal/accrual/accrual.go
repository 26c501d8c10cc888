// Package accrual computes loan interest and converts between the stable
// token and the native asset at an oracle price. All debt-side rounding is
// upward.
package accrual

import (
	"math/big"

	"github.com/Klingon-tech/covenantlab/internal/protoerr"
	"github.com/Klingon-tech/covenantlab/pkg/numeric"
)

const (
	// SecondsPerYear is the accrual year, 365 days.
	SecondsPerYear = 31_536_000
	// BasisPoints is the denominator of rates expressed in bp.
	BasisPoints = 10_000
	// NativeUnit is the number of base units in one native coin; oracle
	// prices are quoted in token units per NativeUnit.
	NativeUnit = 100_000_000
)

var (
	secondsPerYear = big.NewInt(SecondsPerYear)
	basisPoints    = big.NewInt(BasisPoints)
	nativeUnit     = big.NewInt(NativeUnit)
)

// InterestOwed returns ceil(principal * bp * (now - loanTS) / (10000 * year)).
func InterestOwed(principal, annualInterestBP, now, loanTS *big.Int) (*big.Int, error) {
	if err := nonNegative(map[string]*big.Int{"principal": principal, "interest rate": annualInterestBP, "timestamp": now}); err != nil {
		return nil, err
	}
	if now.Cmp(loanTS) < 0 {
		return nil, protoerr.Valuef("current time %s is before loan time %s", now, loanTS)
	}
	elapsed := new(big.Int).Sub(now, loanTS)
	n := new(big.Int).Mul(principal, annualInterestBP)
	n.Mul(n, elapsed)
	d := new(big.Int).Mul(basisPoints, secondsPerYear)
	return numeric.CeilDiv(n, d), nil
}

// TotalOwed returns principal plus InterestOwed.
func TotalOwed(principal, annualInterestBP, now, loanTS *big.Int) (*big.Int, error) {
	interest, err := InterestOwed(principal, annualInterestBP, now, loanTS)
	if err != nil {
		return nil, err
	}
	return interest.Add(interest, principal), nil
}

// RedeemableNativeAmount converts a token debt into native units at price,
// rounding up.
func RedeemableNativeAmount(totalOwed, price *big.Int) (*big.Int, error) {
	if err := checkPrice(price); err != nil {
		return nil, err
	}
	if err := numeric.RequireNonNegative("owed amount", totalOwed); err != nil {
		return nil, err
	}
	return numeric.CeilDiv(new(big.Int).Mul(totalOwed, nativeUnit), price), nil
}

// CollateralValue returns the token value of native collateral at price,
// rounding down.
func CollateralValue(collateral, price *big.Int) (*big.Int, error) {
	if err := checkPrice(price); err != nil {
		return nil, err
	}
	if err := numeric.RequireNonNegative("collateral", collateral); err != nil {
		return nil, err
	}
	return numeric.FloorDiv(new(big.Int).Mul(collateral, price), nativeUnit), nil
}

// CollateralRatio returns collateral value over debt as an unreduced
// fraction.
func CollateralRatio(collateral, price, totalOwed *big.Int) (numeric.Fraction, error) {
	if totalOwed.Sign() <= 0 {
		return numeric.Fraction{}, protoerr.Valuef("owed amount must be positive, got %s", totalOwed)
	}
	value, err := CollateralValue(collateral, price)
	if err != nil {
		return numeric.Fraction{}, err
	}
	return numeric.Fraction{Numerator: value, Denominator: new(big.Int).Set(totalOwed)}, nil
}

// RequiredCollateral returns the smallest native amount whose value covers
// totalOwed * minRatio at price.
func RequiredCollateral(totalOwed, price *big.Int, minRatio numeric.Fraction) (*big.Int, error) {
	if err := checkPrice(price); err != nil {
		return nil, err
	}
	if err := minRatio.Validate(); err != nil {
		return nil, err
	}
	if err := numeric.RequireNonNegative("owed amount", totalOwed); err != nil {
		return nil, err
	}
	n := new(big.Int).Mul(totalOwed, minRatio.Numerator)
	n.Mul(n, nativeUnit)
	d := new(big.Int).Mul(minRatio.Denominator, price)
	return numeric.CeilDiv(n, d), nil
}

// BelowRatio reports whether ratio is strictly below min.
func BelowRatio(ratio, min numeric.Fraction) bool {
	return ratio.Cmp(min) < 0
}

func checkPrice(price *big.Int) error {
	if price == nil || price.Sign() <= 0 {
		return protoerr.Valuef("oracle price must be positive, got %v", price)
	}
	return nil
}

func nonNegative(fields map[string]*big.Int) error {
	for name, v := range fields {
		if v == nil {
			return protoerr.Valuef("%s is missing", name)
		}
		if err := numeric.RequireNonNegative(name, v); err != nil {
			return err
		}
	}
	return nil
}
