package fpmath

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrDivisionByZero = errors.New("fpmath: division by zero")
	ErrOverflow       = errors.New("fpmath: overflow")
)

const (
	// RateBase is the denominator for all six-decimal percentage rates.
	RateBase = 1_000_000
	// MintFactorBase scales the USD value of one whole asset unit.
	MintFactorBase = 1_000_000_000_000_000_000
	// SecondsPerDay converts tenures expressed in whole days to unix time.
	SecondsPerDay = 86_400
	// DaysPerYear is the annualisation basis for tenure fractions.
	DaysPerYear = 365
)

var (
	rateBase = uint256.NewInt(RateBase)
	ten      = uint256.NewInt(10)
)

// MulDiv computes a*b/c over a full-width 512-bit intermediate so the product
// may exceed 256 bits as long as the quotient does not. Division truncates
// toward zero. A zero divisor or a quotient that does not fit 256 bits is an
// arithmetic fault, never a silently wrapped value.
func MulDiv(a, b, c *uint256.Int) (*uint256.Int, error) {
	if c == nil || c.IsZero() {
		return nil, ErrDivisionByZero
	}
	if a == nil || b == nil {
		return new(uint256.Int), nil
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, c)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// ScaledPercent applies a six-decimal fixed-point rate to value, computing
// value*rate/RateBase with MulDiv semantics.
func ScaledPercent(value, rate *uint256.Int) (*uint256.Int, error) {
	return MulDiv(value, rate, rateBase)
}

// Pow10 returns 10^n, used to build decimal scales for asset precisions.
func Pow10(n uint8) *uint256.Int {
	return new(uint256.Int).Exp(ten, uint256.NewInt(uint64(n)))
}
