package domain

import "math/bits"

// BasisPoints is a rate in 1/10000ths.
type BasisPoints uint32

// MaxBasisPoints is 100%.
const MaxBasisPoints BasisPoints = 10_000

// Valid reports whether b is at most 100%.
func (b BasisPoints) Valid() bool { return b <= MaxBasisPoints }

// FeeOf returns floor(total * b / 10000). The product is taken in 128 bits so
// large totals never overflow; the result is always <= total for valid rates.
func FeeOf(total uint64, b BasisPoints) uint64 {
	if b > MaxBasisPoints {
		b = MaxBasisPoints
	}
	hi, lo := bits.Mul64(total, uint64(b))
	q, _ := bits.Div64(hi, lo, uint64(MaxBasisPoints))
	return q
}

// MulAmount returns a*b and false when the product overflows uint64.
func MulAmount(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

// AddAmount returns a+b and false on overflow.
func AddAmount(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}
