// Fixed-point load arithmetic.
//
// Loads and Phragmen scores are fractions in [0, 1]-ish range divided by
// approval stakes that can be as large as 2^128, so the denominator must be
// big enough that reciprocals of 128-bit stakes keep precision. We use a
// constant denominator of 10^40 (> 2^132) on big.Int numerators. No float64
// is used anywhere in this package: identical inputs produce bit-identical
// loads on every platform.

package election

import "math/big"

// fixedDenom = 10^40.
var fixedDenom = new(big.Int).Exp(big.NewInt(10), big.NewInt(40), nil)

// Fixed is a fixed-point fraction: value = n / fixedDenom.
type Fixed struct {
	n *big.Int
}

func fixedZero() Fixed {
	return Fixed{n: new(big.Int)}
}

func (f Fixed) Sub(g Fixed) Fixed {
	return Fixed{n: new(big.Int).Sub(f.n, g.n)}
}

func (f Fixed) Cmp(g Fixed) int {
	return f.n.Cmp(g.n)
}

func (f Fixed) IsZero() bool {
	return f.n.Sign() == 0
}

// MulInt returns f * s as a raw numerator (value still over fixedDenom).
func (f Fixed) MulInt(s *big.Int) *big.Int {
	return new(big.Int).Mul(f.n, s)
}

// mulDiv returns floor(s * num / den). Used to split a stake proportionally
// to two fixed-point loads; the fixed denominators cancel.
func mulDiv(s, num, den *big.Int) *big.Int {
	out := new(big.Int).Mul(s, num)
	return out.Quo(out, den)
}
