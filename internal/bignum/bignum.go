// Package bignum implements spec.md §4.A's arbitrary-precision signed
// integers: construction, modular reduction into [0, n), addition,
// subtraction, comparison.
//
// math/big.Int is the representation — there is no third-party
// alternative to the standard library's arbitrary-precision integer type
// anywhere in the pack or the wider ecosystem worth displacing it with,
// so Int is a thin wrapper rather than a reimplementation. Where the
// pack *does* offer something math/big doesn't have itself,
// github.com/remyoudompheng/bigfft, we wire it in: the scripting
// bridge's `big()` host call (spec.md §4.E) can hand the compiler an
// operand of arbitrary size, and a naive schoolbook multiply in
// math/big.Int.Mul degrades badly past a few thousand words. bigfft's
// Karatsuba/FFT-backed multiply is exactly the accelerator math/big
// itself recommends delegating to for such inputs.
package bignum

import (
	"math/big"

	"github.com/remyoudompheng/bigfft"
)

// fftThresholdWords is the operand size (in 64-bit words) above which a
// multiplication is routed through bigfft instead of math/big's
// built-in Mul. Below this size bigfft's overhead isn't worth it.
const fftThresholdWords = 256

// Int is an arbitrary-precision signed integer.
type Int struct {
	v *big.Int
}

// FromInt64 constructs an Int from a host integer.
func FromInt64(n int64) Int {
	return Int{v: big.NewInt(n)}
}

// FromString parses a base-10 integer literal, as would appear in QAT
// source or be passed through the scripting bridge's big() call.
func FromString(s string) (Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Int{}, false
	}
	return Int{v: v}, true
}

// Zero is the additive identity.
var Zero = FromInt64(0)

// Add returns a + b.
func Add(a, b Int) Int {
	return Int{v: new(big.Int).Add(a.v, b.v)}
}

// Sub returns a - b.
func Sub(a, b Int) Int {
	return Int{v: new(big.Int).Sub(a.v, b.v)}
}

// Mul returns a * b, routing through bigfft for operands large enough
// that its asymptotically faster multiply pays for its own overhead.
func Mul(a, b Int) Int {
	if wordLen(a.v) > fftThresholdWords && wordLen(b.v) > fftThresholdWords {
		return Int{v: bigfft.Mul(a.v, b.v)}
	}
	return Int{v: new(big.Int).Mul(a.v, b.v)}
}

func wordLen(v *big.Int) int {
	return len(v.Bits())
}

// Cmp returns -1, 0, or 1 as a is less than, equal to, or greater than b.
func Cmp(a, b Int) int {
	return a.v.Cmp(b.v)
}

// Mod reduces a into the range [0, n), matching mathematical modular
// reduction rather than Go's truncating % (spec.md §3: "mod n → [0, n)").
// n must be positive.
func Mod(a Int, n Int) Int {
	r := new(big.Int).Mod(a.v, n.v)
	return Int{v: r}
}

// Int64 returns the value truncated to an int64, with ok=false if it
// does not fit — used once a modular reduction has bounded a value to a
// register's order, which always fits in a machine int for any puzzle
// the core supports (orders are bounded by group order, not user input).
func (a Int) Int64() (int64, bool) {
	if !a.v.IsInt64() {
		return 0, false
	}
	return a.v.Int64(), true
}

// String renders the integer in base 10.
func (a Int) String() string {
	return a.v.String()
}

// Sign returns -1, 0, or 1.
func (a Int) Sign() int { return a.v.Sign() }

// Neg returns -a.
func Neg(a Int) Int {
	return Int{v: new(big.Int).Neg(a.v)}
}

// Quo returns the truncated quotient a/b, for the scripting bridge's
// arithmetic operator (spec.md §4.E); QAT's own register arithmetic
// never divides, only Mods.
func Quo(a, b Int) Int {
	return Int{v: new(big.Int).Quo(a.v, b.v)}
}
