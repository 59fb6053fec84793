package fixedmath

import (
	"errors"

	"github.com/holiman/uint256"
)

// The pricing and release formulas run over an unsigned 128-bit intermediate
// domain. Values are carried in uint256.Int for the overflow flags, but any
// intermediate result above 128 bits is rejected rather than allowed to grow
// into the spare headroom.
const domainBits = 128

var (
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrUnderflow      = errors.New("arithmetic underflow")
	ErrDivisionByZero = errors.New("division by zero")
)

// FromUint64 lifts an external 64-bit amount into the wide domain.
func FromUint64(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// ToUint64 narrows a wide value back to an external amount. Narrowing is the
// only place a value may leave the wide domain, and it fails loudly when the
// value does not fit.
func ToUint64(v *uint256.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, ErrOverflow
	}
	return v.Uint64(), nil
}

// Add returns x + y, failing with ErrOverflow when the sum leaves the domain.
func Add(x, y *uint256.Int) (*uint256.Int, error) {
	z, carry := new(uint256.Int).AddOverflow(x, y)
	if carry || z.BitLen() > domainBits {
		return nil, ErrOverflow
	}
	return z, nil
}

// Sub returns x - y, failing with ErrUnderflow when y exceeds x.
func Sub(x, y *uint256.Int) (*uint256.Int, error) {
	if x.Lt(y) {
		return nil, ErrUnderflow
	}
	return new(uint256.Int).Sub(x, y), nil
}

// Mul returns x * y, failing with ErrOverflow when the product leaves the
// domain.
func Mul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow || z.BitLen() > domainBits {
		return nil, ErrOverflow
	}
	return z, nil
}

// Div returns x / y truncated toward zero, failing with ErrDivisionByZero on a
// zero divisor.
func Div(x, y *uint256.Int) (*uint256.Int, error) {
	if y.IsZero() {
		return nil, ErrDivisionByZero
	}
	return new(uint256.Int).Div(x, y), nil
}
