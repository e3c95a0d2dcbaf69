package oa

import (
	"math/big"

	"github.com/cockroachdb/apd/v3"
)

const (
	// MaxScale is the largest DECIMAL scale.
	MaxScale = 28

	// DecimalNegative is the DECIMAL sign byte of a negative value.
	DecimalNegative = 0x80

	currencyExponent = -4
)

// Decimal is the unpacked 96-bit DECIMAL representation.
type Decimal struct {
	Lo64  uint64
	Hi32  uint32
	Scale uint8
	Sign  uint8
}

var (
	maxCoefficient = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 96), big.NewInt(1))
	quantizer      = newContext()
)

func newContext() *apd.Context {
	ctx := apd.BaseContext.WithPrecision(64)
	ctx.Rounding = apd.RoundHalfEven
	return ctx
}

// CurrencyToDecimal converts a CY value, an int64 scaled by 10^4.
func CurrencyToDecimal(cy int64) *apd.Decimal {
	return apd.New(cy, currencyExponent)
}

// DecimalToCurrency rounds d half-to-even to four fractional digits. It
// fails when d is not finite or the scaled value leaves the int64 range.
func DecimalToCurrency(d *apd.Decimal) (int64, bool) {
	if d.Form != apd.Finite {
		return 0, false
	}
	var q apd.Decimal
	if _, err := quantizer.Quantize(&q, d, currencyExponent); err != nil {
		return 0, false
	}
	coeff := q.Coeff.MathBigInt()
	if q.Negative {
		coeff.Neg(coeff)
	}
	if !coeff.IsInt64() {
		return 0, false
	}
	return coeff.Int64(), true
}

// DecimalToAPD converts an unpacked DECIMAL. Scales above MaxScale are
// rejected.
func DecimalToAPD(d Decimal) (*apd.Decimal, bool) {
	if d.Scale > MaxScale {
		return nil, false
	}
	coeff := new(big.Int).SetUint64(uint64(d.Hi32))
	coeff.Lsh(coeff, 64)
	coeff.Or(coeff, new(big.Int).SetUint64(d.Lo64))

	out := apd.NewWithBigInt(new(apd.BigInt).SetMathBigInt(coeff), -int32(d.Scale))
	out.Negative = d.Sign&DecimalNegative != 0 && !out.IsZero()
	return out, true
}

// APDToDecimal packs d into 96 bits. Exponents below -MaxScale are rounded
// half-to-even; positive exponents are folded into the coefficient. It
// fails when d is not finite or the coefficient needs more than 96 bits.
func APDToDecimal(d *apd.Decimal) (Decimal, bool) {
	if d.Form != apd.Finite {
		return Decimal{}, false
	}
	exp := min(max(d.Exponent, -MaxScale), 0)
	var q apd.Decimal
	if _, err := quantizer.Quantize(&q, d, exp); err != nil {
		return Decimal{}, false
	}
	coeff := q.Coeff.MathBigInt()
	if coeff.Cmp(maxCoefficient) > 0 {
		return Decimal{}, false
	}
	out := Decimal{
		Lo64:  new(big.Int).And(coeff, new(big.Int).SetUint64(^uint64(0))).Uint64(),
		Hi32:  uint32(new(big.Int).Rsh(coeff, 64).Uint64()),
		Scale: uint8(-q.Exponent),
	}
	if q.Negative && coeff.Sign() != 0 {
		out.Sign = DecimalNegative
	}
	return out, true
}
