package pir

import (
	"math/big"

	"github.com/ALTree/bigfloat"
)

// noisePrecision is the mantissa precision used to evaluate the failure
// probability. The bound underflows float64 for most parameter sets, hence
// the arbitrary-precision evaluation.
const noisePrecision = 128

// FailureUpperBound returns an upper bound on the probability that decoding an
// honestly-computed response fails to recover the stored element.
//
// Each response chunk carries an additive noise term that is a sum of NumRows
// independent products of a ternary coefficient with a plaintext chunk.
// Hoeffding's inequality bounds the probability that this sum reaches the
// rounding radius Delta/2, giving the per-chunk bound
//
//	2 * exp(-Delta^2 / (8 * NumRows * (PlaintextModulus-1)^2))
//
// and a union over the NumChunks chunks of an element yields the returned
// value.
func (p Parameters) FailureUpperBound() *big.Float {

	delta := new(big.Float).SetPrec(noisePrecision).SetUint64(uint64(p.Delta()))
	width := new(big.Float).SetPrec(noisePrecision).SetUint64(uint64(p.PlaintextModulus() - 1))
	rows := new(big.Float).SetPrec(noisePrecision).SetInt64(int64(p.numRows))

	num := new(big.Float).Mul(delta, delta)

	den := new(big.Float).Mul(width, width)
	den.Mul(den, rows)
	den.Mul(den, new(big.Float).SetPrec(noisePrecision).SetInt64(8))

	exponent := new(big.Float).Quo(num, den)
	exponent.Neg(exponent)

	bound := bigfloat.Exp(exponent)
	bound.Mul(bound, new(big.Float).SetPrec(noisePrecision).SetInt64(int64(2*p.NumChunks())))

	return bound
}
