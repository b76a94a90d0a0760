package okvs

import (
	"math/bits"

	"github.com/bits-and-blooms/bitset"
)

// row is one equation during elimination: the coefficient window anchored at
// the lead column, and the 64-bit payload the selected columns must combine
// to.
type row struct {
	lead  int
	coef  [2]uint64
	value uint64
}

// normalize advances the anchor to the first set coefficient. The window must
// not be fully zero; callers detect that case before calling.
func (r *row) normalize() {

	if r.coef[0] != 0 {
		tz := bits.TrailingZeros64(r.coef[0])
		if tz == 0 {
			return
		}
		r.lead += tz
		r.coef[0] = r.coef[0]>>tz | r.coef[1]<<(64-tz)
		r.coef[1] >>= tz
		return
	}

	tz := bits.TrailingZeros64(r.coef[1])
	r.lead += 64 + tz
	r.coef[0] = r.coef[1] >> tz
	r.coef[1] = 0
}

// eliminate runs banded elimination over GF(2), installing each row as the
// pivot of the first column where its window still has a set coefficient.
// Rows must arrive in ascending lead order, which keeps every exchange
// between windows anchored at the same column and the window span within one
// band width. Reports whether the system is consistent.
func eliminate(rows []row, pivots []row, occupied *bitset.BitSet) bool {
	for _, r := range rows {
		if !place(r, pivots, occupied) {
			return false
		}
	}
	return true
}

func place(r row, pivots []row, occupied *bitset.BitSet) bool {

	for r.coef[0] != 0 || r.coef[1] != 0 {

		r.normalize()

		if !occupied.Test(uint(r.lead)) {
			pivots[r.lead] = r
			occupied.Set(uint(r.lead))
			return true
		}

		p := &pivots[r.lead]
		r.coef[0] ^= p.coef[0]
		r.coef[1] ^= p.coef[1]
		r.value ^= p.value
	}

	// the window cancelled entirely, so the equation holds only for a zero
	// payload
	return r.value == 0
}

// backSubstitute resolves pivot columns from the highest down, so every tail
// column a pivot references is already final when read. Columns without a
// pivot keep whatever filler values already holds.
func backSubstitute(pivots []row, occupied *bitset.BitSet, values []uint64) {

	for c := len(values) - 1; c >= 0; c-- {

		if !occupied.Test(uint(c)) {
			continue
		}

		r := pivots[c]
		acc := r.value

		w := r.coef[0] &^ 1
		for w != 0 {
			j := bits.TrailingZeros64(w)
			acc ^= values[c+j]
			w &= w - 1
		}

		w = r.coef[1]
		for w != 0 {
			j := bits.TrailingZeros64(w)
			acc ^= values[c+64+j]
			w &= w - 1
		}

		values[c] = acc
	}
}
