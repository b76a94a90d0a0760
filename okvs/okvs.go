// Package okvs implements an oblivious key-value store over random banded
// systems: Encode compresses a string-to-float64 map into a vector of
// uniform-looking words, and Decode recovers the value of an encoded key from
// a short window of that vector. The vector leaks neither the keys nor which
// of its positions carry information.
package okvs

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/tuneinsight/lattigo/v5/utils"
	"github.com/tuneinsight/lattigo/v5/utils/buffer"
	"github.com/tuneinsight/lattigo/v5/utils/sampling"
)

// maxEncodingTrials bounds how many band seeds Encode tries before giving up
// on an unsolvable input.
const maxEncodingTrials = 8

var (
	// ErrInvalidEpsilon is returned by Encode when the expansion factor is
	// zero, negative or NaN.
	ErrInvalidEpsilon = errors.New("okvs: expansion factor must be positive")

	// ErrEncodingFailed is returned by Encode when no trial produced a
	// solvable system. Colliding key digests make this permanent; anything
	// else is bad luck at a very small expansion factor.
	ErrEncodingFailed = errors.New("okvs: encoding failed")

	// ErrMalformedEncoding is returned when deserialization encounters
	// dimensions that no encoder produces.
	ErrMalformedEncoding = errors.New("okvs: malformed encoding")
)

// Encoding is an encoded key-value map. The zero value is not usable; obtain
// encodings from [Encode] or by deserializing one.
type Encoding struct {
	kvCount   int
	bandWidth int
	trialSeed [32]byte
	values    []uint64
}

// layout derives the vector length and band width for kvCount pairs at the
// given expansion factor.
func layout(kvCount int, epsilon float64) (columns, bandWidth int) {

	columns = int(math.Ceil(float64(kvCount) * (1 + epsilon)))

	bandWidth = columns * 80 / 100
	if bandWidth < 8 {
		bandWidth = 8
	}
	if bandWidth > bandCap {
		bandWidth = bandCap
	}
	if bandWidth > columns-1 {
		bandWidth = columns - 1
	}

	return
}

// Encode builds an encoding of pairs using a vector of ceil((1+epsilon) *
// len(pairs)) words. Smaller epsilon gives a more compact vector at the cost
// of a higher chance that a trial produces an unsolvable system; the
// derivation seed is redrawn on failure, up to a fixed number of trials.
// Values of 0.05 and above are reliable for maps beyond a few hundred pairs.
//
// An empty map encodes to a valid empty encoding that decodes every key to
// zero.
func Encode(pairs map[string]float64, epsilon float64) (*Encoding, error) {

	if !(epsilon > 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidEpsilon, epsilon)
	}

	if len(pairs) == 0 {
		return &Encoding{values: make([]uint64, 0)}, nil
	}

	columns, bandWidth := layout(len(pairs), epsilon)

	keys := utils.GetSortedKeys(pairs)
	digests := make([][8]byte, len(keys))
	payloads := make([]uint64, len(keys))
	for i, k := range keys {
		digests[i] = keyDigest(k)
		payloads[i] = math.Float64bits(pairs[k])
	}

	seedSource, err := sampling.NewPRNG()
	if err != nil {
		return nil, err
	}

	rows := make([]row, len(keys))
	pivots := make([]row, columns)
	occupied := bitset.New(uint(columns))

	for trial := 0; trial < maxEncodingTrials; trial++ {

		var seed [32]byte
		if _, err := io.ReadFull(seedSource, seed[:]); err != nil {
			return nil, err
		}

		for i := range rows {
			b := deriveBand(seed, digests[i], columns, bandWidth)
			rows[i] = row{lead: b.start, coef: b.coef, value: payloads[i]}
		}

		sort.SliceStable(rows, func(i, j int) bool { return rows[i].lead < rows[j].lead })

		occupied.ClearAll()
		if !eliminate(rows, pivots, occupied) {
			continue
		}

		enc := &Encoding{
			kvCount:   len(keys),
			bandWidth: bandWidth,
			trialSeed: seed,
			values:    make([]uint64, columns),
		}

		filler, err := sampling.NewKeyedPRNG(seed[:])
		if err != nil {
			return nil, err
		}
		fillUniform(filler, enc.values)

		backSubstitute(pivots, occupied, enc.values)

		return enc, nil
	}

	return nil, fmt.Errorf("%w: no solvable system in %d trials for %d pairs", ErrEncodingFailed, maxEncodingTrials, len(pairs))
}

// Decode recovers the value bound to key. Keys that were not part of the
// encoded map decode to a pseudorandom float64 rather than an error; callers
// that need membership must track it out of band. An empty encoding decodes
// every key to zero.
func (e *Encoding) Decode(key string) float64 {

	if len(e.values) == 0 {
		return 0
	}

	b := deriveBand(e.trialSeed, keyDigest(key), len(e.values), e.bandWidth)

	var acc uint64
	for w := 0; w < 2; w++ {
		c := b.coef[w]
		for c != 0 {
			j := bits.TrailingZeros64(c)
			acc ^= e.values[b.start+(w<<6)+j]
			c &= c - 1
		}
	}

	return math.Float64frombits(acc)
}

// Size returns the number of key-value pairs the encoding was built from.
func (e *Encoding) Size() int {
	return e.kvCount
}

// Columns returns the length of the encoded vector.
func (e *Encoding) Columns() int {
	return len(e.values)
}

// BandWidth returns the coefficient window width shared by every band.
func (e *Encoding) BandWidth() int {
	return e.bandWidth
}

// fillUniform draws uniform words from prng into out.
func fillUniform(prng io.Reader, out []uint64) {

	buf := make([]byte, 1<<13)

	for len(out) > 0 {

		n := len(out)
		if n > len(buf)>>3 {
			n = len(buf) >> 3
		}

		if _, err := io.ReadFull(prng, buf[:n<<3]); err != nil {
			panic(err)
		}

		for i := 0; i < n; i++ {
			out[i] = binary.LittleEndian.Uint64(buf[i<<3:])
		}

		out = out[n:]
	}
}

// BinarySize returns the size in bytes of the serialized encoding.
func (e *Encoding) BinarySize() int {
	// kvCount, bandWidth, seed, vector length, vector words
	return 8 + 8 + 32 + 8 + (len(e.values) << 3)
}

// WriteTo writes the encoding on w.
func (e *Encoding) WriteTo(w io.Writer) (n int64, err error) {
	switch w := w.(type) {
	case buffer.Writer:

		var inc int64

		if inc, err = buffer.WriteInt(w, e.kvCount); err != nil {
			return n + inc, err
		}
		n += inc

		if inc, err = buffer.WriteInt(w, e.bandWidth); err != nil {
			return n + inc, err
		}
		n += inc

		if inc, err = buffer.WriteUint8Slice(w, e.trialSeed[:]); err != nil {
			return n + inc, err
		}
		n += inc

		if inc, err = buffer.WriteInt(w, len(e.values)); err != nil {
			return n + inc, err
		}
		n += inc

		if inc, err = buffer.WriteUint64Slice(w, e.values); err != nil {
			return n + inc, err
		}
		n += inc

		return n, w.Flush()

	default:
		return e.WriteTo(bufio.NewWriter(w))
	}
}

// ReadFrom reads an encoding from r and overwrites the receiver.
func (e *Encoding) ReadFrom(r io.Reader) (n int64, err error) {
	switch r := r.(type) {
	case buffer.Reader:

		var inc int64

		if inc, err = buffer.ReadInt(r, &e.kvCount); err != nil {
			return n + inc, err
		}
		n += inc

		if e.kvCount < 0 {
			return n, fmt.Errorf("%w: negative pair count", ErrMalformedEncoding)
		}

		if inc, err = buffer.ReadInt(r, &e.bandWidth); err != nil {
			return n + inc, err
		}
		n += inc

		if e.bandWidth < 0 || e.bandWidth > bandCap {
			return n, fmt.Errorf("%w: band width %d outside [0, %d]", ErrMalformedEncoding, e.bandWidth, bandCap)
		}

		if inc, err = buffer.ReadUint8Slice(r, e.trialSeed[:]); err != nil {
			return n + inc, err
		}
		n += inc

		var size int
		if inc, err = buffer.ReadInt(r, &size); err != nil {
			return n + inc, err
		}
		n += inc

		if size < 0 {
			return n, fmt.Errorf("%w: negative vector length", ErrMalformedEncoding)
		}

		// a non-empty vector needs a band that stays within it, or Decode
		// would index out of range
		if size > 0 && (e.bandWidth == 0 || e.bandWidth > size) {
			return n, fmt.Errorf("%w: band width %d over a %d-word vector", ErrMalformedEncoding, e.bandWidth, size)
		}

		e.values = make([]uint64, size)

		if inc, err = buffer.ReadUint64Slice(r, e.values); err != nil {
			return n + inc, err
		}
		n += inc

		return n, nil

	default:
		return e.ReadFrom(bufio.NewReader(r))
	}
}

// MarshalBinary encodes the encoding into a byte slice.
func (e *Encoding) MarshalBinary() (data []byte, err error) {
	buf := buffer.NewBufferSize(e.BinarySize())
	if _, err = e.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a byte slice generated by [Encoding.MarshalBinary]
// on the receiver.
func (e *Encoding) UnmarshalBinary(data []byte) error {
	_, err := e.ReadFrom(buffer.NewBuffer(data))
	return err
}
