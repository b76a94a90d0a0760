package okvs

import (
	"encoding/binary"
	"io"
	"math/bits"

	"github.com/tuneinsight/lattigo/v5/utils/sampling"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

// bandCap is the widest coefficient window the layout will select. Two
// 64-bit words cover every window the solver manipulates.
const bandCap = 128

// band is the sparse equation a key contributes to the system: coefficient j
// of the window addresses column start+j, and bit 0 is always set.
type band struct {
	start int
	coef  [2]uint64
}

// keyDigest reduces a key to the 8 bytes that seed its band derivation.
func keyDigest(key string) (d [8]byte) {
	sum := blake2b.Sum512([]byte(key))
	copy(d[:], sum[:8])
	return
}

// deriveBand expands the band of a key from the encoding seed and the key
// digest. The derivation is deterministic, so encoder and decoder agree on
// the band without exchanging anything beyond the seed.
func deriveBand(seed [32]byte, digest [8]byte, columns, bandWidth int) band {

	h := blake3.New()
	h.Write(seed[:])
	h.Write(digest[:])

	prng, err := sampling.NewKeyedPRNG(h.Sum(nil))
	if err != nil {
		panic(err)
	}

	b := band{start: sampleStart(prng, columns-bandWidth+1)}

	var buf [16]byte
	if _, err := io.ReadFull(prng, buf[:(bandWidth+7)>>3]); err != nil {
		panic(err)
	}

	b.coef[0] = binary.LittleEndian.Uint64(buf[:8])
	b.coef[1] = binary.LittleEndian.Uint64(buf[8:])

	// mask off bits beyond the band and pin the leading coefficient
	if bandWidth < 64 {
		b.coef[0] &= 1<<bandWidth - 1
		b.coef[1] = 0
	} else if bandWidth < 128 {
		b.coef[1] &= 1<<(bandWidth-64) - 1
	}
	b.coef[0] |= 1

	return b
}

// sampleStart draws a uniform value in [0, limit) by masked rejection.
func sampleStart(prng io.Reader, limit int) int {

	if limit <= 1 {
		return 0
	}

	mask := uint64(1)<<bits.Len64(uint64(limit-1)) - 1

	var buf [8]byte
	for {
		if _, err := io.ReadFull(prng, buf[:]); err != nil {
			panic(err)
		}
		if v := binary.LittleEndian.Uint64(buf[:]) & mask; v < uint64(limit) {
			return int(v)
		}
	}
}
