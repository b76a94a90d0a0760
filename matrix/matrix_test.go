package matrix

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tuneinsight/lattigo/v5/utils/buffer"
	"github.com/tuneinsight/lattigo/v5/utils/sampling"
)

func TestTransposeMulVec(t *testing.T) {

	// 2x3 matrix
	// [1 2 3]
	// [4 5 6]
	m := NewMatrix(2, 3)
	copy(m.Data, []uint32{1, 2, 3, 4, 5, 6})

	out := m.TransposeMulVec([]uint32{10, 100})
	require.Equal(t, []uint32{410, 520, 630}, out)

	require.Panics(t, func() { m.TransposeMulVec([]uint32{1, 2, 3}) })
}

func TestTransposeMulVecWrapAround(t *testing.T) {

	m := NewMatrix(2, 1)
	copy(m.Data, []uint32{0xFFFFFFFF, 2})

	// 3*(2^32-1) + 2 = 3*2^32 - 1 = 2^32 - 1 (mod 2^32)
	out := m.TransposeMulVec([]uint32{3, 1})
	require.Equal(t, []uint32{0xFFFFFFFF}, out)
}

func TestUniformExpansionIsDeterministic(t *testing.T) {

	key := make([]byte, 32)
	key[0] = 0x42

	prng0, err := sampling.NewKeyedPRNG(key)
	require.NoError(t, err)
	prng1, err := sampling.NewKeyedPRNG(key)
	require.NoError(t, err)

	m0, err := NewUniformMatrix(prng0, 16, 33)
	require.NoError(t, err)
	m1, err := NewUniformMatrix(prng1, 16, 33)
	require.NoError(t, err)

	require.True(t, m0.Equal(m1))

	otherKey := make([]byte, 32)
	otherKey[0] = 0x43

	prng2, err := sampling.NewKeyedPRNG(otherKey)
	require.NoError(t, err)

	m2, err := NewUniformMatrix(prng2, 16, 33)
	require.NoError(t, err)

	require.False(t, m0.Equal(m2))
}

func TestUniformVector(t *testing.T) {

	prng, err := sampling.NewPRNG()
	require.NoError(t, err)

	v, err := UniformVector(prng, 1000)
	require.NoError(t, err)
	require.Equal(t, 1000, len(v))

	// a fresh uniform vector of this length is all-zero with negligible probability
	allZero := true
	for _, x := range v {
		if x != 0 {
			allZero = false
			break
		}
	}
	require.False(t, allZero)
}

func TestEqual(t *testing.T) {

	m0 := NewMatrix(2, 2)
	m1 := NewMatrix(2, 2)
	require.True(t, m0.Equal(m1))

	m1.Data[3] = 1
	require.False(t, m0.Equal(m1))

	require.False(t, m0.Equal(NewMatrix(2, 3)))
	require.False(t, m0.Equal(nil))
}

func TestSerialization(t *testing.T) {

	prng, err := sampling.NewPRNG()
	require.NoError(t, err)

	m, err := NewUniformMatrix(prng, 7, 13)
	require.NoError(t, err)

	buffer.RequireSerializerCorrect(t, m)

	buffer.RequireSerializerCorrect(t, NewMatrix(0, 0))
}
