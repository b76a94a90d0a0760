package okvs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func BenchmarkOKVS(b *testing.B) {

	const (
		n       = 1 << 12
		epsilon = 0.1
	)

	pairs := testPairs(n)

	b.Run(testString("Encode", n, epsilon), func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := Encode(pairs, epsilon); err != nil {
				b.Fatal(err)
			}
		}
	})

	enc, err := Encode(pairs, epsilon)
	require.NoError(b, err)

	b.Run(testString("Decode", n, epsilon), func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			enc.Decode("key-1024")
		}
	})
}
