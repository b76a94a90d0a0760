package keyword

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tuneinsight/lattigo/v5/utils"
	"github.com/tuneinsight/lattigo/v5/utils/buffer"

	"github.com/mundrapranay/silhouette-crypto/pir"
)

func testEntries(n int) map[string]float64 {
	entries := make(map[string]float64, n)
	for i := 0; i < n; i++ {
		entries[fmt.Sprintf("pir-test-key-%d", i)] = float64(i) * 0.789
	}
	return entries
}

// testOptions keeps the lattice dimension small and the row map roomy so the
// full build-query cycle stays cheap.
var testOptions = Options{LWEDimension: 512, Epsilon: 0.25}

func TestDirectoryRoundTrip(t *testing.T) {

	entries := testEntries(100)

	dir, err := BuildDirectory(entries, testOptions)
	require.NoError(t, err)
	require.Equal(t, 100, dir.Size())

	client, err := NewClient(dir.Manifest())
	require.NoError(t, err)

	for key, want := range entries {

		query, st, err := client.Request(key)
		require.NoError(t, err)

		resp, err := dir.Respond(query)
		require.NoError(t, err)

		got, err := DecodeValue(st, resp)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestRowAssignmentFollowsSortedKeys(t *testing.T) {

	entries := testEntries(10)

	dir, err := BuildDirectory(entries, testOptions)
	require.NoError(t, err)

	client, err := NewClient(dir.Manifest())
	require.NoError(t, err)

	for i, key := range utils.GetSortedKeys(entries) {
		row, err := client.ResolveRow(key)
		require.NoError(t, err)
		require.Equal(t, i, row)
	}
}

func TestAbsentKeys(t *testing.T) {

	dir, err := BuildDirectory(testEntries(50), testOptions)
	require.NoError(t, err)

	client, err := NewClient(dir.Manifest())
	require.NoError(t, err)

	// an absent key resolves through the row map to a pseudorandom float64,
	// which lands on a valid row index only by accident
	for i := 0; i < 50; i++ {
		_, err := client.ResolveRow(fmt.Sprintf("missing-%04d", i))
		require.ErrorIs(t, err, ErrKeyNotFound)
	}

	_, _, err = client.Request("missing-0000")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestDefaultOptions(t *testing.T) {

	dir, err := BuildDirectory(testEntries(12), Options{})
	require.NoError(t, err)

	params := dir.Manifest().Shard.Parameters
	require.Equal(t, DefaultLWEDimension, params.LWEDimension())
	require.Equal(t, DefaultPlaintextBits, params.PlaintextBits())
	require.Equal(t, valueSizeBits, params.ElemSizeBits())
	require.Equal(t, 12, params.NumRows())
}

func TestDecodeValueRejectsNarrowRecords(t *testing.T) {

	// a state paired with 2-byte records decodes fine at the retrieval
	// layer but cannot carry a float64
	lit := pir.ParametersLiteral{LWEDimension: 512, NumRows: 2, ElemSizeBits: 16, PlaintextBits: 10}
	shard, pp, err := pir.NewShard(lit, [][]byte{{1, 2}, {3, 4}})
	require.NoError(t, err)

	client, err := pir.NewClient(pp)
	require.NoError(t, err)

	ctx, err := client.DeriveQueryContext()
	require.NoError(t, err)
	query, st, err := ctx.GenerateQuery(0)
	require.NoError(t, err)
	resp, err := shard.Respond(query)
	require.NoError(t, err)

	_, err = DecodeValue(st, resp)
	require.Error(t, err)
}

func TestManifestSerialization(t *testing.T) {

	dir, err := BuildDirectory(testEntries(20), testOptions)
	require.NoError(t, err)

	buffer.RequireSerializerCorrect(t, dir.Manifest())
}

func TestBuildDirectoryRejectsEmpty(t *testing.T) {

	_, err := BuildDirectory(map[string]float64{}, testOptions)
	require.ErrorIs(t, err, ErrNoEntries)
}
