package pir

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"testing"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/require"
	"github.com/tuneinsight/lattigo/v5/utils/buffer"

	"github.com/mundrapranay/silhouette-crypto/matrix"
)

var flagParamString = flag.String("params", "", "specify the test retrieval parameters as a JSON string. Overrides -short.")

// testParams covers every supported secret dimension and plaintext
// granularity over databases small enough for the full query cycle to stay
// cheap.
var testParams = []ParametersLiteral{
	{LWEDimension: 512, NumRows: 64, ElemSizeBits: 64, PlaintextBits: 9},
	{LWEDimension: 512, NumRows: 64, ElemSizeBits: 64, PlaintextBits: 10},
	{LWEDimension: 1024, NumRows: 32, ElemSizeBits: 128, PlaintextBits: 9},
	{LWEDimension: 1024, NumRows: 32, ElemSizeBits: 128, PlaintextBits: 10},
	{LWEDimension: 1572, NumRows: 16, ElemSizeBits: 256, PlaintextBits: 9},
	{LWEDimension: 1572, NumRows: 16, ElemSizeBits: 256, PlaintextBits: 10},
}

func testString(params Parameters, opname string) string {
	return fmt.Sprintf("%s/n=%d/rows=%d/elem=%d/pt=%d",
		opname,
		params.LWEDimension(),
		params.NumRows(),
		params.ElemSizeBits(),
		params.PlaintextBits())
}

func mustParams(t *testing.T, lit ParametersLiteral) Parameters {
	params, err := NewParametersFromLiteral(lit)
	require.NoError(t, err)
	return params
}

type testContext struct {
	params  Parameters
	records [][]byte
	shard   *Shard
	pp      *PublicParams
	client  *Client
}

func newTestContext(lit ParametersLiteral) (*testContext, error) {

	records := make([][]byte, lit.NumRows)
	for i := range records {
		rec := make([]byte, lit.ElemSizeBits/8)
		for j := range rec {
			rec[j] = byte(31*i + 7*j + 1)
		}
		records[i] = rec
	}

	shard, pp, err := NewShard(lit, records)
	if err != nil {
		return nil, err
	}

	client, err := NewClient(pp)
	if err != nil {
		return nil, err
	}

	return &testContext{
		params:  shard.Parameters(),
		records: records,
		shard:   shard,
		pp:      pp,
		client:  client,
	}, nil
}

func TestPIR(t *testing.T) {

	paramsLit := testParams
	if testing.Short() {
		paramsLit = testParams[:2]
	}

	if *flagParamString != "" {
		var jsonParams ParametersLiteral
		if err := json.Unmarshal([]byte(*flagParamString), &jsonParams); err != nil {
			t.Fatal(err)
		}
		paramsLit = []ParametersLiteral{jsonParams}
	}

	for _, lit := range paramsLit[:] {

		tc, err := newTestContext(lit)
		require.NoError(t, err)

		for _, testSet := range []func(tc *testContext, t *testing.T){
			testRetrieveEveryRow,
			testQueryShape,
			testSingleUse,
			testMalformedInputs,
			testMismatchedPairing,
			testNoiseMargin,
			testWriteAndRead,
		} {
			testSet(tc, t)
		}
	}
}

func testRetrieveEveryRow(tc *testContext, t *testing.T) {
	t.Run(testString(tc.params, "RetrieveEveryRow"), func(t *testing.T) {
		for i := 0; i < tc.shard.NumRows(); i++ {

			ctx, err := tc.client.DeriveQueryContext()
			require.NoError(t, err)

			query, st, err := ctx.GenerateQuery(i)
			require.NoError(t, err)
			require.Equal(t, i, st.RowIndex())

			resp, err := tc.shard.Respond(query)
			require.NoError(t, err)

			rec, err := st.Decode(resp)
			require.NoError(t, err)
			require.Equal(t, tc.records[i], rec)
		}
	})
}

func testQueryShape(tc *testContext, t *testing.T) {
	t.Run(testString(tc.params, "QueryShape"), func(t *testing.T) {

		rows := tc.params.NumRows()

		ctxA, err := tc.client.DeriveQueryContext()
		require.NoError(t, err)
		qa, _, err := ctxA.GenerateQuery(0)
		require.NoError(t, err)

		ctxB, err := tc.client.DeriveQueryContext()
		require.NoError(t, err)
		qb, _, err := ctxB.GenerateQuery(rows - 1)
		require.NoError(t, err)

		// same wire shape regardless of the target row
		require.Equal(t, rows, len(qa.Values))
		require.Equal(t, len(qa.Values), len(qb.Values))
		require.Equal(t, qa.BinarySize(), qb.BinarySize())

		// fresh randomness per context, even for a repeated row
		ctxC, err := tc.client.DeriveQueryContext()
		require.NoError(t, err)
		qc, _, err := ctxC.GenerateQuery(0)
		require.NoError(t, err)
		require.NotEqual(t, qa.Values, qc.Values)

		ra, err := tc.shard.Respond(qa)
		require.NoError(t, err)
		rb, err := tc.shard.Respond(qb)
		require.NoError(t, err)
		require.Equal(t, tc.params.NumChunks(), len(ra.Values))
		require.Equal(t, len(ra.Values), len(rb.Values))
	})
}

func testSingleUse(tc *testContext, t *testing.T) {
	t.Run(testString(tc.params, "SingleUse"), func(t *testing.T) {

		ctx, err := tc.client.DeriveQueryContext()
		require.NoError(t, err)

		query, st, err := ctx.GenerateQuery(0)
		require.NoError(t, err)

		_, _, err = ctx.GenerateQuery(1)
		require.ErrorIs(t, err, ErrContextConsumed)

		resp, err := tc.shard.Respond(query)
		require.NoError(t, err)

		rec, err := st.Decode(resp)
		require.NoError(t, err)
		require.Equal(t, tc.records[0], rec)

		_, err = st.Decode(resp)
		require.ErrorIs(t, err, ErrStateConsumed)
	})
}

func testMalformedInputs(tc *testContext, t *testing.T) {
	t.Run(testString(tc.params, "MalformedInputs"), func(t *testing.T) {

		rows := tc.params.NumRows()

		// rejected row indices do not consume the context
		ctx, err := tc.client.DeriveQueryContext()
		require.NoError(t, err)

		_, _, err = ctx.GenerateQuery(-1)
		require.ErrorIs(t, err, ErrIndexOutOfRange)
		_, _, err = ctx.GenerateQuery(rows)
		require.ErrorIs(t, err, ErrIndexOutOfRange)

		query, st, err := ctx.GenerateQuery(0)
		require.NoError(t, err)

		_, err = tc.shard.Respond(nil)
		require.ErrorIs(t, err, ErrMalformedQuery)
		_, err = tc.shard.Respond(&Query{Values: make([]uint32, rows+1)})
		require.ErrorIs(t, err, ErrMalformedQuery)

		resp, err := tc.shard.Respond(query)
		require.NoError(t, err)

		// rejected responses do not consume the state
		_, err = st.Decode(nil)
		require.ErrorIs(t, err, ErrMalformedResponse)
		_, err = st.Decode(&Response{Values: make([]uint32, tc.params.NumChunks()+1)})
		require.ErrorIs(t, err, ErrMalformedResponse)

		rec, err := st.Decode(resp)
		require.NoError(t, err)
		require.Equal(t, tc.records[0], rec)

		// hint shape is validated at client bootstrap
		_, err = NewClient(&PublicParams{Parameters: tc.params, Hint: matrix.NewMatrix(1, 1)})
		require.ErrorIs(t, err, ErrMalformedHint)
		_, err = NewClient(&PublicParams{Parameters: tc.params})
		require.ErrorIs(t, err, ErrMalformedHint)
	})
}

func testMismatchedPairing(tc *testContext, t *testing.T) {
	t.Run(testString(tc.params, "MismatchedPairing"), func(t *testing.T) {

		// same records behind a different seed
		lit := tc.params.ParametersLiteral()
		lit.Seed = nil
		other, _, err := NewShard(lit, tc.records)
		require.NoError(t, err)

		ctx, err := tc.client.DeriveQueryContext()
		require.NoError(t, err)
		query, st, err := ctx.GenerateQuery(0)
		require.NoError(t, err)

		resp, err := other.Respond(query)
		require.NoError(t, err)

		// decoding against the wrong shard must not silently yield the record
		rec, err := st.Decode(resp)
		if err == nil {
			require.NotEqual(t, tc.records[0], rec)
		} else {
			require.ErrorIs(t, err, ErrDecodeFailed)
		}
	})
}

func testNoiseMargin(tc *testContext, t *testing.T) {
	t.Run(testString(tc.params, "NoiseMargin"), func(t *testing.T) {

		const derivations = 8

		delta := tc.params.Delta()
		radius := float64(delta / 2)
		row := tc.shard.db.Row(0)

		residues := make([]float64, 0, derivations*tc.params.NumChunks())
		for d := 0; d < derivations; d++ {

			ctx, err := tc.client.DeriveQueryContext()
			require.NoError(t, err)

			query, st, err := ctx.GenerateQuery(0)
			require.NoError(t, err)

			resp, err := tc.shard.Respond(query)
			require.NoError(t, err)

			for j, v := range resp.Values {
				residues = append(residues, math.Abs(float64(int32(v-st.offsets[j]-delta*row[j]))))
			}
		}

		maxResidue, err := stats.Max(residues)
		require.NoError(t, err)
		require.Less(t, maxResidue, radius)

		stddev, err := stats.StandardDeviation(residues)
		require.NoError(t, err)
		require.Less(t, stddev, radius/4)
	})
}

func testWriteAndRead(tc *testContext, t *testing.T) {

	t.Run(testString(tc.params, "WriteAndRead/Parameters"), func(t *testing.T) {
		p := tc.params
		buffer.RequireSerializerCorrect(t, &p)
	})

	t.Run(testString(tc.params, "WriteAndRead/PublicParams"), func(t *testing.T) {
		buffer.RequireSerializerCorrect(t, tc.pp)
	})

	t.Run(testString(tc.params, "WriteAndRead/QueryCycle"), func(t *testing.T) {

		ctx, err := tc.client.DeriveQueryContext()
		require.NoError(t, err)
		query, st, err := ctx.GenerateQuery(1)
		require.NoError(t, err)
		resp, err := tc.shard.Respond(query)
		require.NoError(t, err)

		buffer.RequireSerializerCorrect(t, query)
		buffer.RequireSerializerCorrect(t, resp)
		buffer.RequireSerializerCorrect(t, st)

		// a deserialized state decodes like the original
		data, err := st.MarshalBinary()
		require.NoError(t, err)
		var clone SecretState
		require.NoError(t, clone.UnmarshalBinary(data))
		rec, err := clone.Decode(resp)
		require.NoError(t, err)
		require.Equal(t, tc.records[1], rec)
	})

	t.Run(testString(tc.params, "WriteAndRead/ConsumedStateStaysConsumed"), func(t *testing.T) {

		ctx, err := tc.client.DeriveQueryContext()
		require.NoError(t, err)
		query, st, err := ctx.GenerateQuery(0)
		require.NoError(t, err)
		resp, err := tc.shard.Respond(query)
		require.NoError(t, err)

		_, err = st.Decode(resp)
		require.NoError(t, err)

		data, err := st.MarshalBinary()
		require.NoError(t, err)
		var clone SecretState
		require.NoError(t, clone.UnmarshalBinary(data))
		_, err = clone.Decode(resp)
		require.ErrorIs(t, err, ErrStateConsumed)
	})
}

func TestRetrieveKnownValues(t *testing.T) {

	lit := ParametersLiteral{LWEDimension: 512, NumRows: 4, ElemSizeBits: 16, PlaintextBits: 10}
	values := []uint16{7, 300, 65000, 42}

	records := make([][]byte, len(values))
	for i, v := range values {
		rec := make([]byte, 2)
		binary.BigEndian.PutUint16(rec, v)
		records[i] = rec
	}

	shard, pp, err := NewShard(lit, records)
	require.NoError(t, err)
	client, err := NewClient(pp)
	require.NoError(t, err)

	for i, v := range values {

		ctx, err := client.DeriveQueryContext()
		require.NoError(t, err)

		query, st, err := ctx.GenerateQuery(i)
		require.NoError(t, err)

		resp, err := shard.Respond(query)
		require.NoError(t, err)

		rec, err := st.Decode(resp)
		require.NoError(t, err)
		require.Equal(t, v, binary.BigEndian.Uint16(rec))
	}
}

func TestShardRejectsRowCountMismatch(t *testing.T) {

	lit := ParametersLiteral{LWEDimension: 512, NumRows: 4, ElemSizeBits: 16, PlaintextBits: 10}

	_, _, err := NewShard(lit, make([][]byte, 3))
	require.ErrorIs(t, err, ErrInvalidParameter)
}
