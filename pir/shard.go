package pir

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/mundrapranay/silhouette-crypto/matrix"
)

// Shard is a server-side database snapshot: the packed record matrix and the
// hint precomputed against the public matrix. A Shard is immutable after
// creation and safe for unlimited concurrent [Shard.Respond] calls; database
// changes require a full rebuild.
type Shard struct {
	params Parameters
	db     *matrix.Matrix // NumRows x NumChunks, entries < PlaintextModulus
	hint   *matrix.Matrix // LWEDimension x NumChunks
}

// NewShard builds a shard over the given records and publishes the matching
// public parameter set. The literal row count must equal len(records); each
// record may hold at most RecordSize bytes, narrower records being
// zero-padded.
//
// Preprocessing multiplies the seed-expanded public matrix with the database,
// a one-time cost amortized across all future queries. The product is
// computed on row blocks across all available cores.
func NewShard(paramDef ParametersLiteral, records [][]byte) (*Shard, *PublicParams, error) {

	if paramDef.NumRows != len(records) {
		return nil, nil, fmt.Errorf("%w: literal row count is %d but %d records were supplied", ErrInvalidParameter, paramDef.NumRows, len(records))
	}

	params, err := NewParametersFromLiteral(paramDef)
	if err != nil {
		return nil, nil, err
	}

	db, err := packRecords(params, records)
	if err != nil {
		return nil, nil, err
	}

	A, err := params.PublicMatrix()
	if err != nil {
		return nil, nil, err
	}

	shard := &Shard{
		params: params,
		db:     db,
		hint:   mulParallel(A, db),
	}

	return shard, &PublicParams{Parameters: params, Hint: shard.hint}, nil
}

// Parameters returns the shard parameter set.
func (s *Shard) Parameters() Parameters {
	return s.params
}

// NumRows returns the number of records the shard serves.
func (s *Shard) NumRows() int {
	return s.params.numRows
}

// Respond answers a query with the matrix-vector product of the database and
// the query vector. Its cost, output size and computation path are
// independent of the row the client targets.
func (s *Shard) Respond(q *Query) (*Response, error) {

	if q == nil || len(q.Values) != s.params.numRows {
		var got int
		if q != nil {
			got = len(q.Values)
		}
		return nil, fmt.Errorf("%w: query holds %d values but the shard has %d rows", ErrMalformedQuery, got, s.params.numRows)
	}

	return &Response{Values: s.db.TransposeMulVec(q.Values)}, nil
}

// mulParallel computes a*b over Z_{2^32}, splitting the rows of a across all
// available cores.
func mulParallel(a, b *matrix.Matrix) *matrix.Matrix {

	if a.Cols != b.Rows {
		panic(fmt.Sprintf("pir: inner dimensions %d and %d do not match", a.Cols, b.Rows))
	}

	out := matrix.NewMatrix(a.Rows, b.Cols)

	workers := runtime.GOMAXPROCS(0)
	if workers > a.Rows {
		workers = a.Rows
	}
	if workers < 1 {
		workers = 1
	}

	block := (a.Rows + workers - 1) / workers

	var wg sync.WaitGroup
	for lo := 0; lo < a.Rows; lo += block {

		hi := lo + block
		if hi > a.Rows {
			hi = a.Rows
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				arow := a.Row(i)
				orow := out.Row(i)
				for k, v := range arow {
					brow := b.Row(k)
					for j, x := range brow {
						orow[j] += v * x
					}
				}
			}
		}(lo, hi)
	}
	wg.Wait()

	return out
}
