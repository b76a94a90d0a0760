package pir

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/tuneinsight/lattigo/v5/utils/sampling"

	"github.com/mundrapranay/silhouette-crypto/matrix"
)

// Client holds the public material needed to issue queries against one shard:
// the parameter set, the re-expanded public matrix and the published hint. A
// Client is read-only after construction and safe for concurrent use.
type Client struct {
	params Parameters
	public *matrix.Matrix // LWEDimension x NumRows, expanded from the seed
	hint   *matrix.Matrix // LWEDimension x NumChunks
}

// NewClient expands the public matrix from the parameter seed and validates
// the hint shape against the parameter set.
func NewClient(pp *PublicParams) (*Client, error) {

	params := pp.Parameters

	if pp.Hint == nil || pp.Hint.Rows != params.lweDimension || pp.Hint.Cols != params.NumChunks() {
		return nil, fmt.Errorf("%w: expected %dx%d", ErrMalformedHint, params.lweDimension, params.NumChunks())
	}

	public, err := params.PublicMatrix()
	if err != nil {
		return nil, err
	}

	return &Client{params: params, public: public, hint: pp.Hint}, nil
}

// Parameters returns the client parameter set.
func (c *Client) Parameters() Parameters {
	return c.params
}

// QueryContext is the per-query client precomputation: a fresh noisy LWE
// sample over the public matrix and the matching hint offsets. No row is
// fixed yet. A context generates exactly one query; see
// [QueryContext.GenerateQuery].
type QueryContext struct {
	params   Parameters
	sample   []uint32 // noisy secret-vector sample over the public matrix, one value per row
	offsets  []uint32 // secret-vector projection of the hint, one value per chunk
	consumed atomic.Bool
}

// DeriveQueryContext samples a fresh secret vector and ternary noise, and
// precomputes the query skeleton and the hint offsets needed later for
// decoding. The secret vector itself is discarded afterwards: the derived
// products are all that query generation and decoding consume.
//
// Each call draws from its own cryptographic source, so concurrent
// derivations on the same client are safe.
func (c *Client) DeriveQueryContext() (*QueryContext, error) {

	prng, err := sampling.NewPRNG()
	if err != nil {
		return nil, err
	}

	secret, err := matrix.UniformVector(prng, c.params.lweDimension)
	if err != nil {
		return nil, err
	}

	noise := make([]uint32, c.params.numRows)
	if err := sampleTernary(prng, noise); err != nil {
		return nil, err
	}

	sample := c.public.TransposeMulVec(secret)
	for i := range sample {
		sample[i] += noise[i]
	}

	return &QueryContext{
		params:  c.params,
		sample:  sample,
		offsets: c.hint.TransposeMulVec(secret),
	}, nil
}

// GenerateQuery consumes the context and builds the query for rowIndex: the
// precomputed sample with the plaintext scaling factor added at the target
// position. The returned secret state is bound to rowIndex and decodes
// exactly one response.
//
// A second call on the same context fails with [ErrContextConsumed]; derive a
// fresh context per query instead of retrying.
func (ctx *QueryContext) GenerateQuery(rowIndex int) (*Query, *SecretState, error) {

	if rowIndex < 0 || rowIndex >= ctx.params.numRows {
		return nil, nil, fmt.Errorf("%w: row %d of a %d-row shard", ErrIndexOutOfRange, rowIndex, ctx.params.numRows)
	}

	if !ctx.consumed.CompareAndSwap(false, true) {
		return nil, nil, ErrContextConsumed
	}

	values := ctx.sample
	ctx.sample = nil
	values[rowIndex] += ctx.params.Delta()

	st := &SecretState{
		params:   ctx.params,
		rowIndex: rowIndex,
		offsets:  ctx.offsets,
	}
	ctx.offsets = nil

	return &Query{Values: values}, st, nil
}

// Decode consumes the state and recovers the element bound at query time: it
// subtracts the hint offsets from the response, rounds every chunk from the
// ciphertext scale down to the plaintext scale and reassembles the element
// bytes.
//
// Decoding a second response with the same state fails with
// [ErrStateConsumed]. A response of the wrong length fails with
// [ErrMalformedResponse] without consuming the state. [ErrDecodeFailed]
// signals a mismatched secret state and shard pairing or a corrupted
// response; retrying cannot succeed, the caller must supply a matching
// parameter, shard and state triple.
func (st *SecretState) Decode(resp *Response) ([]byte, error) {

	if resp == nil || len(resp.Values) != len(st.offsets) {
		var got int
		if resp != nil {
			got = len(resp.Values)
		}
		return nil, fmt.Errorf("%w: response holds %d values but the parameters call for %d chunks", ErrMalformedResponse, got, len(st.offsets))
	}

	if !st.consumed.CompareAndSwap(false, true) {
		return nil, ErrStateConsumed
	}

	delta := st.params.Delta()
	half := delta >> 1

	chunks := make([]uint32, len(st.offsets))
	for j := range chunks {
		// the wrap-around addition folds residues within half a step below
		// the modulus back onto chunk zero
		chunks[j] = (resp.Values[j] - st.offsets[j] + half) / delta
	}

	return unpackRecord(st.params, chunks)
}

// sampleTernary fills out with values drawn uniformly from {-1, 0, 1} mod
// 2^32, rejection-sampling one byte per value.
func sampleTernary(prng sampling.PRNG, out []uint32) error {

	buf := make([]byte, 1024)
	ptr := len(buf)

	for i := range out {
		for {
			if ptr == len(buf) {
				if _, err := io.ReadFull(prng, buf); err != nil {
					return err
				}
				ptr = 0
			}

			b := buf[ptr]
			ptr++

			// 255 = 3*85, so accepting only bytes below keeps the residues unbiased
			if b == 255 {
				continue
			}

			switch b % 3 {
			case 0:
				out[i] = 0
			case 1:
				out[i] = 1
			case 2:
				out[i] = 0xFFFFFFFF
			}
			break
		}
	}

	return nil
}
