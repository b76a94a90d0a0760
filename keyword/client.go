package keyword

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/mundrapranay/silhouette-crypto/okvs"
	"github.com/mundrapranay/silhouette-crypto/pir"
)

// ErrKeyNotFound is returned when a key resolves outside the shard. Keys the
// directory holds never trigger it; see [Client.ResolveRow] for the guarantee
// on absent keys.
var ErrKeyNotFound = errors.New("keyword: key not present in the directory")

// Client resolves keys and issues shard queries from a directory manifest. A
// Client is read-only after construction and safe for concurrent use.
type Client struct {
	rowMap *okvs.Encoding
	shard  *pir.Client
}

// NewClient bootstraps a client from a directory manifest.
func NewClient(m *Manifest) (*Client, error) {

	sc, err := pir.NewClient(m.Shard)
	if err != nil {
		return nil, err
	}

	return &Client{rowMap: m.RowMap, shard: sc}, nil
}

// ResolveRow maps key to the shard row holding its value. Keys built into
// the directory always resolve to their correct row. A key the directory
// never held decodes to an effectively random word and fails with
// [ErrKeyNotFound] unless that word happens to name a valid row, in which
// case the lookup proceeds and yields an unrelated value; callers needing
// certain membership must verify the retrieved value out of band.
func (c *Client) ResolveRow(key string) (int, error) {

	v := c.rowMap.Decode(key)

	if !(v >= 0 && v < float64(c.shard.Parameters().NumRows()) && v == math.Trunc(v)) {
		return 0, fmt.Errorf("%w: %q resolves outside the shard", ErrKeyNotFound, key)
	}

	return int(v), nil
}

// Request resolves key and generates the query for its row. The returned
// secret state decodes exactly the response to this query.
func (c *Client) Request(key string) (*pir.Query, *pir.SecretState, error) {

	row, err := c.ResolveRow(key)
	if err != nil {
		return nil, nil, err
	}

	ctx, err := c.shard.DeriveQueryContext()
	if err != nil {
		return nil, nil, err
	}

	return ctx.GenerateQuery(row)
}

// DecodeValue recovers the float64 a response carries for the given secret
// state.
func DecodeValue(st *pir.SecretState, resp *pir.Response) (float64, error) {

	rec, err := st.Decode(resp)
	if err != nil {
		return 0, err
	}

	if len(rec) != valueSizeBits/8 {
		return 0, fmt.Errorf("keyword: state decodes %d-byte records, want %d", len(rec), valueSizeBits/8)
	}

	return math.Float64frombits(binary.LittleEndian.Uint64(rec)), nil
}
