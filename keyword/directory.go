// Package keyword combines the two primitives into keyword-addressed private
// retrieval: a directory owner encodes the key-to-row assignment with the
// oblivious store and serves the values from a lattice shard, and clients
// resolve a key to its row locally before querying the shard for the value.
// The shard never learns the key or the row a query targets.
package keyword

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/tuneinsight/lattigo/v5/utils"
	"github.com/tuneinsight/lattigo/v5/utils/buffer"

	"github.com/mundrapranay/silhouette-crypto/okvs"
	"github.com/mundrapranay/silhouette-crypto/pir"
)

// Defaults applied by [BuildDirectory] where an option is zero.
const (
	DefaultLWEDimension  = 1024
	DefaultPlaintextBits = 10
	DefaultEpsilon       = 0.1
)

// valueSizeBits is the width of every shard record: one float64.
const valueSizeBits = 64

// ErrNoEntries is returned by BuildDirectory for an empty input map.
var ErrNoEntries = errors.New("keyword: directory needs at least one entry")

// Options tune the cryptographic layout of a directory. The zero value
// selects the defaults.
type Options struct {
	// LWEDimension is the lattice secret dimension of the shard.
	LWEDimension int

	// PlaintextBits is the chunk width shard records are split into.
	PlaintextBits int

	// Epsilon is the expansion factor of the row map encoding.
	Epsilon float64
}

func (o Options) withDefaults() Options {
	if o.LWEDimension == 0 {
		o.LWEDimension = DefaultLWEDimension
	}
	if o.PlaintextBits == 0 {
		o.PlaintextBits = DefaultPlaintextBits
	}
	if o.Epsilon == 0 {
		o.Epsilon = DefaultEpsilon
	}
	return o
}

// Manifest is the public material of a directory: the key-to-row map
// encoding and the shard parameters with their hint. Clients bootstrap from
// nothing else.
type Manifest struct {
	RowMap *okvs.Encoding
	Shard  *pir.PublicParams
}

// Directory is the serving side of a keyword store. It retains the packed
// shard and hands out the manifest.
type Directory struct {
	shard    *pir.Shard
	manifest *Manifest
	size     int
}

// BuildDirectory packs entries into a shard, one float64 record per row in
// sorted key order, and encodes the key-to-row assignment. The whole map is
// packed in one pass; directories are immutable once built.
func BuildDirectory(entries map[string]float64, opts Options) (*Directory, error) {

	if len(entries) == 0 {
		return nil, ErrNoEntries
	}

	opts = opts.withDefaults()

	keys := utils.GetSortedKeys(entries)

	records := make([][]byte, len(keys))
	rowMap := make(map[string]float64, len(keys))
	for i, k := range keys {
		rec := make([]byte, valueSizeBits/8)
		binary.LittleEndian.PutUint64(rec, math.Float64bits(entries[k]))
		records[i] = rec
		rowMap[k] = float64(i)
	}

	enc, err := okvs.Encode(rowMap, opts.Epsilon)
	if err != nil {
		return nil, fmt.Errorf("keyword: row map encoding: %w", err)
	}

	shard, pp, err := pir.NewShard(pir.ParametersLiteral{
		LWEDimension:  opts.LWEDimension,
		NumRows:       len(keys),
		ElemSizeBits:  valueSizeBits,
		PlaintextBits: opts.PlaintextBits,
	}, records)
	if err != nil {
		return nil, fmt.Errorf("keyword: shard: %w", err)
	}

	return &Directory{
		shard:    shard,
		manifest: &Manifest{RowMap: enc, Shard: pp},
		size:     len(keys),
	}, nil
}

// Manifest returns the public material clients bootstrap from.
func (d *Directory) Manifest() *Manifest {
	return d.manifest
}

// Size returns the number of entries the directory serves.
func (d *Directory) Size() int {
	return d.size
}

// Respond evaluates a client query against the shard.
func (d *Directory) Respond(q *pir.Query) (*pir.Response, error) {
	return d.shard.Respond(q)
}

// BinarySize returns the size in bytes of the serialized manifest.
func (m *Manifest) BinarySize() int {
	return m.RowMap.BinarySize() + m.Shard.BinarySize()
}

// WriteTo writes the manifest on w.
func (m *Manifest) WriteTo(w io.Writer) (n int64, err error) {
	switch w := w.(type) {
	case buffer.Writer:

		var inc int64

		if inc, err = m.RowMap.WriteTo(w); err != nil {
			return n + inc, err
		}
		n += inc

		if inc, err = m.Shard.WriteTo(w); err != nil {
			return n + inc, err
		}
		n += inc

		return n, w.Flush()

	default:
		return m.WriteTo(bufio.NewWriter(w))
	}
}

// ReadFrom reads a manifest from r and overwrites the receiver, allocating
// the components if the receiver holds none.
func (m *Manifest) ReadFrom(r io.Reader) (n int64, err error) {
	switch r := r.(type) {
	case buffer.Reader:

		if m.RowMap == nil {
			m.RowMap = new(okvs.Encoding)
		}
		if m.Shard == nil {
			m.Shard = new(pir.PublicParams)
		}

		var inc int64

		if inc, err = m.RowMap.ReadFrom(r); err != nil {
			return n + inc, err
		}
		n += inc

		if inc, err = m.Shard.ReadFrom(r); err != nil {
			return n + inc, err
		}
		n += inc

		return n, nil

	default:
		return m.ReadFrom(bufio.NewReader(r))
	}
}

// MarshalBinary encodes the manifest into a byte slice.
func (m *Manifest) MarshalBinary() (data []byte, err error) {
	buf := buffer.NewBufferSize(m.BinarySize())
	if _, err = m.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a byte slice generated by
// [Manifest.MarshalBinary] on the receiver.
func (m *Manifest) UnmarshalBinary(data []byte) error {
	_, err := m.ReadFrom(buffer.NewBuffer(data))
	return err
}
