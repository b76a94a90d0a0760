package pir

import (
	"bufio"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/tuneinsight/lattigo/v5/utils/buffer"
)

// Query is a noisy one-hot request for a single database row: a vector of
// NumRows values over Z_{2^32}. Under the decisional-LWE assumption its
// distribution, and therefore its wire form, does not depend on the target
// row.
type Query struct {
	Values []uint32
}

// Response is the server answer to a query: one value over Z_{2^32} per
// element chunk, NumChunks in total, regardless of the target row.
type Response struct {
	Values []uint32
}

// SecretState holds the client-side material needed to decode exactly one
// response: the secret-vector projection of the hint and the bound target
// row. It is single-use; see [SecretState.Decode].
type SecretState struct {
	params   Parameters
	rowIndex int
	offsets  []uint32 // one value per element chunk
	consumed atomic.Bool
}

// RowIndex returns the row bound into the state by the query generation.
func (st *SecretState) RowIndex() int {
	return st.rowIndex
}

// BinarySize returns the serialized size of the object in bytes.
func (q *Query) BinarySize() int {
	return 8 + len(q.Values)<<2
}

// WriteTo writes the object on an io.Writer. It implements the io.WriterTo
// interface, and will write exactly object.BinarySize() bytes on w.
func (q *Query) WriteTo(w io.Writer) (n int64, err error) {
	switch w := w.(type) {
	case buffer.Writer:
		return writeUint32Vector(w, q.Values)
	default:
		return q.WriteTo(bufio.NewWriter(w))
	}
}

// ReadFrom reads on the object from an io.Writer. It implements the
// io.ReaderFrom interface.
func (q *Query) ReadFrom(r io.Reader) (n int64, err error) {
	switch r := r.(type) {
	case buffer.Reader:
		return readUint32Vector(r, &q.Values)
	default:
		return q.ReadFrom(bufio.NewReader(r))
	}
}

// MarshalBinary encodes the object into a binary form on a newly allocated
// slice of bytes.
func (q *Query) MarshalBinary() (data []byte, err error) {
	buf := buffer.NewBufferSize(q.BinarySize())
	_, err = q.WriteTo(buf)
	return buf.Bytes(), err
}

// UnmarshalBinary decodes a slice of bytes generated by [Query.MarshalBinary]
// or [Query.WriteTo] on the object.
func (q *Query) UnmarshalBinary(data []byte) (err error) {
	_, err = q.ReadFrom(buffer.NewBuffer(data))
	return
}

// BinarySize returns the serialized size of the object in bytes.
func (resp *Response) BinarySize() int {
	return 8 + len(resp.Values)<<2
}

// WriteTo writes the object on an io.Writer. It implements the io.WriterTo
// interface, and will write exactly object.BinarySize() bytes on w.
func (resp *Response) WriteTo(w io.Writer) (n int64, err error) {
	switch w := w.(type) {
	case buffer.Writer:
		return writeUint32Vector(w, resp.Values)
	default:
		return resp.WriteTo(bufio.NewWriter(w))
	}
}

// ReadFrom reads on the object from an io.Writer. It implements the
// io.ReaderFrom interface.
func (resp *Response) ReadFrom(r io.Reader) (n int64, err error) {
	switch r := r.(type) {
	case buffer.Reader:
		return readUint32Vector(r, &resp.Values)
	default:
		return resp.ReadFrom(bufio.NewReader(r))
	}
}

// MarshalBinary encodes the object into a binary form on a newly allocated
// slice of bytes.
func (resp *Response) MarshalBinary() (data []byte, err error) {
	buf := buffer.NewBufferSize(resp.BinarySize())
	_, err = resp.WriteTo(buf)
	return buf.Bytes(), err
}

// UnmarshalBinary decodes a slice of bytes generated by
// [Response.MarshalBinary] or [Response.WriteTo] on the object.
func (resp *Response) UnmarshalBinary(data []byte) (err error) {
	_, err = resp.ReadFrom(buffer.NewBuffer(data))
	return
}

// BinarySize returns the serialized size of the object in bytes.
func (st *SecretState) BinarySize() int {
	return st.params.BinarySize() + 9 + 8 + len(st.offsets)<<2
}

// WriteTo writes the object on an io.Writer. It implements the io.WriterTo
// interface, and will write exactly object.BinarySize() bytes on w.
//
// The consumed flag is part of the serialized form, so a state that already
// decoded a response stays consumed across a round-trip.
func (st *SecretState) WriteTo(w io.Writer) (n int64, err error) {
	switch w := w.(type) {
	case buffer.Writer:

		var inc int64

		if inc, err = st.params.WriteTo(w); err != nil {
			return n + inc, err
		}

		n += inc

		if inc, err = buffer.WriteInt(w, st.rowIndex); err != nil {
			return n + inc, fmt.Errorf("buffer.WriteInt: %w", err)
		}

		n += inc

		var consumed uint8
		if st.consumed.Load() {
			consumed = 1
		}

		if inc, err = buffer.WriteUint8(w, consumed); err != nil {
			return n + inc, fmt.Errorf("buffer.WriteUint8: %w", err)
		}

		n += inc

		if inc, err = writeUint32Vector(w, st.offsets); err != nil {
			return n + inc, err
		}

		n += inc

		return n, w.Flush()

	default:
		return st.WriteTo(bufio.NewWriter(w))
	}
}

// ReadFrom reads on the object from an io.Writer. It implements the
// io.ReaderFrom interface.
func (st *SecretState) ReadFrom(r io.Reader) (n int64, err error) {
	switch r := r.(type) {
	case buffer.Reader:

		var inc int64

		if inc, err = st.params.ReadFrom(r); err != nil {
			return n + inc, err
		}

		n += inc

		if inc, err = buffer.ReadInt(r, &st.rowIndex); err != nil {
			return n + inc, fmt.Errorf("buffer.ReadInt: %w", err)
		}

		n += inc

		var consumed uint8
		if inc, err = buffer.ReadUint8(r, &consumed); err != nil {
			return n + inc, fmt.Errorf("buffer.ReadUint8: %w", err)
		}

		n += inc

		st.consumed.Store(consumed == 1)

		if inc, err = readUint32Vector(r, &st.offsets); err != nil {
			return n + inc, err
		}

		n += inc

		return n, nil

	default:
		return st.ReadFrom(bufio.NewReader(r))
	}
}

// MarshalBinary encodes the object into a binary form on a newly allocated
// slice of bytes.
func (st *SecretState) MarshalBinary() (data []byte, err error) {
	buf := buffer.NewBufferSize(st.BinarySize())
	_, err = st.WriteTo(buf)
	return buf.Bytes(), err
}

// UnmarshalBinary decodes a slice of bytes generated by
// [SecretState.MarshalBinary] or [SecretState.WriteTo] on the object.
func (st *SecretState) UnmarshalBinary(data []byte) (err error) {
	_, err = st.ReadFrom(buffer.NewBuffer(data))
	return
}

// writeUint32Vector writes a length-prefixed vector on w.
func writeUint32Vector(w buffer.Writer, v []uint32) (n int64, err error) {

	var inc int64

	if inc, err = buffer.WriteInt(w, len(v)); err != nil {
		return n + inc, fmt.Errorf("buffer.WriteInt: %w", err)
	}

	n += inc

	if inc, err = buffer.WriteUint32Slice(w, v); err != nil {
		return n + inc, fmt.Errorf("buffer.WriteUint32Slice: %w", err)
	}

	n += inc

	return n, w.Flush()
}

// readUint32Vector reads a length-prefixed vector from r, allocating the
// target slice as needed.
func readUint32Vector(r buffer.Reader, v *[]uint32) (n int64, err error) {

	var inc int64

	var size int
	if inc, err = buffer.ReadInt(r, &size); err != nil {
		return n + inc, fmt.Errorf("buffer.ReadInt: %w", err)
	}

	n += inc

	if size < 0 {
		return n, fmt.Errorf("pir: invalid serialized vector length %d", size)
	}

	if *v == nil || len(*v) != size {
		*v = make([]uint32, size)
	}

	if inc, err = buffer.ReadUint32Slice(r, *v); err != nil {
		return n + inc, fmt.Errorf("buffer.ReadUint32Slice: %w", err)
	}

	n += inc

	return n, nil
}
