// Package matrix implements dense row-major matrices and vectors over Z_{2^32},
// the coefficient domain of the LWE-based retrieval scheme. All arithmetic uses
// the native uint32 wrap-around, so no explicit modular reduction is performed.
package matrix

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tuneinsight/lattigo/v5/utils/buffer"
	"github.com/tuneinsight/lattigo/v5/utils/sampling"
)

// Matrix is a dense matrix over Z_{2^32} stored in row-major order.
type Matrix struct {
	Rows int
	Cols int
	Data []uint32 // row-major backing slice of Rows*Cols entries
}

// NewMatrix allocates a zero matrix with the given dimensions.
func NewMatrix(rows, cols int) (m *Matrix) {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]uint32, rows*cols)}
}

// NewUniformMatrix allocates a rows x cols matrix with entries drawn uniformly
// from Z_{2^32} using prng. Passing a [sampling.KeyedPRNG] makes the expansion
// deterministic for a given key.
func NewUniformMatrix(prng sampling.PRNG, rows, cols int) (m *Matrix, err error) {
	m = NewMatrix(rows, cols)
	if err = fillUniform(prng, m.Data); err != nil {
		return nil, err
	}
	return m, nil
}

// UniformVector returns a length-n vector with entries drawn uniformly from
// Z_{2^32} using prng.
func UniformVector(prng sampling.PRNG, n int) (v []uint32, err error) {
	v = make([]uint32, n)
	if err = fillUniform(prng, v); err != nil {
		return nil, err
	}
	return v, nil
}

// fillUniform fills out with uniform values read from prng, decoding the
// stream through a bounded intermediate buffer.
func fillUniform(prng sampling.PRNG, out []uint32) (err error) {
	buf := make([]byte, 1<<16)
	for len(out) > 0 {
		n := len(out)
		if n > len(buf)>>2 {
			n = len(buf) >> 2
		}
		if _, err = io.ReadFull(prng, buf[:n<<2]); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			out[i] = binary.LittleEndian.Uint32(buf[i<<2:])
		}
		out = out[n:]
	}
	return nil
}

// Row returns the i-th row as a re-slice of the backing array.
func (m *Matrix) Row(i int) []uint32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// TransposeMulVec returns the length-Cols vector m^T * v over Z_{2^32}, whose
// j-th entry is the sum over i of v[i]*m[i][j]. It panics if len(v) does not
// match the row count.
func (m *Matrix) TransposeMulVec(v []uint32) (out []uint32) {

	if len(v) != m.Rows {
		panic(fmt.Sprintf("matrix: vector length %d does not match row count %d", len(v), m.Rows))
	}

	out = make([]uint32, m.Cols)

	for i := 0; i < m.Rows; i++ {
		vi := v[i]
		row := m.Data[i*m.Cols : (i+1)*m.Cols]
		for j, x := range row {
			out[j] += vi * x
		}
	}

	return
}

// Equal returns true if both matrices have identical dimensions and entries.
func (m *Matrix) Equal(other *Matrix) bool {

	if m == other {
		return true
	}

	if m == nil || other == nil || m.Rows != other.Rows || m.Cols != other.Cols {
		return false
	}

	for i := range m.Data {
		if m.Data[i] != other.Data[i] {
			return false
		}
	}

	return true
}

// BinarySize returns the serialized size of the object in bytes.
func (m *Matrix) BinarySize() int {
	return 16 + (m.Rows*m.Cols)<<2
}

// WriteTo writes the object on an io.Writer. It implements the io.WriterTo
// interface, and will write exactly object.BinarySize() bytes on w.
//
// Unless w implements the [buffer.Writer] interface, it will be wrapped into
// a [bufio.Writer]. Since this requires allocations, it is preferable to pass
// a [buffer.Writer] directly.
func (m *Matrix) WriteTo(w io.Writer) (n int64, err error) {

	switch w := w.(type) {
	case buffer.Writer:

		var inc int64

		if inc, err = buffer.WriteInt(w, m.Rows); err != nil {
			return n + inc, fmt.Errorf("buffer.WriteInt: %w", err)
		}

		n += inc

		if inc, err = buffer.WriteInt(w, m.Cols); err != nil {
			return n + inc, fmt.Errorf("buffer.WriteInt: %w", err)
		}

		n += inc

		if inc, err = buffer.WriteUint32Slice(w, m.Data); err != nil {
			return n + inc, fmt.Errorf("buffer.WriteUint32Slice: %w", err)
		}

		n += inc

		return n, w.Flush()

	default:
		return m.WriteTo(bufio.NewWriter(w))
	}
}

// ReadFrom reads on the object from an io.Reader. It implements the
// io.ReaderFrom interface.
//
// Unless r implements the [buffer.Reader] interface, it will be wrapped into
// a [bufio.Reader]. Since this requires allocations, it is preferable to pass
// a [buffer.Reader] directly.
func (m *Matrix) ReadFrom(r io.Reader) (n int64, err error) {

	switch r := r.(type) {
	case buffer.Reader:

		var inc int64

		if inc, err = buffer.ReadInt(r, &m.Rows); err != nil {
			return n + inc, fmt.Errorf("buffer.ReadInt: %w", err)
		}

		n += inc

		if inc, err = buffer.ReadInt(r, &m.Cols); err != nil {
			return n + inc, fmt.Errorf("buffer.ReadInt: %w", err)
		}

		n += inc

		if m.Rows < 0 || m.Cols < 0 {
			return n, fmt.Errorf("matrix: invalid serialized dimensions %dx%d", m.Rows, m.Cols)
		}

		if size := m.Rows * m.Cols; m.Data == nil || len(m.Data) != size {
			m.Data = make([]uint32, size)
		}

		if inc, err = buffer.ReadUint32Slice(r, m.Data); err != nil {
			return n + inc, fmt.Errorf("buffer.ReadUint32Slice: %w", err)
		}

		n += inc

		return n, nil

	default:
		return m.ReadFrom(bufio.NewReader(r))
	}
}

// MarshalBinary encodes the object into a binary form on a newly allocated
// slice of bytes.
func (m *Matrix) MarshalBinary() (data []byte, err error) {
	buf := buffer.NewBufferSize(m.BinarySize())
	_, err = m.WriteTo(buf)
	return buf.Bytes(), err
}

// UnmarshalBinary decodes a slice of bytes generated by [Matrix.MarshalBinary]
// or [Matrix.WriteTo] on the object.
func (m *Matrix) UnmarshalBinary(data []byte) (err error) {
	_, err = m.ReadFrom(buffer.NewBuffer(data))
	return
}
