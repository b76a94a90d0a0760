// Package pir implements a single-server private information retrieval scheme
// over Learning-With-Errors lattices. A server preprocesses its database once
// against a seed-expanded public matrix, publishing a compressed hint; clients
// then fetch any database row with a single noisy query vector, without the
// server learning which row was accessed.
//
// All arithmetic is carried out modulo 2^32 using native uint32 wrap-around.
package pir

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/go-cmp/cmp"
	"github.com/tuneinsight/lattigo/v5/utils/buffer"
	"github.com/tuneinsight/lattigo/v5/utils/sampling"

	"github.com/mundrapranay/silhouette-crypto/matrix"
)

// SeedSize is the byte length of the seed from which the public matrix is
// expanded.
const SeedSize = 32

// LogModulus is the base-2 logarithm of the ciphertext modulus.
const LogModulus = 32

// supportedLWEDimensions lists the vetted secret dimensions. The security
// margin of each entry was estimated for a modulus of 2^32 with a uniform
// secret and ternary noise.
var supportedLWEDimensions = []int{512, 1024, 1572}

// supportedPlaintextBits lists the supported plaintext granularities. The
// database row count bounds the accumulated noise, so wider plaintexts are
// only safe for smaller databases.
var supportedPlaintextBits = []int{9, 10}

// ParametersLiteral is a literal representation of the retrieval parameters.
// It has public fields and is used to express unchecked user-defined
// parameters literally into Go programs. The [NewParametersFromLiteral]
// function is used to generate the actual checked parameters from the literal
// representation.
//
// Users must set the secret dimension (LWEDimension), the database row count
// (NumRows), the element width in bits (ElemSizeBits, a positive multiple of
// 8) and the plaintext granularity (PlaintextBits).
//
// If Seed is left nil, a fresh seed is drawn at parameter creation; otherwise
// it must hold exactly [SeedSize] bytes. Two parameter sets built from the
// same fully-specified literal expand to the same public matrix.
type ParametersLiteral struct {
	LWEDimension  int
	NumRows       int
	ElemSizeBits  int
	PlaintextBits int
	Seed          []byte `json:",omitempty"`
}

// Parameters represents a checked and immutable set of retrieval parameters.
// Its fields are private. See [ParametersLiteral] for user-specified
// parameters.
type Parameters struct {
	lweDimension  int
	numRows       int
	elemSizeBits  int
	plaintextBits int
	seed          [SeedSize]byte
}

// NewParametersFromLiteral instantiates a set of retrieval parameters from a
// [ParametersLiteral] specification. It returns the empty Parameters{} and an
// error wrapping [ErrInvalidParameter] if the specification is invalid.
//
// If the literal carries no seed, a fresh one is drawn from a cryptographic
// source, so the resulting parameter set expands to a public matrix that no
// other set shares.
func NewParametersFromLiteral(paramDef ParametersLiteral) (params Parameters, err error) {

	if !isSupported(supportedLWEDimensions, paramDef.LWEDimension) {
		return Parameters{}, fmt.Errorf("%w: unsupported LWE dimension %d (supported: %v)", ErrInvalidParameter, paramDef.LWEDimension, supportedLWEDimensions)
	}

	if !isSupported(supportedPlaintextBits, paramDef.PlaintextBits) {
		return Parameters{}, fmt.Errorf("%w: unsupported plaintext size %d bits (supported: %v)", ErrInvalidParameter, paramDef.PlaintextBits, supportedPlaintextBits)
	}

	if paramDef.NumRows < 1 {
		return Parameters{}, fmt.Errorf("%w: row count must be positive but is %d", ErrInvalidParameter, paramDef.NumRows)
	}

	if paramDef.ElemSizeBits < 8 || paramDef.ElemSizeBits%8 != 0 {
		return Parameters{}, fmt.Errorf("%w: element size must be a positive multiple of 8 bits but is %d", ErrInvalidParameter, paramDef.ElemSizeBits)
	}

	params = Parameters{
		lweDimension:  paramDef.LWEDimension,
		numRows:       paramDef.NumRows,
		elemSizeBits:  paramDef.ElemSizeBits,
		plaintextBits: paramDef.PlaintextBits,
	}

	switch len(paramDef.Seed) {
	case 0:
		prng, err := sampling.NewPRNG()
		if err != nil {
			return Parameters{}, err
		}
		if _, err = io.ReadFull(prng, params.seed[:]); err != nil {
			return Parameters{}, err
		}
	case SeedSize:
		copy(params.seed[:], paramDef.Seed)
	default:
		return Parameters{}, fmt.Errorf("%w: seed must hold %d bytes but holds %d", ErrInvalidParameter, SeedSize, len(paramDef.Seed))
	}

	return params, nil
}

func isSupported(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// ParametersLiteral returns the [ParametersLiteral] of the receiver, including
// its seed.
func (p Parameters) ParametersLiteral() ParametersLiteral {
	seed := make([]byte, SeedSize)
	copy(seed, p.seed[:])
	return ParametersLiteral{
		LWEDimension:  p.lweDimension,
		NumRows:       p.numRows,
		ElemSizeBits:  p.elemSizeBits,
		PlaintextBits: p.plaintextBits,
		Seed:          seed,
	}
}

// LWEDimension returns the secret dimension.
func (p Parameters) LWEDimension() int {
	return p.lweDimension
}

// NumRows returns the database row count.
func (p Parameters) NumRows() int {
	return p.numRows
}

// ElemSizeBits returns the element width in bits.
func (p Parameters) ElemSizeBits() int {
	return p.elemSizeBits
}

// PlaintextBits returns the plaintext granularity in bits.
func (p Parameters) PlaintextBits() int {
	return p.plaintextBits
}

// RecordSize returns the element width in bytes. Decoded records have exactly
// this length.
func (p Parameters) RecordSize() int {
	return p.elemSizeBits >> 3
}

// Modulus returns the ciphertext modulus 2^32.
func (p Parameters) Modulus() uint64 {
	return 1 << LogModulus
}

// PlaintextModulus returns 2^PlaintextBits.
func (p Parameters) PlaintextModulus() uint32 {
	return 1 << p.plaintextBits
}

// Delta returns the scaling factor Modulus/PlaintextModulus that lifts a
// plaintext chunk into the ciphertext domain.
func (p Parameters) Delta() uint32 {
	return 1 << (LogModulus - p.plaintextBits)
}

// NumChunks returns the number of plaintext chunks each element is split
// into. Responses hold one ciphertext value per chunk.
func (p Parameters) NumChunks() int {
	return (p.elemSizeBits + p.plaintextBits - 1) / p.plaintextBits
}

// Seed returns a copy of the seed from which the public matrix is expanded.
func (p Parameters) Seed() (seed [SeedSize]byte) {
	return p.seed
}

// PublicMatrix expands the seed into the LWEDimension x NumRows public matrix
// over Z_{2^32}. The expansion is deterministic, so the matrix itself is never
// transmitted; holders of the same parameter set derive the same matrix.
func (p Parameters) PublicMatrix() (*matrix.Matrix, error) {
	prng, err := sampling.NewKeyedPRNG(p.seed[:])
	if err != nil {
		return nil, err
	}
	return matrix.NewUniformMatrix(prng, p.lweDimension, p.numRows)
}

// Equal checks two parameter sets for equality, seed included.
func (p Parameters) Equal(other *Parameters) bool {
	return cmp.Equal(p.ParametersLiteral(), other.ParametersLiteral())
}

// MarshalJSON returns a JSON representation of the parameter set. See Marshal
// from the [encoding/json] package.
func (p Parameters) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.ParametersLiteral())
}

// UnmarshalJSON reads a JSON representation of a parameter set into the
// receiver. See Unmarshal from the [encoding/json] package.
func (p *Parameters) UnmarshalJSON(data []byte) (err error) {
	var params ParametersLiteral
	if err = json.Unmarshal(data, &params); err != nil {
		return err
	}
	*p, err = NewParametersFromLiteral(params)
	return
}

// MarshalBinary returns a []byte representation of the parameter set. This
// representation corresponds to the [Parameters.MarshalJSON] representation.
func (p Parameters) MarshalBinary() ([]byte, error) {
	buf := buffer.NewBufferSize(p.BinarySize())
	_, err := p.WriteTo(buf)
	return buf.Bytes(), err
}

// UnmarshalBinary decodes a slice of bytes on the target Parameters.
func (p *Parameters) UnmarshalBinary(data []byte) (err error) {
	_, err = p.ReadFrom(buffer.NewBuffer(data))
	return
}

// WriteTo writes the object on an io.Writer. It implements the io.WriterTo
// interface, and will write exactly object.BinarySize() bytes on w.
func (p Parameters) WriteTo(w io.Writer) (n int64, err error) {
	switch w := w.(type) {
	case buffer.Writer:

		bytes, err := p.MarshalJSON()
		if err != nil {
			return 0, err
		}

		if n, err = buffer.WriteAsUint32(w, len(bytes)); err != nil {
			return n, fmt.Errorf("buffer.WriteAsUint32[int]: %w", err)
		}

		var inc int
		if inc, err = w.Write(bytes); err != nil {
			return n + int64(inc), fmt.Errorf("io.Writer.Write: %w", err)
		}

		n += int64(inc)

		return n, w.Flush()
	default:
		return p.WriteTo(bufio.NewWriter(w))
	}
}

// ReadFrom reads on the object from an io.Writer. It implements the
// io.ReaderFrom interface.
func (p *Parameters) ReadFrom(r io.Reader) (n int64, err error) {
	switch r := r.(type) {
	case buffer.Reader:

		var size int
		if n, err = buffer.ReadAsUint32(r, &size); err != nil {
			return n, fmt.Errorf("buffer.ReadAsUint32[int]: %w", err)
		}

		bytes := make([]byte, size)

		var inc int
		if inc, err = r.Read(bytes); err != nil {
			return n + int64(inc), fmt.Errorf("io.Reader.Read: %w", err)
		}

		return n + int64(inc), p.UnmarshalJSON(bytes)

	default:
		return p.ReadFrom(bufio.NewReader(r))
	}
}

// BinarySize returns the size in bytes of the marshalled [Parameters] object.
func (p Parameters) BinarySize() int {
	// Byte size is hard to predict without marshalling.
	b, _ := p.MarshalJSON()
	return 4 + len(b)
}

// PublicParams bundles a checked parameter set with the hint matrix published
// by the shard that produced it. It is everything a client needs to derive
// query contexts and decode responses.
type PublicParams struct {
	Parameters
	Hint *matrix.Matrix
}

// Equal checks two public parameter sets for equality.
func (pp PublicParams) Equal(other *PublicParams) bool {
	return pp.Parameters.Equal(&other.Parameters) && pp.Hint.Equal(other.Hint)
}

// BinarySize returns the serialized size of the object in bytes.
func (pp PublicParams) BinarySize() int {
	return pp.Parameters.BinarySize() + pp.Hint.BinarySize()
}

// WriteTo writes the object on an io.Writer. It implements the io.WriterTo
// interface, and will write exactly object.BinarySize() bytes on w.
func (pp PublicParams) WriteTo(w io.Writer) (n int64, err error) {
	switch w := w.(type) {
	case buffer.Writer:

		var inc int64

		if inc, err = pp.Parameters.WriteTo(w); err != nil {
			return n + inc, err
		}

		n += inc

		if inc, err = pp.Hint.WriteTo(w); err != nil {
			return n + inc, err
		}

		n += inc

		return n, w.Flush()

	default:
		return pp.WriteTo(bufio.NewWriter(w))
	}
}

// ReadFrom reads on the object from an io.Writer. It implements the
// io.ReaderFrom interface.
func (pp *PublicParams) ReadFrom(r io.Reader) (n int64, err error) {
	switch r := r.(type) {
	case buffer.Reader:

		var inc int64

		if inc, err = pp.Parameters.ReadFrom(r); err != nil {
			return n + inc, err
		}

		n += inc

		if pp.Hint == nil {
			pp.Hint = new(matrix.Matrix)
		}

		if inc, err = pp.Hint.ReadFrom(r); err != nil {
			return n + inc, err
		}

		n += inc

		return n, nil

	default:
		return pp.ReadFrom(bufio.NewReader(r))
	}
}

// MarshalBinary encodes the object into a binary form on a newly allocated
// slice of bytes.
func (pp PublicParams) MarshalBinary() (data []byte, err error) {
	buf := buffer.NewBufferSize(pp.BinarySize())
	_, err = pp.WriteTo(buf)
	return buf.Bytes(), err
}

// UnmarshalBinary decodes a slice of bytes generated by
// [PublicParams.MarshalBinary] or [PublicParams.WriteTo] on the object.
func (pp *PublicParams) UnmarshalBinary(data []byte) (err error) {
	_, err = pp.ReadFrom(buffer.NewBuffer(data))
	return
}

var (
	// ExampleParametersN512 is a compact parameter set for functional testing
	// and small databases.
	ExampleParametersN512 = ParametersLiteral{
		LWEDimension:  512,
		NumRows:       1 << 12,
		ElemSizeBits:  512,
		PlaintextBits: 10,
	}

	// ExampleParametersN1572 targets 128-bit security for a 2^16-row database
	// of 1KB elements at modulus 2^32.
	ExampleParametersN1572 = ParametersLiteral{
		LWEDimension:  1572,
		NumRows:       1 << 16,
		ElemSizeBits:  8192,
		PlaintextBits: 10,
	}
)
