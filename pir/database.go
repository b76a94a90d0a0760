package pir

import (
	"fmt"

	"github.com/mundrapranay/silhouette-crypto/matrix"
)

// packRecords reduces the input records to the database matrix: row i holds
// the NumChunks plaintext chunks of records[i]. The caller guarantees that
// len(records) matches the parameter row count.
func packRecords(p Parameters, records [][]byte) (*matrix.Matrix, error) {

	db := matrix.NewMatrix(p.numRows, p.NumChunks())

	for i, rec := range records {
		if len(rec) > p.RecordSize() {
			return nil, fmt.Errorf("%w: record %d holds %d bytes but the element size allows %d", ErrRecordTooWide, i, len(rec), p.RecordSize())
		}
		packRecord(p, rec, db.Row(i))
	}

	return db, nil
}

// packRecord splits rec into PlaintextBits-wide chunks, most significant bit
// first. Records narrower than the element size are zero-padded on the right,
// and so are the trailing bits of the final chunk.
func packRecord(p Parameters, rec []byte, out []uint32) {

	pb := p.plaintextBits

	for j := range out {
		var v uint32
		for t := 0; t < pb; t++ {
			v <<= 1
			b := j*pb + t
			if b >= p.elemSizeBits {
				continue
			}
			if idx := b >> 3; idx < len(rec) {
				v |= uint32(rec[idx]>>(7-(b&7))) & 1
			}
		}
		out[j] = v
	}
}

// unpackRecord reassembles an element from its decoded chunks. It fails if a
// chunk exceeds the plaintext range or if the padding bits of the final chunk
// are nonzero, both of which signal a mismatched secret state and shard
// pairing or a corrupted response.
func unpackRecord(p Parameters, chunks []uint32) ([]byte, error) {

	pb := p.plaintextBits
	rec := make([]byte, p.RecordSize())

	for j, v := range chunks {

		if v >= p.PlaintextModulus() {
			return nil, fmt.Errorf("%w: chunk %d decodes to %d, outside the plaintext range", ErrDecodeFailed, j, v)
		}

		for t := 0; t < pb; t++ {
			bit := (v >> (pb - 1 - t)) & 1
			b := j*pb + t
			if b < p.elemSizeBits {
				rec[b>>3] |= byte(bit) << (7 - (b & 7))
			} else if bit == 1 {
				return nil, fmt.Errorf("%w: nonzero padding bits in final chunk", ErrDecodeFailed)
			}
		}
	}

	return rec, nil
}
