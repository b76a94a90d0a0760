package pir

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackRecord(t *testing.T) {

	params := mustParams(t, ParametersLiteral{LWEDimension: 512, NumRows: 4, ElemSizeBits: 16, PlaintextBits: 10})

	rec := make([]byte, 2)
	binary.BigEndian.PutUint16(rec, 65000)

	chunks := make([]uint32, params.NumChunks())
	packRecord(params, rec, chunks)

	// 65000 split into 10-bit chunks, most significant bits first; the final
	// chunk carries the remaining 6 bits left-aligned
	require.Equal(t, []uint32{65000 >> 6, (65000 & 0x3F) << 4}, chunks)

	back, err := unpackRecord(params, chunks)
	require.NoError(t, err)
	require.Equal(t, rec, back)
}

func TestPackRecordZeroPadsNarrowRecords(t *testing.T) {

	params := mustParams(t, ParametersLiteral{LWEDimension: 512, NumRows: 4, ElemSizeBits: 16, PlaintextBits: 10})

	chunks := make([]uint32, params.NumChunks())
	packRecord(params, []byte{0xAB}, chunks)

	back, err := unpackRecord(params, chunks)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAB, 0x00}, back)
}

func TestPackRecordsRejectsWideRecords(t *testing.T) {

	params := mustParams(t, ParametersLiteral{LWEDimension: 512, NumRows: 1, ElemSizeBits: 16, PlaintextBits: 10})

	_, err := packRecords(params, [][]byte{{1, 2, 3}})
	require.ErrorIs(t, err, ErrRecordTooWide)
}

func TestUnpackRecordRejectsInvalidChunks(t *testing.T) {

	params := mustParams(t, ParametersLiteral{LWEDimension: 512, NumRows: 4, ElemSizeBits: 16, PlaintextBits: 10})

	_, err := unpackRecord(params, []uint32{1 << 10, 0})
	require.ErrorIs(t, err, ErrDecodeFailed)

	// the low bit of the second chunk is padding for a 16-bit element
	_, err = unpackRecord(params, []uint32{0, 1})
	require.ErrorIs(t, err, ErrDecodeFailed)
}

func TestPackRecordsRoundTrip(t *testing.T) {

	params := mustParams(t, ParametersLiteral{LWEDimension: 512, NumRows: 8, ElemSizeBits: 48, PlaintextBits: 9})

	records := make([][]byte, params.NumRows())
	for i := range records {
		rec := make([]byte, params.RecordSize())
		for j := range rec {
			rec[j] = byte(37*i + 11*j + 3)
		}
		records[i] = rec
	}

	db, err := packRecords(params, records)
	require.NoError(t, err)
	require.Equal(t, params.NumRows(), db.Rows)
	require.Equal(t, params.NumChunks(), db.Cols)

	for i := range records {
		back, err := unpackRecord(params, db.Row(i))
		require.NoError(t, err)
		require.Equal(t, records[i], back)
	}
}
