package pir

import "errors"

// Errors returned by the retrieval scheme. Byte-layout violations are reported
// separately as wrapped errors from the serialization layer, on the ReadFrom
// and UnmarshalBinary methods of the wire types.
var (
	// ErrInvalidParameter is returned when a parameter literal names an
	// unsupported LWE dimension or plaintext size, an invalid element size or
	// seed, or a row count that does not match the database being sharded.
	ErrInvalidParameter = errors.New("pir: invalid parameter")

	// ErrRecordTooWide is returned when an input record does not fit in the
	// configured element size.
	ErrRecordTooWide = errors.New("pir: record too wide for element size")

	// ErrMalformedQuery is returned when a query vector length does not match
	// the shard row count.
	ErrMalformedQuery = errors.New("pir: malformed query")

	// ErrMalformedResponse is returned when a response vector length does not
	// match the parameter chunk count.
	ErrMalformedResponse = errors.New("pir: malformed response")

	// ErrMalformedHint is returned when the hint matrix shape does not match
	// its parameter set.
	ErrMalformedHint = errors.New("pir: malformed hint matrix")

	// ErrIndexOutOfRange is returned when a query targets a row index beyond
	// the shard size.
	ErrIndexOutOfRange = errors.New("pir: row index out of range")

	// ErrContextConsumed is returned when a query context is used to generate
	// more than one query.
	ErrContextConsumed = errors.New("pir: query context already consumed")

	// ErrStateConsumed is returned when a secret state is used to decode more
	// than one response.
	ErrStateConsumed = errors.New("pir: secret state already consumed")

	// ErrDecodeFailed is returned when a decoded element falls outside the
	// valid plaintext range, which signals a mismatched secret state and shard
	// pairing or a corrupted response.
	ErrDecodeFailed = errors.New("pir: decoding failed")
)
