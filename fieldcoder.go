// Field value codec.
//
// Each supported type is mapped to a text form chosen so that lexicographic
// byte ordering of the text equals natural ordering of the value — the
// tree engine compares encoded values with bytes.Compare, never a typed
// comparator, so the encoding alone carries the ordering contract.
//
// Integer and Double use a fixed-width, order-preserving encoding rather
// than the variable-width decimal text a naive implementation would reach
// for: Integer biases the signed value by 2^63 and hex-encodes the result;
// Double applies the IEEE-754 sign/bit-flip trick before hex-encoding.
// Both are 16 uppercase hex digits, so all records of a type compare
// correctly byte-for-byte regardless of magnitude or sign.
package dblib

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// FieldType enumerates the supported field value types.
type FieldType int

const (
	FieldBoolean FieldType = iota
	FieldInteger
	FieldNumber
	FieldDate
	FieldString
	FieldBlob
)

// signBit is the bias applied to signed 64-bit integers and the bit
// flipped/tested in the IEEE-754 double encoding.
const signBit = uint64(1) << 63

// Coder encodes and decodes a single field value to and from its
// order-preserving on-disk text form. One Coder per FieldType.
type Coder interface {
	Type() FieldType
	Encode(v any) (string, error)
	Decode(s string) (any, error)
}

// CoderFor returns the Coder for a field type.
func CoderFor(t FieldType) (Coder, error) {
	switch t {
	case FieldBoolean:
		return booleanCoder{}, nil
	case FieldInteger:
		return integerCoder{}, nil
	case FieldNumber:
		return doubleCoder{}, nil
	case FieldDate:
		return dateCoder{}, nil
	case FieldString:
		return stringCoder{}, nil
	case FieldBlob:
		return blobCoder{threshold: BlobCompressThreshold}, nil
	default:
		return nil, fmt.Errorf("dblib: unknown field type %d", t)
	}
}

// booleanCoder: "Y" for true, "N" for false.
type booleanCoder struct{}

func (booleanCoder) Type() FieldType { return FieldBoolean }

func (booleanCoder) Encode(v any) (string, error) {
	b, ok := v.(bool)
	if !ok {
		return "", fmt.Errorf("dblib: boolean coder: %T is not bool", v)
	}
	if b {
		return "Y", nil
	}
	return "N", nil
}

func (booleanCoder) Decode(s string) (any, error) {
	return len(s) > 0 && s[0] == 'Y', nil
}

// integerCoder: signed 64-bit value biased by 2^63, fixed-width big-endian
// encoded, then hex-encoded to 16 uppercase digits. uint64(v) ^ signBit is
// equivalent to adding 2^63 modulo 2^64 — it flips exactly the sign bit,
// which maps MIN->0, 0->2^63, MAX->2^64-1 while preserving signed order
// under unsigned (and therefore bytewise) comparison.
type integerCoder struct{}

func (integerCoder) Type() FieldType { return FieldInteger }

func (integerCoder) Encode(v any) (string, error) {
	n, err := asInt64(v)
	if err != nil {
		return "", err
	}
	biased := uint64(n) ^ signBit
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], biased)
	return strings.ToUpper(hex.EncodeToString(buf[:])), nil
}

func (integerCoder) Decode(s string) (any, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 8 {
		return nil, fmt.Errorf("dblib: integer coder: malformed value %q", s)
	}
	biased := binary.BigEndian.Uint64(raw)
	return int64(biased ^ signBit), nil
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("dblib: integer coder: %T is not an integer", v)
	}
}

// doubleCoder: IEEE-754 bit-trick encoding. Positive values (sign bit 0)
// get their sign bit set; negative values (sign bit 1) are bitwise
// inverted entirely. Both transforms land at a representation that sorts
// correctly as an unsigned 64-bit integer, unlike the raw IEEE-754 bit
// pattern (where negative numbers sort backwards and above positives).
type doubleCoder struct{}

func (doubleCoder) Type() FieldType { return FieldNumber }

func (doubleCoder) Encode(v any) (string, error) {
	f, err := asFloat64(v)
	if err != nil {
		return "", err
	}
	bits := math.Float64bits(f)
	var ordered uint64
	if bits&signBit != 0 {
		ordered = ^bits
	} else {
		ordered = bits | signBit
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], ordered)
	return strings.ToUpper(hex.EncodeToString(buf[:])), nil
}

func (doubleCoder) Decode(s string) (any, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 8 {
		return nil, fmt.Errorf("dblib: double coder: malformed value %q", s)
	}
	ordered := binary.BigEndian.Uint64(raw)
	var bits uint64
	if ordered&signBit != 0 {
		bits = ordered &^ signBit
	} else {
		bits = ^ordered
	}
	return math.Float64frombits(bits), nil
}

func asFloat64(v any) (float64, error) {
	switch f := v.(type) {
	case float64:
		return f, nil
	case float32:
		return float64(f), nil
	default:
		return 0, fmt.Errorf("dblib: double coder: %T is not a float", v)
	}
}

// stringCoder stores text verbatim. Field boundaries within a value block
// are recovered from the length sidecar, not by scanning for separators,
// so embedded ';' bytes are safe.
type stringCoder struct{}

func (stringCoder) Type() FieldType { return FieldString }

func (stringCoder) Encode(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("dblib: string coder: %T is not string", v)
	}
	return s, nil
}

func (stringCoder) Decode(s string) (any, error) {
	return s, nil
}

// dateDisplayLayout fixes fractional-second width and forces UTC so the
// text form sorts chronologically under bytewise comparison.
const dateDisplayLayout = "2006-01-02T15:04:05.000000000Z"

// dateCoder stores time.Time values as a fixed-width UTC RFC3339-style
// string. Fixed width plus UTC normalization is what makes lexicographic
// ordering equal chronological ordering; time.RFC3339Nano alone varies in
// width (trailing zero fractional digits are trimmed) and would not sort
// correctly.
type dateCoder struct{}

func (dateCoder) Type() FieldType { return FieldDate }

func (dateCoder) Encode(v any) (string, error) {
	t, ok := v.(time.Time)
	if !ok {
		return "", fmt.Errorf("dblib: date coder: %T is not time.Time", v)
	}
	return t.UTC().Format(dateDisplayLayout), nil
}

func (dateCoder) Decode(s string) (any, error) {
	t, err := time.Parse(dateDisplayLayout, s)
	if err != nil {
		return nil, fmt.Errorf("dblib: date coder: malformed value %q: %w", s, err)
	}
	return t, nil
}

// BlobCompressThreshold is the plaintext size, in bytes, above which
// blobCoder compresses the value with zstd before hex-encoding it.
const BlobCompressThreshold = 256

// zstdEncoder/zstdDecoder are allocated once: constructing either is
// expensive (internal state tables), and Encode/Decode run on the engine's
// hot path for every blob-typed field.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// blobScheme prefixes the hex payload so Decode knows whether to inflate.
const (
	blobSchemeRaw        = '0'
	blobSchemeCompressed = '1'
)

// blobCoder hex-encodes raw bytes so the value block stays ASCII-only.
// Payloads over threshold bytes are zstd-compressed first; small blobs
// are stored raw since compression overhead would dominate their size.
type blobCoder struct {
	threshold int
}

func (blobCoder) Type() FieldType { return FieldBlob }

func (c blobCoder) Encode(v any) (string, error) {
	b, ok := v.([]byte)
	if !ok {
		return "", fmt.Errorf("dblib: blob coder: %T is not []byte", v)
	}

	scheme := byte(blobSchemeRaw)
	payload := b
	if len(b) > c.threshold {
		scheme = blobSchemeCompressed
		payload = zstdEncoder.EncodeAll(b, nil)
	}

	return string(scheme) + strings.ToUpper(hex.EncodeToString(payload)), nil
}

func (blobCoder) Decode(s string) (any, error) {
	if len(s) == 0 {
		return []byte{}, nil
	}
	scheme := s[0]
	raw, err := hex.DecodeString(s[1:])
	if err != nil {
		return nil, fmt.Errorf("dblib: blob coder: malformed value: %w", err)
	}
	switch scheme {
	case blobSchemeRaw:
		return raw, nil
	case blobSchemeCompressed:
		out, err := zstdDecoder.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("dblib: blob coder: zstd: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("dblib: blob coder: unknown scheme %q", scheme)
	}
}

// ParseFieldType is a convenience used by tests and the XML schema loader
// to map the integer TYPE attribute onto a FieldType.
func ParseFieldType(n int) (FieldType, error) {
	if n < int(FieldBoolean) || n > int(FieldBlob) {
		return 0, fmt.Errorf("dblib: unknown field type %d", n)
	}
	return FieldType(n), nil
}

// FormatFieldType renders a FieldType back to its integer form, the
// inverse of ParseFieldType, used when writing the XML schema sidecar.
func FormatFieldType(t FieldType) string {
	return strconv.Itoa(int(t))
}
