// Record header frame codec.
//
// Every record frame opens with a fixed-width, all-decimal textual header
// encoding one binary-search-tree node: parent/child pointers as absolute
// file offsets, a subtree record count used by the rebalancing heuristic, and
// the byte lengths needed to carve the value block and length sidecar out
// of the bytes that follow. The fixed width lets the engine seek directly
// to any header field without parsing the rest of the frame.
package dblib

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// HeaderLength is the fixed byte width of an encoded record header:
// 8 numeric fields at 17 bytes each ("%016d;") plus a 2-digit status,
// its separator, and the "EOH" magic (2 + 1 + 3 = 6).
const HeaderLength = 8*(16+1) + 2 + 1 + 3

// headerMagic terminates every header frame.
const headerMagic = "EOH"

// Status bits within RecordHeader.Status.
const (
	statusDeleted = 1 << 0
	statusLocked  = 1 << 1
)

// RecordHeader is one binary-search-tree node as stored on disk. Address
// is the node's own byte offset; it is never persisted (the frame begins
// at Address by construction) but is filled in by whatever read it.
type RecordHeader struct {
	Address         int64 // self-offset, derived on read, not persisted
	TopPtr          int64 // parent offset, 0 at root
	LowerRecordPtr  int64 // left child offset, 0 if absent
	HigherRecordPtr int64 // right child offset, 0 if absent
	NumRecords      int64 // count of records in this subtree, including self
	NumFields       int64
	StringLengths   int64 // byte length of the length-sidecar block
	PrimaryLen      int64 // byte length of the primary-key prefix in the value block
	BufferLen       int64 // byte length of the value block
	Status          int64 // bit 0 = deleted, bit 1 = locked (reserved)
}

// IsDeleted reports whether the tombstone bit is set.
func (h *RecordHeader) IsDeleted() bool { return h.Status&statusDeleted != 0 }

// SetDeleted sets the tombstone bit.
func (h *RecordHeader) SetDeleted() { h.Status |= statusDeleted }

// ClearDeleted clears the tombstone bit.
func (h *RecordHeader) ClearDeleted() { h.Status &^= statusDeleted }

// encodeHeader renders h to its fixed HeaderLength-byte textual frame.
func encodeHeader(h *RecordHeader) []byte {
	s := fmt.Sprintf(
		"%016d;%016d;%016d;%016d;%016d;%016d;%016d;%016d;%02d;%s",
		h.TopPtr, h.LowerRecordPtr, h.HigherRecordPtr, h.NumRecords, h.NumFields,
		h.StringLengths, h.PrimaryLen, h.BufferLen, h.Status, headerMagic,
	)
	return []byte(s)
}

// decodeHeader parses a HeaderLength-byte frame read from offset addr.
func decodeHeader(buf []byte, addr int64) (*RecordHeader, error) {
	if len(buf) != HeaderLength {
		return nil, withName(ErrIllegalRecordHeader, fmt.Sprintf("short read at %d", addr))
	}
	if !strings.HasSuffix(string(buf), ";"+headerMagic) {
		return nil, withName(ErrIllegalRecordHeader, fmt.Sprintf("bad magic at %d", addr))
	}

	fields := strings.Split(string(buf), ";")
	// 8 numeric fields, status, "EOH" == 10 tokens.
	if len(fields) != 10 {
		return nil, withName(ErrIllegalRecordHeader, fmt.Sprintf("field count at %d", addr))
	}

	parse := func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	}

	top, err := parse(fields[0])
	if err != nil {
		return nil, withName(ErrIllegalRecordHeader, "topPtr")
	}
	lower, err := parse(fields[1])
	if err != nil {
		return nil, withName(ErrIllegalRecordHeader, "lowerRecordPtr")
	}
	higher, err := parse(fields[2])
	if err != nil {
		return nil, withName(ErrIllegalRecordHeader, "higherRecordPtr")
	}
	numRecords, err := parse(fields[3])
	if err != nil {
		return nil, withName(ErrIllegalRecordHeader, "numRecords")
	}
	numFields, err := parse(fields[4])
	if err != nil {
		return nil, withName(ErrIllegalRecordHeader, "numFields")
	}
	stringLengths, err := parse(fields[5])
	if err != nil {
		return nil, withName(ErrIllegalRecordHeader, "stringLengths")
	}
	primaryLen, err := parse(fields[6])
	if err != nil {
		return nil, withName(ErrIllegalRecordHeader, "primaryLen")
	}
	bufferLen, err := parse(fields[7])
	if err != nil {
		return nil, withName(ErrIllegalRecordHeader, "bufferLen")
	}
	status, err := parse(fields[8])
	if err != nil {
		return nil, withName(ErrIllegalRecordHeader, "status")
	}

	return &RecordHeader{
		Address:         addr,
		TopPtr:          top,
		LowerRecordPtr:  lower,
		HigherRecordPtr: higher,
		NumRecords:      numRecords,
		NumFields:       numFields,
		StringLengths:   stringLengths,
		PrimaryLen:      primaryLen,
		BufferLen:       bufferLen,
		Status:          status,
	}, nil
}

// readRecordHeader loads the header frame at addr.
func readRecordHeader(f *os.File, addr int64) (*RecordHeader, error) {
	buf := make([]byte, HeaderLength)
	if _, err := f.ReadAt(buf, addr); err != nil {
		return nil, withName(ErrIllegalRecordHeader, fmt.Sprintf("read at %d: %v", addr, err))
	}
	return decodeHeader(buf, addr)
}

// writeRecordHeader persists h at its own Address.
func writeRecordHeader(f *os.File, h *RecordHeader) error {
	_, err := f.WriteAt(encodeHeader(h), h.Address)
	return err
}
