// Record value block and length sidecar codec.
//
// A frame's value block holds every field's Coder-encoded text joined with
// ';', followed by a trailing 16-hex-digit uniquifier (the frame's own
// insertion offset) and the ";EOB" terminator. A second, independent block
// — the length sidecar — lists each field's encoded byte length as 16-hex
// digits, ';'-joined and ";EOB"-terminated. Splitting the value block back
// into fields reads the sidecar's lengths and slices directly; it never
// scans for ';' so a field's own encoded text may itself contain ';' or
// any other byte.
package dblib

import (
	"fmt"
	"strconv"
	"strings"
)

// eob terminates both the value block and the length sidecar.
const eob = ";EOB"

// lengthFieldWidth is the hex width of one length-sidecar entry.
const lengthFieldWidth = 16

// RecordMode tracks what a Record is currently being used for, mirroring
// the source's rmInsert/rmUpdate/rmBrowse/rmEof/rmBof cursor states.
type RecordMode int

const (
	RecordInsert RecordMode = iota
	RecordUpdate
	RecordBrowse
	RecordEoF
	RecordBoF
)

// FieldDefinition describes one field of an Index's schema: its name,
// type, and the Primary/NotNull/Reference flags parsed from the XML
// schema sidecar.
type FieldDefinition struct {
	Name      string
	Type      FieldType
	Primary   bool
	NotNull   bool
	Reference string
}

// FieldValue pairs a FieldDefinition with its current and backed-up
// encoded text. Value is the Coder-encoded on-disk text, not the typed Go
// value; callers go through Set/Get to cross that boundary.
type FieldValue struct {
	def    *FieldDefinition
	value  string
	backup string
}

// NewFieldValue returns a null FieldValue for def.
func NewFieldValue(def *FieldDefinition) *FieldValue {
	return &FieldValue{def: def}
}

// Name returns the underlying field's name.
func (f *FieldValue) Name() string { return f.def.Name }

// IsPrimary reports whether the underlying field belongs to the primary key.
func (f *FieldValue) IsPrimary() bool { return f.def.Primary }

// NotNull reports whether the underlying field rejects null values.
func (f *FieldValue) NotNull() bool { return f.def.NotNull }

// IsNull reports whether the field currently carries no value, matching
// the source's isNull() = empty-string check.
func (f *FieldValue) IsNull() bool { return f.value == "" }

// SetNull backs up the current value and clears it. Returns an error if
// the field does not allow nulls.
func (f *FieldValue) SetNull() error {
	if f.def.NotNull {
		return withName(ErrNullValueNotAllowed, f.def.Name)
	}
	f.backupValue()
	f.value = ""
	return nil
}

// Set encodes v through the field's Coder and stores the result, backing
// up whatever value was previously current.
func (f *FieldValue) Set(v any) error {
	if v == nil {
		return f.SetNull()
	}
	c, err := CoderFor(f.def.Type)
	if err != nil {
		return err
	}
	enc, err := c.Encode(v)
	if err != nil {
		return err
	}
	f.backupValue()
	f.value = enc
	return nil
}

// Get decodes the field's current encoded text through its Coder. A null
// field decodes to nil.
func (f *FieldValue) Get() (any, error) {
	if f.IsNull() {
		return nil, nil
	}
	c, err := CoderFor(f.def.Type)
	if err != nil {
		return nil, err
	}
	return c.Decode(f.value)
}

// backupValue saves the current encoded text so a failed write can be
// rolled back via Restore.
func (f *FieldValue) backupValue() { f.backup = f.value }

// Restore reverts to the last backed-up value, used when a write fails a
// uniqueness or not-null check after some fields have already been set.
func (f *FieldValue) Restore() { f.value = f.backup }

// setEncoded installs raw, already-encoded text directly, bypassing the
// Coder. Used when rebuilding a FieldValue from a stored value block,
// where the text is already in its on-disk form.
func (f *FieldValue) setEncoded(s string) { f.value = s }

// encoded returns the field's current on-disk text form.
func (f *FieldValue) encoded() string { return f.value }

// Record is one schema-ordered set of field values, together with the
// header describing its position in the record tree.
type Record struct {
	Header RecordHeader
	Fields []*FieldValue
	Mode   RecordMode
}

// NewRecord returns an empty Record with one null FieldValue per def, in
// schema order.
func NewRecord(defs []*FieldDefinition) *Record {
	fields := make([]*FieldValue, len(defs))
	for i, d := range defs {
		fields[i] = NewFieldValue(d)
	}
	return &Record{Fields: fields, Mode: RecordInsert}
}

// FieldByName returns the named field, or nil if no such field exists.
func (r *Record) FieldByName(name string) *FieldValue {
	for _, f := range r.Fields {
		if strings.EqualFold(f.Name(), name) {
			return f
		}
	}
	return nil
}

// primaryKeyText concatenates, with ';' separators, the encoded text of
// the leading run of primary-key fields — the same text a search key must
// produce to compare equal against a stored record's primary-key prefix.
// The run stops at the first non-primary field, matching the schema
// convention that primary fields are declared first.
func primaryKeyText(fields []*FieldValue) string {
	var parts []string
	for _, f := range fields {
		if !f.IsPrimary() {
			break
		}
		parts = append(parts, f.encoded())
	}
	return strings.Join(parts, ";")
}

// encodeValueBlock renders fields to their on-disk value block, including
// the trailing uniquifier, and reports the byte length of the primary-key
// prefix within that block (RecordHeader.PrimaryLen).
func encodeValueBlock(fields []*FieldValue, uniquifier int64) (block []byte, primaryLen int64) {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.encoded()
	}
	joined := strings.Join(parts, ";")
	s := fmt.Sprintf("%s;%0*X%s", joined, lengthFieldWidth, uniquifier, eob)
	return []byte(s), int64(len(primaryKeyText(fields)))
}

// encodeLengthSidecar renders the per-field encoded byte lengths that let
// decodeValueBlock slice the value block without scanning for ';'.
func encodeLengthSidecar(fields []*FieldValue) []byte {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%0*X", lengthFieldWidth, len(f.encoded()))
	}
	return []byte(strings.Join(parts, ";") + eob)
}

// decodeLengthSidecar parses a length sidecar back into its per-field
// byte lengths.
func decodeLengthSidecar(buf []byte) ([]int, error) {
	s := string(buf)
	if !strings.HasSuffix(s, eob) {
		return nil, withName(ErrIllegalRecordLength, "missing EOB")
	}
	s = strings.TrimSuffix(s, eob)
	if s == "" {
		return nil, nil
	}
	tokens := strings.Split(s, ";")
	lens := make([]int, len(tokens))
	for i, tok := range tokens {
		n, err := strconv.ParseInt(tok, 16, 64)
		if err != nil {
			return nil, withName(ErrIllegalRecordLength, fmt.Sprintf("field %d", i))
		}
		lens[i] = int(n)
	}
	return lens, nil
}

// decodeValueBlock splits a value block into each field's raw encoded
// text using lens (from decodeLengthSidecar), then installs the text into
// defs-shaped FieldValues. The trailing uniquifier and ";EOB" are skipped
// without being parsed; callers that need the uniquifier read it directly
// off the frame via valueBlockUniquifier.
//
// lens may be shorter than defs: a field added to a schema after rows
// already exist has no sidecar entry in those older rows, and reads as
// null rather than rejecting the row outright.
func decodeValueBlock(block []byte, lens []int, defs []*FieldDefinition) ([]*FieldValue, error) {
	if len(lens) > len(defs) {
		return nil, withName(ErrIllegalRecordLength, "field count mismatch")
	}

	fields := make([]*FieldValue, len(defs))
	pos := 0
	for i, n := range lens {
		if pos+n > len(block) {
			return nil, withName(ErrIllegalRecordLength, fmt.Sprintf("field %d overruns block", i))
		}
		fv := NewFieldValue(defs[i])
		fv.setEncoded(string(block[pos : pos+n]))
		fields[i] = fv
		pos += n
		if i < len(lens)-1 {
			pos++ // ';' separator before the next field
		}
	}
	for i := len(lens); i < len(defs); i++ {
		fields[i] = NewFieldValue(defs[i])
	}
	return fields, nil
}

// valueBlockUniquifier extracts the 16-hex uniquifier from a decoded value
// block, i.e. the bytes between the last field and the trailing ";EOB".
func valueBlockUniquifier(block []byte) (int64, error) {
	s := strings.TrimSuffix(string(block), eob)
	idx := strings.LastIndexByte(s, ';')
	if idx < 0 || len(s)-idx-1 != lengthFieldWidth {
		return 0, withName(ErrIllegalRecordLength, "missing uniquifier")
	}
	return strconv.ParseInt(s[idx+1:], 16, 64)
}
