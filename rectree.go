// On-disk record tree: a binary search tree, kept roughly balanced by
// weight-based rotations, keyed on the ';'-joined encoded text of every
// field of a record in schema order (primary-key fields first for a
// primary Index, then REC_POS last for a secondary Index), stored as a
// chain of frames inside one data file.
//
// Each frame is, in order: a fixed-width RecordHeader, a value block, and
// a length sidecar. The file's first FileHeaderSize bytes hold the root
// frame's address in the same decimal form the header fields use, so the
// tree can be found again on reopen without a separate metadata file.
package dblib

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// FileHeaderSize is the width of the leading root-pointer header. An empty
// file holds FileHeaderSize zero bytes ("0000000000000000") here.
const FileHeaderSize = 16

// rebalanceThreshold is the subtree-weight ratio that triggers a zig
// rotation: a child carrying more than this many times (its sibling's
// NumRecords + 1) is rotated up one level.
const rebalanceThreshold = 4

// Tree is one record tree backed by a single open file.
type Tree struct {
	file *os.File
	path string
}

// OpenTree opens (or creates) the tree file at path via the shared file
// registry and validates or initializes its root-pointer header.
func OpenTree(path string) (*Tree, error) {
	defer enter("Tree", "Open")()

	f, err := openTableFile(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		if err := writeRootPtr(f, 0); err != nil {
			return nil, err
		}
	} else if _, err := readRootPtr(f); err != nil {
		return nil, withName(ErrCorruptHeader, path)
	}

	return &Tree{file: f, path: path}, nil
}

// Close releases the tree's reference on its underlying file.
func (t *Tree) Close() error {
	return closeTableFile(t.path)
}

// readRootPtr reads the tree's root frame address from the file header.
func readRootPtr(f *os.File) (int64, error) {
	buf := make([]byte, FileHeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil && err != io.EOF {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(buf)), 10, 64)
}

// writeRootPtr persists addr as the tree's root frame address.
func writeRootPtr(f *os.File, addr int64) error {
	s := fmt.Sprintf("%0*d", FileHeaderSize, addr)
	_, err := f.WriteAt([]byte(s), 0)
	return err
}

// frame is one loaded tree node: its header plus decoded field values.
type frame struct {
	header RecordHeader
	fields []*FieldValue
}

// sortKey is the comparison text for a frame: every field's encoded text,
// ';'-joined in schema order. Bytewise comparison of sortKey values
// equals the comparison order of the underlying typed values, because
// each Coder's encoding is itself order-preserving and primary-key
// fields always lead a schema (so they dominate the comparison exactly
// as RecordHeader.PrimaryLen assumes for primary-key-only lookups).
func sortKey(fields []*FieldValue) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.encoded()
	}
	return strings.Join(parts, ";")
}

// loadFrame reads the header, value block, and length sidecar at addr and
// decodes the fields against defs.
func loadFrame(f *os.File, addr int64, defs []*FieldDefinition) (*frame, error) {
	h, err := readRecordHeader(f, addr)
	if err != nil {
		return nil, err
	}

	block := make([]byte, h.BufferLen)
	if _, err := f.ReadAt(block, addr+HeaderLength); err != nil {
		return nil, withName(ErrIllegalRecordLength, fmt.Sprintf("value block at %d", addr))
	}

	sidecar := make([]byte, h.StringLengths)
	if _, err := f.ReadAt(sidecar, addr+HeaderLength+h.BufferLen); err != nil {
		return nil, withName(ErrIllegalRecordLength, fmt.Sprintf("sidecar at %d", addr))
	}

	lens, err := decodeLengthSidecar(sidecar)
	if err != nil {
		return nil, err
	}
	fields, err := decodeValueBlock(block, lens, defs)
	if err != nil {
		return nil, err
	}

	return &frame{header: *h, fields: fields}, nil
}

// appendFrame writes a brand-new frame for fields at the current end of
// file and returns its address.
func appendFrame(f *os.File, fields []*FieldValue) (int64, error) {
	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}

	block, primaryLen := encodeValueBlock(fields, end)
	sidecar := encodeLengthSidecar(fields)

	h := RecordHeader{
		Address:       end,
		NumRecords:    1,
		NumFields:     int64(len(fields)),
		StringLengths: int64(len(sidecar)),
		PrimaryLen:    primaryLen,
		BufferLen:     int64(len(block)),
	}

	buf := make([]byte, 0, HeaderLength+len(block)+len(sidecar))
	buf = append(buf, encodeHeader(&h)...)
	buf = append(buf, block...)
	buf = append(buf, sidecar...)
	if _, err := f.WriteAt(buf, end); err != nil {
		return 0, err
	}
	return end, nil
}

// Insert adds fields as a new leaf, keeping the tree's key order, and then
// checks every node from the leaf's parent up to the root, applying a zig
// rotation wherever the weight imbalance crosses rebalanceThreshold.
// unique, when true, rejects with ErrKeyViolation a live row met on the
// way down that has the same primary-key prefix (or, for a schema with no
// primary fields, the same sortKey); duplicates otherwise land to the
// right of any existing equal keys.
func (t *Tree) Insert(fields []*FieldValue, defs []*FieldDefinition, unique bool) (int64, error) {
	defer enter("Tree", "Insert")()

	root, err := readRootPtr(t.file)
	if err != nil {
		return 0, err
	}

	addr, err := appendFrame(t.file, fields)
	if err != nil {
		return 0, err
	}

	if root == 0 {
		return addr, writeRootPtr(t.file, addr)
	}

	newKey := sortKey(fields)
	newPK := primaryKeyText(fields)

	var prev *frame
	var prevAddr int64
	cur := root
	goneLeft := false

	for cur != 0 {
		node, err := loadFrame(t.file, cur, defs)
		if err != nil {
			return 0, err
		}
		cmp := strings.Compare(newKey, sortKey(node.fields))
		dup := cmp == 0 || (newPK != "" && newPK == primaryKeyText(node.fields))
		if dup && unique && !node.header.IsDeleted() {
			return 0, ErrKeyViolation
		}
		prev, prevAddr = node, cur
		if cmp < 0 {
			goneLeft = true
			cur = node.header.LowerRecordPtr
		} else {
			goneLeft = false
			cur = node.header.HigherRecordPtr
		}
	}

	if goneLeft {
		prev.header.LowerRecordPtr = addr
	} else {
		prev.header.HigherRecordPtr = addr
	}
	if err := writeRecordHeader(t.file, &prev.header); err != nil {
		return 0, err
	}

	leaf, err := readRecordHeader(t.file, addr)
	if err != nil {
		return 0, err
	}
	leaf.TopPtr = prevAddr
	if err := writeRecordHeader(t.file, leaf); err != nil {
		return 0, err
	}

	if err := t.bumpWeight(prevAddr, defs); err != nil {
		return 0, err
	}

	// Walk upward from the new leaf's parent toward the root, rebalancing
	// at every internal node on the path, not just the immediate parent:
	// a chain of monotonic inserts only ever overweighs nodes farther up
	// the spine, so checking a single level would never rotate anything.
	cur = prevAddr
	for cur != 0 {
		h, err := readRecordHeader(t.file, cur)
		if err != nil {
			return 0, err
		}
		rotated, err := t.rebalance(cur, defs)
		if err != nil {
			return 0, err
		}
		if rotated {
			// cur's own parent link changed under it; re-read before
			// continuing the climb.
			h, err = readRecordHeader(t.file, cur)
			if err != nil {
				return 0, err
			}
		}
		cur = h.TopPtr
	}

	return addr, nil
}

// bumpWeight walks from addr up to the root, incrementing NumRecords by
// one on every ancestor, including addr itself.
func (t *Tree) bumpWeight(addr int64, defs []*FieldDefinition) error {
	for addr != 0 {
		h, err := readRecordHeader(t.file, addr)
		if err != nil {
			return err
		}
		h.NumRecords++
		if err := writeRecordHeader(t.file, h); err != nil {
			return err
		}
		addr = h.TopPtr
	}
	return nil
}

// weight returns a subtree's NumRecords, or 0 for an absent child.
func (t *Tree) weight(addr int64) (int64, error) {
	if addr == 0 {
		return 0, nil
	}
	h, err := readRecordHeader(t.file, addr)
	if err != nil {
		return 0, err
	}
	return h.NumRecords, nil
}

// rebalance compares the weights of the two child subtrees of the node at
// addr and, if one side outweighs the other by more than
// rebalanceThreshold, performs the single zig rotation that promotes the
// heavier child: rotateRight for a heavy left side, rotateLeft for a
// heavy right side. The grandchildren's weights are not consulted, so no
// double rotation is ever performed. The returned bool
// reports whether a rotation actually happened, since a caller walking
// further up the tree needs to know whether addr's parent link changed
// underneath it.
func (t *Tree) rebalance(addr int64, defs []*FieldDefinition) (bool, error) {
	h, err := readRecordHeader(t.file, addr)
	if err != nil {
		return false, err
	}

	lw, err := t.weight(h.LowerRecordPtr)
	if err != nil {
		return false, err
	}
	hw, err := t.weight(h.HigherRecordPtr)
	if err != nil {
		return false, err
	}

	switch {
	case lw > rebalanceThreshold*(hw+1):
		return true, t.rotateRight(addr)
	case hw > rebalanceThreshold*(lw+1):
		return true, t.rotateLeft(addr)
	default:
		return false, nil
	}
}

// rotateRight promotes cur's left child ("other") to cur's position.
// cur becomes other's right child; other's former right child (tmp)
// becomes cur's new left child. This is the mirror of rotateLeft.
func (t *Tree) rotateRight(curAddr int64) error {
	cur, err := readRecordHeader(t.file, curAddr)
	if err != nil {
		return err
	}
	otherAddr := cur.LowerRecordPtr
	other, err := readRecordHeader(t.file, otherAddr)
	if err != nil {
		return err
	}
	rootParent := cur.TopPtr
	tmpAddr := other.HigherRecordPtr

	cur.LowerRecordPtr = tmpAddr
	cur.TopPtr = otherAddr
	if tmpAddr != 0 {
		tmp, err := readRecordHeader(t.file, tmpAddr)
		if err != nil {
			return err
		}
		tmp.TopPtr = curAddr
		if err := writeRecordHeader(t.file, tmp); err != nil {
			return err
		}
	}

	other.HigherRecordPtr = curAddr
	other.TopPtr = rootParent

	if err := t.relinkParent(rootParent, curAddr, otherAddr); err != nil {
		return err
	}
	if err := writeRecordHeader(t.file, cur); err != nil {
		return err
	}
	if err := writeRecordHeader(t.file, other); err != nil {
		return err
	}
	return t.recomputeWeight(curAddr)
}

// rotateLeft promotes cur's right child ("other") to cur's position.
// cur becomes other's left child; other's former left child (tmp)
// becomes cur's new right child.
func (t *Tree) rotateLeft(curAddr int64) error {
	cur, err := readRecordHeader(t.file, curAddr)
	if err != nil {
		return err
	}
	otherAddr := cur.HigherRecordPtr
	other, err := readRecordHeader(t.file, otherAddr)
	if err != nil {
		return err
	}
	rootParent := cur.TopPtr
	tmpAddr := other.LowerRecordPtr

	cur.HigherRecordPtr = tmpAddr
	cur.TopPtr = otherAddr
	if tmpAddr != 0 {
		tmp, err := readRecordHeader(t.file, tmpAddr)
		if err != nil {
			return err
		}
		tmp.TopPtr = curAddr
		if err := writeRecordHeader(t.file, tmp); err != nil {
			return err
		}
	}

	other.LowerRecordPtr = curAddr
	other.TopPtr = rootParent

	if err := t.relinkParent(rootParent, curAddr, otherAddr); err != nil {
		return err
	}
	if err := writeRecordHeader(t.file, cur); err != nil {
		return err
	}
	if err := writeRecordHeader(t.file, other); err != nil {
		return err
	}
	return t.recomputeWeight(curAddr)
}

// relinkParent repoints rootParent's child pointer that used to name
// oldChild so that it names newChild instead. rootParent == 0 means
// oldChild was the tree root, so the file's root pointer is updated.
func (t *Tree) relinkParent(rootParent, oldChild, newChild int64) error {
	if rootParent == 0 {
		return writeRootPtr(t.file, newChild)
	}
	p, err := readRecordHeader(t.file, rootParent)
	if err != nil {
		return err
	}
	switch oldChild {
	case p.LowerRecordPtr:
		p.LowerRecordPtr = newChild
	case p.HigherRecordPtr:
		p.HigherRecordPtr = newChild
	}
	return writeRecordHeader(t.file, p)
}

// recomputeWeight restores NumRecords at addr (and its new parent, after
// a rotation changed which nodes are whose children) from its children's
// own NumRecords, bottom-up.
func (t *Tree) recomputeWeight(addr int64) error {
	h, err := readRecordHeader(t.file, addr)
	if err != nil {
		return err
	}
	lw, err := t.weight(h.LowerRecordPtr)
	if err != nil {
		return err
	}
	hw, err := t.weight(h.HigherRecordPtr)
	if err != nil {
		return err
	}
	h.NumRecords = 1 + lw + hw

	parent := h.TopPtr
	if err := writeRecordHeader(t.file, h); err != nil {
		return err
	}
	if parent == 0 {
		return nil
	}
	return t.recomputeWeight(parent)
}
