// Key-ordered cursor traversal over a Tree.
//
// First/Last descend to the leftmost/rightmost live node.
// Next/Prev walk via TopPtr: if the current node has a right
// (respectively left) child, the answer is that child's leftmost
// (rightmost) descendant; otherwise the walk climbs TopPtr links until it
// arrives at a node via its left (right) child, which is then the
// answer. Tombstoned nodes are transparently skipped in the direction of
// travel, and an optional key prefix restricts the walk to matching rows
// without the caller re-deriving tree position on every step.
package dblib

import "strings"

// Cursor positions exactly one open record tree and optionally restricts
// traversal to keys sharing a prefix, letting Table serve indexed range
// scans without exposing tree internals to callers.
type Cursor struct {
	tree   *Tree
	defs   []*FieldDefinition
	prefix string

	addr int64
	mode RecordMode
}

// NewCursor returns a Cursor over tree, positioned before the first
// record. An empty prefix matches every key.
func NewCursor(tree *Tree, defs []*FieldDefinition, prefix string) *Cursor {
	return &Cursor{tree: tree, defs: defs, prefix: prefix, mode: RecordBoF}
}

// matches reports whether key satisfies the cursor's prefix filter.
func (c *Cursor) matches(key string) bool {
	return c.prefix == "" || strings.HasPrefix(key, c.prefix)
}

// leftmost returns the leftmost live descendant of (or addr itself, if
// live) the subtree rooted at addr, skipping tombstones and out-of-prefix
// nodes by walking back up and right when a candidate is rejected.
func (c *Cursor) leftmost(addr int64) (*frame, int64, error) {
	for addr != 0 {
		node, err := loadFrame(c.tree.file, addr, c.defs)
		if err != nil {
			return nil, 0, err
		}
		if node.header.LowerRecordPtr != 0 {
			addr = node.header.LowerRecordPtr
			continue
		}
		if !node.header.IsDeleted() && c.matches(sortKey(node.fields)) {
			return node, addr, nil
		}
		return c.stepNext(node, addr)
	}
	return nil, 0, nil
}

// rightmost is the mirror of leftmost.
func (c *Cursor) rightmost(addr int64) (*frame, int64, error) {
	for addr != 0 {
		node, err := loadFrame(c.tree.file, addr, c.defs)
		if err != nil {
			return nil, 0, err
		}
		if node.header.HigherRecordPtr != 0 {
			addr = node.header.HigherRecordPtr
			continue
		}
		if !node.header.IsDeleted() && c.matches(sortKey(node.fields)) {
			return node, addr, nil
		}
		return c.stepPrev(node, addr)
	}
	return nil, 0, nil
}

// First positions the cursor at the lowest-keyed live, matching record.
func (c *Cursor) First() (*frame, error) {
	defer enter("Cursor", "First")()
	root, err := readRootPtr(c.tree.file)
	if err != nil {
		return nil, err
	}
	node, addr, err := c.leftmost(root)
	if err != nil {
		return nil, err
	}
	return c.settle(node, addr, RecordEoF)
}

// Last positions the cursor at the highest-keyed live, matching record.
func (c *Cursor) Last() (*frame, error) {
	defer enter("Cursor", "Last")()
	root, err := readRootPtr(c.tree.file)
	if err != nil {
		return nil, err
	}
	node, addr, err := c.rightmost(root)
	if err != nil {
		return nil, err
	}
	return c.settle(node, addr, RecordBoF)
}

// settle records the cursor's new position, or end (RecordEoF after a
// forward step, RecordBoF after a backward one) if node is nil.
func (c *Cursor) settle(node *frame, addr int64, end RecordMode) (*frame, error) {
	if node == nil {
		c.addr = 0
		c.mode = end
		return nil, nil
	}
	c.addr = addr
	c.mode = RecordBrowse
	return node, nil
}

// stepNext climbs from (node, addr) to the next candidate in ascending
// order: a right child's leftmost descendant, or the nearest ancestor
// reached via a left-child link.
func (c *Cursor) stepNext(node *frame, addr int64) (*frame, int64, error) {
	if node.header.HigherRecordPtr != 0 {
		return c.leftmost(node.header.HigherRecordPtr)
	}
	cur, parent := addr, node.header.TopPtr
	for parent != 0 {
		p, err := loadFrame(c.tree.file, parent, c.defs)
		if err != nil {
			return nil, 0, err
		}
		if p.header.LowerRecordPtr == cur {
			if !p.header.IsDeleted() && c.matches(sortKey(p.fields)) {
				return p, parent, nil
			}
			return c.stepNext(p, parent)
		}
		cur, parent = parent, p.header.TopPtr
	}
	return nil, 0, nil
}

// stepPrev is the mirror of stepNext.
func (c *Cursor) stepPrev(node *frame, addr int64) (*frame, int64, error) {
	if node.header.LowerRecordPtr != 0 {
		return c.rightmost(node.header.LowerRecordPtr)
	}
	cur, parent := addr, node.header.TopPtr
	for parent != 0 {
		p, err := loadFrame(c.tree.file, parent, c.defs)
		if err != nil {
			return nil, 0, err
		}
		if p.header.HigherRecordPtr == cur {
			if !p.header.IsDeleted() && c.matches(sortKey(p.fields)) {
				return p, parent, nil
			}
			return c.stepPrev(p, parent)
		}
		cur, parent = parent, p.header.TopPtr
	}
	return nil, 0, nil
}

// Next advances the cursor and returns the next live, matching record, or
// nil once the walk passes the last matching key.
func (c *Cursor) Next() (*frame, error) {
	defer enter("Cursor", "Next")()
	if c.mode == RecordBoF {
		return c.First()
	}
	if c.mode == RecordEoF || c.addr == 0 {
		return nil, nil
	}
	node, err := loadFrame(c.tree.file, c.addr, c.defs)
	if err != nil {
		return nil, err
	}
	next, addr, err := c.stepNext(node, c.addr)
	if err != nil {
		return nil, err
	}
	return c.settle(next, addr, RecordEoF)
}

// Prev retreats the cursor and returns the previous live, matching
// record, or nil once the walk passes the first matching key.
func (c *Cursor) Prev() (*frame, error) {
	defer enter("Cursor", "Prev")()
	if c.mode == RecordEoF {
		return c.Last()
	}
	if c.mode == RecordBoF || c.addr == 0 {
		return nil, nil
	}
	node, err := loadFrame(c.tree.file, c.addr, c.defs)
	if err != nil {
		return nil, err
	}
	prev, addr, err := c.stepPrev(node, c.addr)
	if err != nil {
		return nil, err
	}
	return c.settle(prev, addr, RecordBoF)
}

// Current returns the record at the cursor's present position, or nil if
// the cursor sits at BOF/EOF.
func (c *Cursor) Current() (*frame, error) {
	if c.mode != RecordBrowse || c.addr == 0 {
		return nil, nil
	}
	return loadFrame(c.tree.file, c.addr, c.defs)
}

// Addr returns the byte offset of the cursor's current frame, used by a
// secondary index's REC_POS field to point back at the primary row.
func (c *Cursor) Addr() int64 { return c.addr }
