package btree

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Insert adds a row keyed by row.ID. A second insert of an existing key
// fails with ErrDuplicateKey before any mutation.
func (t *Table) Insert(row Row) error {
	c, err := t.Find(row.ID)
	if err != nil {
		return err
	}

	leaf, err := t.page(c.pageNum)
	if err != nil {
		return err
	}
	n := leafNumCells(leaf)

	if c.cellNum < n && leafKey(leaf, c.cellNum) == row.ID {
		return ErrDuplicateKey
	}

	if n < LeafMaxCells {
		for i := n; i > c.cellNum; i-- {
			copy(leafCell(leaf, i), leafCell(leaf, i-1))
		}
		setLeafKey(leaf, c.cellNum, row.ID)
		serializeRow(&row, leafValue(leaf, c.cellNum))
		setLeafNumCells(leaf, n+1)
		t.header.numRows++
		return nil
	}

	if err := t.leafSplitAndInsert(c, &row); err != nil {
		return err
	}
	t.header.numRows++
	return nil
}

// leafSplitAndInsert splits a full leaf around the insertion point. The new
// right leaf is spliced into the sibling chain, the combined cells are
// distributed low half left, high half right, and the split propagates to
// the parent.
func (t *Table) leafSplitAndInsert(c *Cursor, row *Row) error {
	oldPage := c.pageNum
	oldLeaf, err := t.page(oldPage)
	if err != nil {
		return err
	}
	oldN := leafNumCells(oldLeaf)

	newPage, err := t.allocatePage()
	if err != nil {
		return err
	}
	newLeaf, err := t.page(newPage)
	if err != nil {
		return err
	}
	initLeafNode(newLeaf)

	// Splice the new leaf in right after the old one.
	setLeafNextLeaf(newLeaf, leafNextLeaf(oldLeaf))
	setLeafNextLeaf(oldLeaf, newPage)

	// Assemble the combined cell list with the new cell at the insertion
	// point.
	total := oldN + 1
	cells := make([][]byte, 0, total)
	for i := 0; i < oldN; i++ {
		cell := make([]byte, LeafCellSize)
		copy(cell, leafCell(oldLeaf, i))
		cells = append(cells, cell)
	}
	newCell := make([]byte, LeafCellSize)
	binary.LittleEndian.PutUint32(newCell[:leafKeySize], uint32(row.ID))
	serializeRow(row, newCell[leafKeySize:])

	ins := c.cellNum
	if ins > oldN {
		ins = oldN
	}
	cells = append(cells, nil)
	copy(cells[ins+1:], cells[ins:total-1])
	cells[ins] = newCell

	leftCount := total / 2

	for i := 0; i < leftCount; i++ {
		copy(leafCell(oldLeaf, i), cells[i])
	}
	setLeafNumCells(oldLeaf, leftCount)

	for i := leftCount; i < total; i++ {
		copy(leafCell(newLeaf, i-leftCount), cells[i])
	}
	setLeafNumCells(newLeaf, total-leftCount)

	setNodeParent(newLeaf, nodeParent(oldLeaf))

	t.log.Debug("leaf split",
		zap.Uint32("left", oldPage),
		zap.Uint32("right", newPage),
		zap.Int32("key", row.ID))

	return t.insertIntoParent(oldPage, newPage)
}

// insertIntoParent registers right as a new child next to left. A root
// split grows the tree instead.
func (t *Table) insertIntoParent(leftPage, rightPage uint32) error {
	left, err := t.page(leftPage)
	if err != nil {
		return err
	}

	if isNodeRoot(left) {
		return t.createNewRoot(rightPage)
	}

	parentPage := nodeParent(left)
	// Left kept the low half, so its stored max key may have decreased.
	if err := t.updateChildKey(parentPage, leftPage); err != nil {
		return err
	}
	return t.internalInsertChild(parentPage, rightPage)
}

// internalInsertChild adds newChild to the internal node at parentPage,
// splitting it and propagating upward on overflow. The child list is
// collected, sorted by subtree max key, and the node rebuilt, which
// regenerates separator keys and parent pointers in one place.
func (t *Table) internalInsertChild(parentPage, newChild uint32) error {
	parent, err := t.page(parentPage)
	if err != nil {
		return err
	}
	if nodeType(parent) != TypeInternal {
		return errors.Errorf("page %d: expected internal node", parentPage)
	}

	children := collectChildren(parent)
	children = append(children, newChild)
	if err := t.sortChildrenByMaxKey(children); err != nil {
		return err
	}

	if len(children) <= InternalMaxChildren {
		return t.rebuildInternal(parentPage, children)
	}

	// Overflow: split the child list in half across a new internal node.
	newInternalPage, err := t.allocatePage()
	if err != nil {
		return err
	}
	newInternal, err := t.page(newInternalPage)
	if err != nil {
		return err
	}
	initInternalNode(newInternal)

	parentIsRoot := isNodeRoot(parent)
	grandparent := nodeParent(parent)

	leftCount := len(children) / 2
	if err := t.rebuildInternal(parentPage, children[:leftCount]); err != nil {
		return err
	}
	if err := t.rebuildInternal(newInternalPage, children[leftCount:]); err != nil {
		return err
	}

	t.log.Debug("internal split",
		zap.Uint32("left", parentPage),
		zap.Uint32("right", newInternalPage))

	if parentIsRoot {
		return t.createNewRoot(newInternalPage)
	}

	if grandparent == 0 {
		return errors.Errorf("page %d: non-root internal without parent", parentPage)
	}
	if err := t.updateChildKey(grandparent, parentPage); err != nil {
		return err
	}
	return t.internalInsertChild(grandparent, newInternalPage)
}

// createNewRoot grows the tree by one level while keeping the header's root
// page number stable: the current root's bytes move to a fresh page, and
// the root page is rebuilt as an internal node over that page and
// rightChildPage.
func (t *Table) createNewRoot(rightChildPage uint32) error {
	rootPage := t.header.rootPageNum
	root, err := t.page(rootPage)
	if err != nil {
		return err
	}

	leftPage, err := t.allocatePage()
	if err != nil {
		return err
	}
	left, err := t.page(leftPage)
	if err != nil {
		return err
	}

	copy(left[:], root[:])
	setNodeRoot(left, false)
	setNodeParent(left, rootPage)

	// The copied node's children still point at the root page; re-home them.
	if nodeType(left) == TypeInternal {
		for _, childPage := range collectChildren(left) {
			child, err := t.page(childPage)
			if err != nil {
				return err
			}
			setNodeParent(child, leftPage)
		}
	}

	initInternalNode(root)
	setNodeRoot(root, true)

	children := []uint32{leftPage, rightChildPage}
	if err := t.sortChildrenByMaxKey(children); err != nil {
		return err
	}
	if err := t.rebuildInternal(rootPage, children); err != nil {
		return err
	}

	t.log.Debug("root split",
		zap.Uint32("root", rootPage),
		zap.Uint32("left", leftPage),
		zap.Uint32("right", rightChildPage))
	return nil
}
