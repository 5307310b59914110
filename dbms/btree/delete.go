package btree

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Delete removes the row keyed by key. A missing key fails with
// ErrKeyNotFound before any mutation. Leaves that fall below the minimum
// fill are repaired by borrowing from or merging with a sibling, and the
// repair propagates upward, collapsing the root when an internal root loses
// its last key.
func (t *Table) Delete(key int32) error {
	c, err := t.Find(key)
	if err != nil {
		return err
	}

	leaf, err := t.page(c.pageNum)
	if err != nil {
		return err
	}
	n := leafNumCells(leaf)

	if c.cellNum >= n || leafKey(leaf, c.cellNum) != key {
		return ErrKeyNotFound
	}

	wasLast := c.cellNum == n-1

	for i := c.cellNum + 1; i < n; i++ {
		copy(leafCell(leaf, i-1), leafCell(leaf, i))
	}
	setLeafNumCells(leaf, n-1)
	t.header.numRows--

	if isNodeRoot(leaf) {
		// The root leaf may hold any count, including zero.
		return nil
	}

	// Deleting the last cell lowered this leaf's max key; the stored keys
	// along the right edge above it are stale until repaired.
	if wasLast {
		if err := t.refreshMaxKey(c.pageNum); err != nil {
			return err
		}
	}

	if leafNumCells(leaf) < LeafMinCells {
		return t.rebalanceLeaf(c.pageNum)
	}
	return nil
}

// siblings locates the pages adjacent to child under its parent. A sibling
// exists only when the parent holds another child on that side.
func (t *Table) siblings(parentPage, childPage uint32) (left, right uint32, hasLeft, hasRight bool, err error) {
	parent, err := t.page(parentPage)
	if err != nil {
		return 0, 0, false, false, err
	}
	idx, err := childIndex(parent, childPage)
	if err != nil {
		return 0, 0, false, false, err
	}
	if idx > 0 {
		left = internalChildAt(parent, idx-1)
		hasLeft = true
	}
	if idx < internalNumKeys(parent) {
		right = internalChildAt(parent, idx+1)
		hasRight = true
	}
	return left, right, hasLeft, hasRight, nil
}

// rebalanceLeaf restores the minimum fill of the leaf at page, preferring
// to borrow a cell over merging.
func (t *Table) rebalanceLeaf(page uint32) error {
	leaf, err := t.page(page)
	if err != nil {
		return err
	}
	parentPage := nodeParent(leaf)

	leftPage, rightPage, hasLeft, hasRight, err := t.siblings(parentPage, page)
	if err != nil {
		return err
	}

	// Borrow from the left sibling: its last cell becomes our first.
	if hasLeft {
		leftLeaf, err := t.page(leftPage)
		if err != nil {
			return err
		}
		ln := leafNumCells(leftLeaf)
		if ln > LeafMinCells {
			n := leafNumCells(leaf)
			for i := n; i > 0; i-- {
				copy(leafCell(leaf, i), leafCell(leaf, i-1))
			}
			copy(leafCell(leaf, 0), leafCell(leftLeaf, ln-1))
			setLeafNumCells(leaf, n+1)
			setLeafNumCells(leftLeaf, ln-1)

			// The left sibling's max key decreased.
			if err := t.updateChildKey(parentPage, leftPage); err != nil {
				return err
			}
			t.log.Debug("leaf borrow from left",
				zap.Uint32("leaf", page), zap.Uint32("sibling", leftPage))
			return nil
		}
	}

	// Borrow from the right sibling: its first cell becomes our last.
	if hasRight {
		rightLeaf, err := t.page(rightPage)
		if err != nil {
			return err
		}
		rn := leafNumCells(rightLeaf)
		if rn > LeafMinCells {
			n := leafNumCells(leaf)
			copy(leafCell(leaf, n), leafCell(rightLeaf, 0))
			setLeafNumCells(leaf, n+1)
			for i := 1; i < rn; i++ {
				copy(leafCell(rightLeaf, i-1), leafCell(rightLeaf, i))
			}
			setLeafNumCells(rightLeaf, rn-1)

			// Our max key grew.
			if err := t.updateChildKey(parentPage, page); err != nil {
				return err
			}
			t.log.Debug("leaf borrow from right",
				zap.Uint32("leaf", page), zap.Uint32("sibling", rightPage))
			return nil
		}
	}

	// Merge, preferring the left sibling: the surviving leaf absorbs every
	// cell and takes over the chain link of the removed one.
	if hasLeft {
		leftLeaf, err := t.page(leftPage)
		if err != nil {
			return err
		}
		ln := leafNumCells(leftLeaf)
		n := leafNumCells(leaf)
		for i := 0; i < n; i++ {
			copy(leafCell(leftLeaf, ln+i), leafCell(leaf, i))
		}
		setLeafNumCells(leftLeaf, ln+n)
		setLeafNextLeaf(leftLeaf, leafNextLeaf(leaf))

		t.log.Debug("leaf merge into left",
			zap.Uint32("removed", page), zap.Uint32("into", leftPage))

		if err := t.removeChildFromInternal(parentPage, page); err != nil {
			return err
		}
		return t.maybeShrinkRoot()
	}

	if hasRight {
		rightLeaf, err := t.page(rightPage)
		if err != nil {
			return err
		}
		rn := leafNumCells(rightLeaf)
		n := leafNumCells(leaf)
		for i := 0; i < rn; i++ {
			copy(leafCell(leaf, n+i), leafCell(rightLeaf, i))
		}
		setLeafNumCells(leaf, n+rn)
		setLeafNextLeaf(leaf, leafNextLeaf(rightLeaf))

		t.log.Debug("leaf merge with right",
			zap.Uint32("removed", rightPage), zap.Uint32("into", page))

		if err := t.removeChildFromInternal(parentPage, rightPage); err != nil {
			return err
		}
		return t.maybeShrinkRoot()
	}

	return errors.Errorf("leaf %d under parent %d has no sibling to rebalance with", page, parentPage)
}

// removeChildFromInternal drops childPage from the internal node at
// parentPage. A node left with a single child keeps it in rightChild with
// zero keys; that state is legal only transiently and, for the root, is
// cleaned up by maybeShrinkRoot. A parent that falls below its minimum key
// count is rebalanced in turn.
func (t *Table) removeChildFromInternal(parentPage, childPage uint32) error {
	parent, err := t.page(parentPage)
	if err != nil {
		return err
	}

	all := collectChildren(parent)
	remaining := make([]uint32, 0, len(all))
	for _, c := range all {
		if c != childPage {
			remaining = append(remaining, c)
		}
	}
	if len(remaining) == len(all) {
		return errors.Errorf("page %d not a child of internal node %d", childPage, parentPage)
	}

	switch {
	case len(remaining) >= 2:
		if err := t.rebuildInternal(parentPage, remaining); err != nil {
			return err
		}
	case len(remaining) == 1:
		setInternalNumKeys(parent, 0)
		setInternalRightChild(parent, remaining[0])
	default:
		return errors.Errorf("internal node %d left with no children", parentPage)
	}

	min := InternalMinKeys
	if isNodeRoot(parent) {
		min = 0
	}
	if internalNumKeys(parent) < min {
		return t.rebalanceInternal(parentPage)
	}
	return nil
}

// rebalanceInternal restores the minimum key count of the internal node at
// page. Borrowing and merging shuffle whole child lists and rebuild the
// affected nodes, which regenerates separator keys from the subtrees.
func (t *Table) rebalanceInternal(page uint32) error {
	node, err := t.page(page)
	if err != nil {
		return err
	}
	if isNodeRoot(node) {
		// Root underflow is handled by maybeShrinkRoot.
		return nil
	}
	parentPage := nodeParent(node)

	leftPage, rightPage, hasLeft, hasRight, err := t.siblings(parentPage, page)
	if err != nil {
		return err
	}

	if hasLeft {
		leftNode, err := t.page(leftPage)
		if err != nil {
			return err
		}
		if internalNumKeys(leftNode) > InternalMinKeys {
			lch := collectChildren(leftNode)
			nch := collectChildren(node)
			moved := lch[len(lch)-1]
			lch = lch[:len(lch)-1]
			nch = append([]uint32{moved}, nch...)

			if err := t.rebuildInternal(leftPage, lch); err != nil {
				return err
			}
			if err := t.rebuildInternal(page, nch); err != nil {
				return err
			}
			if err := t.updateChildKey(parentPage, leftPage); err != nil {
				return err
			}
			if err := t.updateChildKey(parentPage, page); err != nil {
				return err
			}
			t.log.Debug("internal borrow from left",
				zap.Uint32("node", page), zap.Uint32("sibling", leftPage))
			return nil
		}
	}

	if hasRight {
		rightNode, err := t.page(rightPage)
		if err != nil {
			return err
		}
		if internalNumKeys(rightNode) > InternalMinKeys {
			rch := collectChildren(rightNode)
			nch := collectChildren(node)
			moved := rch[0]
			rch = rch[1:]
			nch = append(nch, moved)

			if err := t.rebuildInternal(page, nch); err != nil {
				return err
			}
			if err := t.rebuildInternal(rightPage, rch); err != nil {
				return err
			}
			if err := t.updateChildKey(parentPage, page); err != nil {
				return err
			}
			if err := t.updateChildKey(parentPage, rightPage); err != nil {
				return err
			}
			t.log.Debug("internal borrow from right",
				zap.Uint32("node", page), zap.Uint32("sibling", rightPage))
			return nil
		}
	}

	if hasLeft {
		leftNode, err := t.page(leftPage)
		if err != nil {
			return err
		}
		combined := append(collectChildren(leftNode), collectChildren(node)...)
		if err := t.rebuildInternal(leftPage, combined); err != nil {
			return err
		}
		t.log.Debug("internal merge into left",
			zap.Uint32("removed", page), zap.Uint32("into", leftPage))
		if err := t.removeChildFromInternal(parentPage, page); err != nil {
			return err
		}
		return t.maybeShrinkRoot()
	}

	if hasRight {
		rightNode, err := t.page(rightPage)
		if err != nil {
			return err
		}
		combined := append(collectChildren(node), collectChildren(rightNode)...)
		if err := t.rebuildInternal(page, combined); err != nil {
			return err
		}
		t.log.Debug("internal merge with right",
			zap.Uint32("removed", rightPage), zap.Uint32("into", page))
		if err := t.removeChildFromInternal(parentPage, rightPage); err != nil {
			return err
		}
		return t.maybeShrinkRoot()
	}

	return errors.Errorf("internal node %d under parent %d has no sibling to rebalance with", page, parentPage)
}

// maybeShrinkRoot collapses the tree by one level when the root is an
// internal node whose last key is gone: the sole remaining child becomes
// the root. This is the only operation that changes the header's root page
// number.
func (t *Table) maybeShrinkRoot() error {
	root, err := t.page(t.header.rootPageNum)
	if err != nil {
		return err
	}
	if nodeType(root) != TypeInternal || internalNumKeys(root) != 0 {
		return nil
	}

	childPage := internalRightChild(root)
	child, err := t.page(childPage)
	if err != nil {
		return err
	}
	setNodeRoot(child, true)
	setNodeParent(child, 0)

	t.log.Debug("root collapse",
		zap.Uint32("old", t.header.rootPageNum),
		zap.Uint32("new", childPage))

	t.header.rootPageNum = childPage
	return nil
}
