package btree

import (
	"github.com/pkg/errors"

	"github.com/minidb-storage/minidb/dbms/pager"
)

// Check walks the whole tree and verifies the structural invariants that
// must hold between operations:
//
//  1. keys within every node are strictly ascending
//  2. every internal cell's key equals the max key of its subtree
//  3. every leaf sits at the same depth
//  4. every non-root node's fill is within its [MIN, MAX] band
//  5. every child's parent pointer names the node that lists it
//  6. the nextLeaf chain yields every key in ascending order
//  7. the header row count matches the total number of leaf cells
//
// It is run by the tests after mutations and can be invoked from the
// REPL with .check.
func (t *Table) Check() error {
	w := &treeWalk{table: t, leafDepth: -1}
	if err := w.checkNode(t.header.rootPageNum, 0, true, 0); err != nil {
		return err
	}

	if err := w.checkLeafChain(); err != nil {
		return err
	}

	if w.totalCells != int(t.header.numRows) {
		return errors.Errorf("header says %d rows but leaves hold %d cells", t.header.numRows, w.totalCells)
	}
	return nil
}

type treeWalk struct {
	table      *Table
	leafDepth  int
	totalCells int
	treeKeys   []int32 // in-order traversal
	firstLeaf  uint32
}

func (w *treeWalk) checkNode(page uint32, depth int, expectRoot bool, expectParent uint32) error {
	node, err := w.table.page(page)
	if err != nil {
		return err
	}

	if isNodeRoot(node) != expectRoot {
		return errors.Errorf("page %d: is_root flag is %v, want %v", page, isNodeRoot(node), expectRoot)
	}
	if !expectRoot && nodeParent(node) != expectParent {
		return errors.Errorf("page %d: parent is %d, want %d", page, nodeParent(node), expectParent)
	}

	switch nodeType(node) {
	case TypeLeaf:
		return w.checkLeaf(page, node, depth, expectRoot)
	case TypeInternal:
		return w.checkInternal(page, node, depth, expectRoot)
	default:
		return errors.Errorf("page %d: unknown node type %d", page, nodeType(node))
	}
}

func (w *treeWalk) checkLeaf(page uint32, node *pager.Page, depth int, isRoot bool) error {
	n := leafNumCells(node)

	if !isRoot && (n < LeafMinCells || n > LeafMaxCells) {
		return errors.Errorf("leaf %d: %d cells outside [%d, %d]", page, n, LeafMinCells, LeafMaxCells)
	}
	if isRoot && n > LeafMaxCells {
		return errors.Errorf("root leaf %d: %d cells exceeds max %d", page, n, LeafMaxCells)
	}

	if w.leafDepth == -1 {
		w.leafDepth = depth
		w.firstLeaf = page
	} else if depth != w.leafDepth {
		return errors.Errorf("leaf %d at depth %d, expected %d", page, depth, w.leafDepth)
	}

	for i := 0; i < n; i++ {
		k := leafKey(node, i)
		if i > 0 && k <= leafKey(node, i-1) {
			return errors.Errorf("leaf %d: keys not strictly ascending at cell %d", page, i)
		}
		w.treeKeys = append(w.treeKeys, k)
	}
	w.totalCells += n
	return nil
}

func (w *treeWalk) checkInternal(page uint32, node *pager.Page, depth int, isRoot bool) error {
	n := internalNumKeys(node)

	if !isRoot && (n < InternalMinKeys || n > InternalMaxKeys) {
		return errors.Errorf("internal %d: %d keys outside [%d, %d]", page, n, InternalMinKeys, InternalMaxKeys)
	}
	if isRoot && n < 1 {
		return errors.Errorf("root internal %d: no keys", page)
	}

	for i := 0; i < n; i++ {
		if i > 0 && internalKey(node, i) <= internalKey(node, i-1) {
			return errors.Errorf("internal %d: keys not strictly ascending at cell %d", page, i)
		}

		child := internalChild(node, i)
		mk, err := w.table.maxKey(child)
		if err != nil {
			return err
		}
		if mk != internalKey(node, i) {
			return errors.Errorf("internal %d cell %d: stored key %d but subtree max is %d", page, i, internalKey(node, i), mk)
		}
		if err := w.checkNode(child, depth+1, false, page); err != nil {
			return err
		}
	}

	return w.checkNode(internalRightChild(node), depth+1, false, page)
}

// checkLeafChain walks nextLeaf from the leftmost leaf and compares the
// keys it yields against the in-order traversal.
func (w *treeWalk) checkLeafChain() error {
	var chainKeys []int32
	page := w.firstLeaf
	for page != 0 {
		leaf, err := w.table.page(page)
		if err != nil {
			return err
		}
		if nodeType(leaf) != TypeLeaf {
			return errors.Errorf("leaf chain reached non-leaf page %d", page)
		}
		n := leafNumCells(leaf)
		for i := 0; i < n; i++ {
			chainKeys = append(chainKeys, leafKey(leaf, i))
		}
		page = leafNextLeaf(leaf)
	}

	if len(chainKeys) != len(w.treeKeys) {
		return errors.Errorf("leaf chain yields %d keys, tree holds %d", len(chainKeys), len(w.treeKeys))
	}
	for i := range chainKeys {
		if chainKeys[i] != w.treeKeys[i] {
			return errors.Errorf("leaf chain diverges from tree order at position %d", i)
		}
		if i > 0 && chainKeys[i] <= chainKeys[i-1] {
			return errors.Errorf("leaf chain not strictly ascending at position %d", i)
		}
	}
	return nil
}
