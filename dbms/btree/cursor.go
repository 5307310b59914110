package btree

import (
	"github.com/pkg/errors"

	"github.com/minidb-storage/minidb/dbms/pager"
)

// Cursor is a position in the leaf chain: (page number, cell index) plus an
// end-of-table flag. Cursors are single-use; any insert or delete may move
// cells between pages, after which the cursor must be refetched.
type Cursor struct {
	table      *Table
	pageNum    uint32
	cellNum    int
	EndOfTable bool
}

// internalFindChild binary-searches the stored max keys for the smallest
// index whose key >= target; an answer of numKeys means rightChild.
func internalFindChild(node *pager.Page, key int32) int {
	lo, hi := 0, internalNumKeys(node)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if internalKey(node, mid) >= key {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// leafFind binary-searches the leaf's cells for key and returns a cursor at
// the match, or at the insertion position with EndOfTable set when that
// position is past the last cell.
func (t *Table) leafFind(leafPage uint32, key int32) (*Cursor, error) {
	leaf, err := t.page(leafPage)
	if err != nil {
		return nil, err
	}
	n := leafNumCells(leaf)

	lo, hi := 0, n
	for lo < hi {
		mid := lo + (hi-lo)/2
		mk := leafKey(leaf, mid)
		switch {
		case mk == key:
			return &Cursor{table: t, pageNum: leafPage, cellNum: mid}, nil
		case mk < key:
			lo = mid + 1
		default:
			hi = mid
		}
	}

	return &Cursor{table: t, pageNum: leafPage, cellNum: lo, EndOfTable: lo >= n}, nil
}

// Find descends from the root to the leaf that holds (or would hold) key
// and returns a cursor positioned within it.
func (t *Table) Find(key int32) (*Cursor, error) {
	page := t.header.rootPageNum
	for {
		node, err := t.page(page)
		if err != nil {
			return nil, err
		}
		if nodeType(node) == TypeLeaf {
			return t.leafFind(page, key)
		}
		page = internalChildAt(node, internalFindChild(node, key))
	}
}

// Start returns a cursor at the first cell of the leftmost leaf, with
// EndOfTable set when the table is empty.
func (t *Table) Start() (*Cursor, error) {
	page := t.header.rootPageNum
	for {
		node, err := t.page(page)
		if err != nil {
			return nil, err
		}
		if nodeType(node) == TypeLeaf {
			return &Cursor{
				table:      t,
				pageNum:    page,
				cellNum:    0,
				EndOfTable: leafNumCells(node) == 0,
			}, nil
		}
		if internalNumKeys(node) == 0 {
			return nil, errors.Errorf("corrupt internal node at page %d: no keys", page)
		}
		page = internalChild(node, 0)
	}
}

// Advance moves the cursor one cell forward, following the leaf chain and
// setting EndOfTable when the chain is exhausted.
func (c *Cursor) Advance() error {
	leaf, err := c.table.page(c.pageNum)
	if err != nil {
		return err
	}

	c.cellNum++
	if c.cellNum < leafNumCells(leaf) {
		return nil
	}

	next := leafNextLeaf(leaf)
	if next == 0 {
		c.EndOfTable = true
		return nil
	}

	c.pageNum = next
	c.cellNum = 0

	nextLeaf, err := c.table.page(next)
	if err != nil {
		return err
	}
	c.EndOfTable = leafNumCells(nextLeaf) == 0
	return nil
}

// Key returns the key of the current cell.
func (c *Cursor) Key() (int32, error) {
	leaf, err := c.table.page(c.pageNum)
	if err != nil {
		return 0, err
	}
	return leafKey(leaf, c.cellNum), nil
}

// Value returns the row payload of the current cell as a view into the page
// buffer. The view is valid only until the next tree mutation.
func (c *Cursor) Value() ([]byte, error) {
	leaf, err := c.table.page(c.pageNum)
	if err != nil {
		return nil, err
	}
	return leafValue(leaf, c.cellNum), nil
}

// Row deserializes the row at the cursor.
func (c *Cursor) Row() (Row, error) {
	v, err := c.Value()
	if err != nil {
		return Row{}, err
	}
	return deserializeRow(v), nil
}
