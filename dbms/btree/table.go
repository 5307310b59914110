package btree

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/minidb-storage/minidb/dbms/pager"
)

// Sentinel errors reported to the caller. Both are detected before any
// mutation, so the tree is unchanged when they are returned.
var (
	ErrDuplicateKey = errors.New("duplicate key")
	ErrKeyNotFound  = errors.New("key not found")
)

// dbHeader is the fixed page-0 header: three little-endian uint32 fields.
type dbHeader struct {
	numRows      uint32 // live row count, informational
	rootPageNum  uint32
	nextFreePage uint32 // monotonic allocator cursor
}

const dbHeaderSize = 12

// Table is a single-file database: a pager plus the B+ tree rooted at
// header.rootPageNum. All operations assume exclusive single-threaded
// access for the lifetime of the handle.
type Table struct {
	pager  *pager.Pager
	header dbHeader
	log    *zap.Logger
}

// Option configures a Table at open time.
type Option func(*Table)

// WithLogger attaches a logger for structural-change debug events (splits,
// merges, borrows, root growth and collapse).
func WithLogger(l *zap.Logger) Option {
	return func(t *Table) { t.log = l }
}

// Open opens the database file at path, creating and initializing it if it
// is empty. The header is validated before any tree access.
func Open(path string, opts ...Option) (*Table, error) {
	p, err := pager.Open(path)
	if err != nil {
		return nil, err
	}

	t := &Table{pager: p, log: zap.NewNop()}
	for _, o := range opts {
		o(t)
	}

	if p.PageCount() == 0 {
		if err := t.initNewDB(); err != nil {
			p.Close()
			return nil, err
		}
		return t, nil
	}

	page0, err := p.GetPage(0)
	if err != nil {
		p.Close()
		return nil, err
	}
	t.header.numRows = binary.LittleEndian.Uint32(page0[0:4])
	t.header.rootPageNum = binary.LittleEndian.Uint32(page0[4:8])
	t.header.nextFreePage = binary.LittleEndian.Uint32(page0[8:12])

	if t.header.rootPageNum == 0 || t.header.rootPageNum >= pager.MaxPages {
		p.Close()
		return nil, errors.Errorf("corrupt header: root page %d out of range", t.header.rootPageNum)
	}
	if t.header.nextFreePage == 0 || t.header.nextFreePage > pager.MaxPages {
		p.Close()
		return nil, errors.Errorf("corrupt header: next free page %d out of range", t.header.nextFreePage)
	}

	return t, nil
}

// initNewDB lays out a fresh file: page 0 header, page 1 an empty leaf root.
func (t *Table) initNewDB() error {
	t.header.numRows = 0
	t.header.rootPageNum = 1
	t.header.nextFreePage = 2

	root, err := t.pager.GetPage(t.header.rootPageNum)
	if err != nil {
		return err
	}
	initLeafNode(root)
	setNodeRoot(root, true)

	t.log.Debug("initialized new database",
		zap.Uint32("root", t.header.rootPageNum))
	return nil
}

// Close writes the header back to page 0, flushes every resident page and
// closes the file. Durability is only at Close.
func (t *Table) Close() error {
	page0, err := t.pager.GetPage(0)
	if err != nil {
		t.pager.Close()
		return err
	}
	binary.LittleEndian.PutUint32(page0[0:4], t.header.numRows)
	binary.LittleEndian.PutUint32(page0[4:8], t.header.rootPageNum)
	binary.LittleEndian.PutUint32(page0[8:12], t.header.nextFreePage)

	return t.pager.Close()
}

// NumRows reports the live row count from the header.
func (t *Table) NumRows() uint32 { return t.header.numRows }

// RootPage reports the current root page number.
func (t *Table) RootPage() uint32 { return t.header.rootPageNum }

func (t *Table) page(n uint32) (*pager.Page, error) {
	return t.pager.GetPage(n)
}

// allocatePage hands out the next page number. Pages are never reused
// within a session.
func (t *Table) allocatePage() (uint32, error) {
	if t.header.nextFreePage >= pager.MaxPages {
		return 0, errors.Errorf("out of pages (max %d)", pager.MaxPages)
	}
	n := t.header.nextFreePage
	t.header.nextFreePage++
	return n, nil
}

// maxKey returns the greatest key reachable from the subtree rooted at page:
// the last key of its rightmost leaf descendant. An empty leaf yields 0,
// which is only observable mid-rebalance.
func (t *Table) maxKey(page uint32) (int32, error) {
	node, err := t.page(page)
	if err != nil {
		return 0, err
	}
	if nodeType(node) == TypeLeaf {
		n := leafNumCells(node)
		if n == 0 {
			return 0, nil
		}
		return leafKey(node, n-1), nil
	}
	return t.maxKey(internalRightChild(node))
}

// rebuildInternal rewrites the internal node at page from children, which
// must already be sorted by max key. It preserves the node's is_root flag
// and parent pointer, re-parents every child, and regenerates all separator
// keys from the subtrees. This is the single choke point that keeps the
// parent/child coupling consistent.
func (t *Table) rebuildInternal(page uint32, children []uint32) error {
	if len(children) < 2 {
		return errors.Errorf("internal rebuild of page %d needs >=2 children, got %d", page, len(children))
	}
	if len(children) > InternalMaxChildren {
		return errors.Errorf("internal rebuild of page %d with %d children exceeds max %d", page, len(children), InternalMaxChildren)
	}

	node, err := t.page(page)
	if err != nil {
		return err
	}

	rootFlag := isNodeRoot(node)
	parent := nodeParent(node)

	initInternalNode(node)
	setNodeRoot(node, rootFlag)
	setNodeParent(node, parent)

	for _, c := range children {
		child, err := t.page(c)
		if err != nil {
			return err
		}
		setNodeParent(child, page)
		if isNodeRoot(child) {
			setNodeRoot(child, false)
		}
	}

	numKeys := len(children) - 1
	setInternalNumKeys(node, numKeys)
	for i := 0; i < numKeys; i++ {
		mk, err := t.maxKey(children[i])
		if err != nil {
			return err
		}
		setInternalChild(node, i, children[i])
		setInternalKey(node, i, mk)
	}
	setInternalRightChild(node, children[numKeys])
	return nil
}

// sortChildrenByMaxKey orders a child list by each subtree's max key.
func (t *Table) sortChildrenByMaxKey(children []uint32) error {
	keys := make(map[uint32]int32, len(children))
	for _, c := range children {
		mk, err := t.maxKey(c)
		if err != nil {
			return err
		}
		keys[c] = mk
	}
	sort.Slice(children, func(i, j int) bool {
		return keys[children[i]] < keys[children[j]]
	})
	return nil
}

// collectChildren returns an internal node's children in stored order:
// the cells' child pointers followed by rightChild.
func collectChildren(node *pager.Page) []uint32 {
	n := internalNumKeys(node)
	children := make([]uint32, 0, n+2)
	for i := 0; i < n; i++ {
		children = append(children, internalChild(node, i))
	}
	return append(children, internalRightChild(node))
}

// childIndex locates child within parent, returning its position in
// [0..numKeys] where numKeys denotes rightChild.
func childIndex(parent *pager.Page, child uint32) (int, error) {
	n := internalNumKeys(parent)
	for i := 0; i < n; i++ {
		if internalChild(parent, i) == child {
			return i, nil
		}
	}
	if internalRightChild(parent) == child {
		return n, nil
	}
	return 0, errors.Errorf("page %d not found among parent's children", child)
}

// updateChildKey refreshes the parent's stored max key for child. If child
// is the parent's rightChild there is no stored key and this is a no-op.
func (t *Table) updateChildKey(parentPage, childPage uint32) error {
	parent, err := t.page(parentPage)
	if err != nil {
		return err
	}
	n := internalNumKeys(parent)
	for i := 0; i < n; i++ {
		if internalChild(parent, i) == childPage {
			mk, err := t.maxKey(childPage)
			if err != nil {
				return err
			}
			setInternalKey(parent, i, mk)
			return nil
		}
	}
	return nil
}

// refreshMaxKey repairs the stored max keys for page after its max key
// decreased, walking up as long as the node sits on its parent's right edge.
func (t *Table) refreshMaxKey(page uint32) error {
	for {
		node, err := t.page(page)
		if err != nil {
			return err
		}
		if isNodeRoot(node) {
			return nil
		}
		parentPage := nodeParent(node)
		if err := t.updateChildKey(parentPage, page); err != nil {
			return err
		}
		parent, err := t.page(parentPage)
		if err != nil {
			return err
		}
		idx, err := childIndex(parent, page)
		if err != nil {
			return err
		}
		if idx != internalNumKeys(parent) {
			return nil
		}
		page = parentPage
	}
}
