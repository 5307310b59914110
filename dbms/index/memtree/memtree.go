// Package memtree implements an in-memory B+ tree over rows, used as the
// zero-I/O baseline in the benchmark suite.
package memtree

import (
	"slices"

	"github.com/minidb-storage/minidb/dbms/btree"
	"github.com/minidb-storage/minidb/dbms/index"
	"github.com/minidb-storage/minidb/persist"
)

var _ index.Index = (*Tree)(nil)

type node struct {
	isLeaf   bool
	keys     []int32
	rows     []btree.Row // leaf nodes only
	children []*node     // internal nodes only
	next     *node       // next leaf, for range scans
}

type Tree struct {
	t    int // minimum degree; max keys = 2t-1
	root *node
}

func New(t int) *Tree {
	if t < 2 {
		t = 2
	}
	return &Tree{
		t:    t,
		root: &node{isLeaf: true},
	}
}

// ─── Get (point query) ────────────────────────────────────────────────────────

func (bt *Tree) Get(key int32) (btree.Row, bool, error) {
	n := bt.findLeaf(bt.root, key)
	idx, found := slices.BinarySearch(n.keys, key)
	if !found {
		return btree.Row{}, false, nil
	}
	return n.rows[idx], true, nil
}

func (bt *Tree) findLeaf(curr *node, key int32) *node {
	for !curr.isLeaf {
		i := 0
		for i < len(curr.keys) && key >= curr.keys[i] {
			i++
		}
		curr = curr.children[i]
	}
	return curr
}

// ─── Insert ───────────────────────────────────────────────────────────────────

func (bt *Tree) Insert(row btree.Row) error {
	root := bt.root
	// A full root grows the tree in height.
	if len(root.keys) == 2*bt.t-1 {
		newRoot := &node{children: []*node{root}}
		bt.splitChild(newRoot, 0)
		bt.root = newRoot
	}
	bt.insertNonFull(bt.root, row)
	return nil
}

func (bt *Tree) insertNonFull(x *node, row btree.Row) {
	k := row.ID
	if x.isLeaf {
		idx, found := slices.BinarySearch(x.keys, k)
		if found {
			x.rows[idx] = row // update existing
			return
		}
		x.keys = slices.Insert(x.keys, idx, k)
		x.rows = slices.Insert(x.rows, idx, row)
	} else {
		i := 0
		for i < len(x.keys) && k >= x.keys[i] {
			i++
		}
		if len(x.children[i].keys) == 2*bt.t-1 {
			bt.splitChild(x, i)
			if k >= x.keys[i] {
				i++
			}
		}
		bt.insertNonFull(x.children[i], row)
	}
}

func (bt *Tree) splitChild(x *node, i int) {
	t := bt.t
	y := x.children[i]
	z := &node{isLeaf: y.isLeaf}

	if y.isLeaf {
		// Leaf split: the first key of the new leaf is copied up.
		z.keys = append([]int32{}, y.keys[t-1:]...)
		z.rows = append([]btree.Row{}, y.rows[t-1:]...)
		z.next = y.next
		y.next = z

		y.keys = y.keys[:t-1]
		y.rows = y.rows[:t-1]

		x.keys = slices.Insert(x.keys, i, z.keys[0])
	} else {
		// Internal split: the middle key moves up and leaves the child.
		z.keys = append([]int32{}, y.keys[t:]...)
		z.children = append([]*node{}, y.children[t:]...)

		midKey := y.keys[t-1]
		y.keys = y.keys[:t-1]
		y.children = y.children[:t]

		x.keys = slices.Insert(x.keys, i, midKey)
	}
	x.children = slices.Insert(x.children, i+1, z)
}

// ─── Delete ───────────────────────────────────────────────────────────────────

// Delete removes a key from its leaf without rebalancing; the baseline only
// has to stay correct, not height-optimal, under benchmark churn.
func (bt *Tree) Delete(key int32) error {
	n := bt.findLeaf(bt.root, key)
	idx, found := slices.BinarySearch(n.keys, key)
	if !found {
		return btree.ErrKeyNotFound
	}
	n.keys = slices.Delete(n.keys, idx, idx+1)
	n.rows = slices.Delete(n.rows, idx, idx+1)
	return nil
}

// ─── Range (the iterator) ─────────────────────────────────────────────────────

func (bt *Tree) Range(start, end int32) (index.Iterator, error) {
	return &rangeIterator{
		curr:  bt.findLeaf(bt.root, start),
		start: start,
		end:   end,
	}, nil
}

type rangeIterator struct {
	curr       *node
	i          int
	start, end int32
	key        int32
	row        btree.Row
}

func (it *rangeIterator) Next() bool {
	for it.curr != nil {
		for it.i < len(it.curr.keys) {
			k := it.curr.keys[it.i]
			if k > it.end {
				return false
			}
			if k >= it.start {
				it.key = k
				it.row = it.curr.rows[it.i]
				it.i++
				return true
			}
			it.i++
		}
		// Follow the leaf chain.
		it.curr = it.curr.next
		it.i = 0
	}
	return false
}

func (it *rangeIterator) Key() int32     { return it.key }
func (it *rangeIterator) Row() btree.Row { return it.row }
func (it *rangeIterator) Error() error   { return nil }
func (it *rangeIterator) Close() error   { return nil }

// ─── Persistence ──────────────────────────────────────────────────────────────

// snapshot is the gob-friendly flat form: rebuilding by insertion on load
// avoids encoding shared node pointers.
type snapshot struct {
	Degree int
	Rows   []btree.Row
}

func (bt *Tree) SaveTo(path string) error {
	snap := snapshot{Degree: bt.t}
	it, _ := bt.Range(minInt32, maxInt32)
	for it.Next() {
		snap.Rows = append(snap.Rows, it.Row())
	}
	return persist.Save(path, snap)
}

func (bt *Tree) LoadFrom(path string) error {
	var snap snapshot
	if err := persist.Load(path, &snap); err != nil {
		return err
	}
	*bt = *New(snap.Degree)
	for _, row := range snap.Rows {
		if err := bt.Insert(row); err != nil {
			return err
		}
	}
	return nil
}

const (
	minInt32 = int32(-1 << 31)
	maxInt32 = int32(1<<31 - 1)
)

func (bt *Tree) Close() error { return nil }
