// Package paged adapts the disk-backed B+ tree engine to the common Index
// interface so it can be benchmarked alongside Pebble and the in-memory
// baseline.
package paged

import (
	"github.com/minidb-storage/minidb/dbms/btree"
	"github.com/minidb-storage/minidb/dbms/index"
)

var _ index.Index = (*Store)(nil)

type Store struct {
	tbl *btree.Table
}

// Open opens (or creates) a database file at path.
func Open(path string, opts ...btree.Option) (*Store, error) {
	tbl, err := btree.Open(path, opts...)
	if err != nil {
		return nil, err
	}
	return &Store{tbl: tbl}, nil
}

// Table exposes the underlying engine handle.
func (s *Store) Table() *btree.Table { return s.tbl }

func (s *Store) Insert(row btree.Row) error {
	return s.tbl.Insert(row)
}

func (s *Store) Get(key int32) (btree.Row, bool, error) {
	c, err := s.tbl.Find(key)
	if err != nil {
		return btree.Row{}, false, err
	}
	if c.EndOfTable {
		return btree.Row{}, false, nil
	}
	k, err := c.Key()
	if err != nil {
		return btree.Row{}, false, err
	}
	if k != key {
		return btree.Row{}, false, nil
	}
	row, err := c.Row()
	if err != nil {
		return btree.Row{}, false, err
	}
	return row, true, nil
}

func (s *Store) Delete(key int32) error {
	return s.tbl.Delete(key)
}

// Range returns an iterator over all rows with keys in [start, end],
// walking the leaf chain forward from the first key >= start.
func (s *Store) Range(start, end int32) (index.Iterator, error) {
	c, err := s.tbl.Find(start)
	if err != nil {
		return nil, err
	}
	// Find may land past the last cell of a leaf whose successors still
	// hold keys; step onto the next leaf before iterating.
	if c.EndOfTable {
		if err := c.Advance(); err != nil {
			return nil, err
		}
	}
	return &rangeIterator{cursor: c, end: end}, nil
}

func (s *Store) Close() error {
	return s.tbl.Close()
}

// ─── Range Iterator ───────────────────────────────────────────────────────────

type rangeIterator struct {
	cursor *btree.Cursor
	end    int32
	key    int32
	row    btree.Row
	err    error
	moved  bool
}

func (it *rangeIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.moved {
		if err := it.cursor.Advance(); err != nil {
			it.err = err
			return false
		}
	}
	it.moved = true

	if it.cursor.EndOfTable {
		return false
	}
	k, err := it.cursor.Key()
	if err != nil {
		it.err = err
		return false
	}
	if k > it.end {
		return false
	}
	row, err := it.cursor.Row()
	if err != nil {
		it.err = err
		return false
	}
	it.key, it.row = k, row
	return true
}

func (it *rangeIterator) Key() int32      { return it.key }
func (it *rangeIterator) Row() btree.Row  { return it.row }
func (it *rangeIterator) Error() error    { return it.err }
func (it *rangeIterator) Close() error    { return nil }
