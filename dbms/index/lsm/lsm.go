// Package lsm wraps Pebble (CockroachDB's LSM storage engine) behind the
// common Index interface so it can be benchmarked alongside the paged B+
// tree engine.
package lsm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cockroachdb/pebble"

	"github.com/minidb-storage/minidb/dbms/btree"
	"github.com/minidb-storage/minidb/dbms/index"
)

var _ index.Index = (*LSM)(nil)

type LSM struct {
	db *pebble.DB
}

// Open opens (or creates) a Pebble database at the given directory path.
func Open(dir string) (*LSM, error) {
	opts := &pebble.Options{
		MemTableSize: 16 << 20,
		// Keep spare memtables so one can be flushed while another is active.
		MemTableStopWritesThreshold: 4,
		L0CompactionThreshold:       4,
		L0StopWritesThreshold:       12,
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("lsm: open: %w", err)
	}
	return &LSM{db: db}, nil
}

// Close cleanly shuts down Pebble, flushing any in-memory state.
func (l *LSM) Close() error {
	return l.db.Close()
}

// Insert stores the row under its ID. Unlike the paged engine, Pebble
// upserts on key collision.
func (l *LSM) Insert(row btree.Row) error {
	val, err := row.MarshalBinary()
	if err != nil {
		return err
	}
	return l.db.Set(encodeKey(row.ID), val, pebble.NoSync)
}

// Get retrieves the row for key.
func (l *LSM) Get(key int32) (btree.Row, bool, error) {
	val, closer, err := l.db.Get(encodeKey(key))
	if err == pebble.ErrNotFound {
		return btree.Row{}, false, nil
	}
	if err != nil {
		return btree.Row{}, false, fmt.Errorf("lsm: get: %w", err)
	}
	defer closer.Close()

	var row btree.Row
	if err := row.UnmarshalBinary(val); err != nil {
		return btree.Row{}, false, err
	}
	return row, true, nil
}

// Delete removes the key from the store.
func (l *LSM) Delete(key int32) error {
	if err := l.db.Delete(encodeKey(key), pebble.NoSync); err != nil {
		return fmt.Errorf("lsm: delete: %w", err)
	}
	return nil
}

// Range returns an iterator over all rows with keys in [start, end].
func (l *LSM) Range(start, end int32) (index.Iterator, error) {
	iterOpts := &pebble.IterOptions{
		LowerBound: encodeKey(start),
		UpperBound: encodeKeyExclusive(end),
	}
	iter, err := l.db.NewIter(iterOpts)
	if err != nil {
		return nil, fmt.Errorf("lsm: range: %w", err)
	}
	iter.First()
	return &rangeIterator{iter: iter, first: true}, nil
}

// ─── Key encoding ─────────────────────────────────────────────────────────────

// encodeKey encodes an int32 as big-endian with the sign bit flipped, which
// preserves signed key order under Pebble's bytewise comparison.
func encodeKey(k int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(k)^0x80000000)
	return b
}

// encodeKeyExclusive returns the exclusive upper bound for Pebble's
// UpperBound option (our interface is inclusive).
func encodeKeyExclusive(k int32) []byte {
	if k == math.MaxInt32 {
		// Sentinel that sorts above every 4-byte encoded key.
		return []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x00}
	}
	return encodeKey(k + 1)
}

func decodeKey(b []byte) int32 {
	return int32(binary.BigEndian.Uint32(b) ^ 0x80000000)
}

// ─── Range Iterator ───────────────────────────────────────────────────────────

type rangeIterator struct {
	iter  *pebble.Iterator
	first bool
	key   int32
	row   btree.Row
	err   error
}

func (it *rangeIterator) Next() bool {
	var valid bool
	if it.first {
		// iter.First() was already called in Range(); just check validity.
		it.first = false
		valid = it.iter.Valid()
	} else {
		valid = it.iter.Next()
	}
	if !valid {
		return false
	}
	k := it.iter.Key()
	if len(k) != 4 {
		it.err = fmt.Errorf("lsm: unexpected key length %d", len(k))
		return false
	}
	it.key = decodeKey(k)
	if err := it.row.UnmarshalBinary(it.iter.Value()); err != nil {
		it.err = err
		return false
	}
	return true
}

func (it *rangeIterator) Key() int32     { return it.key }
func (it *rangeIterator) Row() btree.Row { return it.row }
func (it *rangeIterator) Error() error   { return it.err }
func (it *rangeIterator) Close() error   { return it.iter.Close() }
