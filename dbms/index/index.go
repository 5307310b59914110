package index

import "github.com/minidb-storage/minidb/dbms/btree"

// Index is the common interface the benchmark harness drives. Every backend
// stores the same fixed-width rows keyed by their ID.
type Index interface {
	Insert(row btree.Row) error
	Get(key int32) (btree.Row, bool, error)
	Delete(key int32) error
	Range(start, end int32) (Iterator, error)
	Close() error
}

// Iterator scans rows over a key range in ascending order.
type Iterator interface {
	Next() bool
	Key() int32
	Row() btree.Row
	Error() error
	Close() error
}
