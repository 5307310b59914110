package main

import (
	"fmt"
	"math/rand"

	"github.com/minidb-storage/minidb/dbms/btree"
	"github.com/minidb-storage/minidb/dbms/index"
)

type WorkloadType string

const (
	OLTP      WorkloadType = "OLTP (90/10)"
	OLAP      WorkloadType = "OLAP (10/90)"
	Reporting WorkloadType = "Reporting (Range)"
)

func makeRow(k int32) btree.Row {
	return btree.Row{
		ID:       k,
		Username: fmt.Sprintf("user%d", k),
		Email:    fmt.Sprintf("user%d@example.com", k),
	}
}

// ExecuteWorkload runs a mixed distribution of ops. Insert errors are
// ignored: under a random key stream, duplicate-key rejections from the
// paged engine are part of the workload.
func ExecuteWorkload(idx index.Index, wType WorkloadType, ops int) {
	for i := 0; i < ops; i++ {
		choice := rand.Intn(100)
		key := int32(rand.Intn(ops))

		switch wType {
		case OLTP:
			if choice < 90 {
				_, _, _ = idx.Get(key)
			} else {
				_ = idx.Insert(makeRow(key))
			}
		case OLAP:
			if choice < 10 {
				_, _, _ = idx.Get(key)
			} else {
				_ = idx.Insert(makeRow(key))
			}
		case Reporting:
			it, err := idx.Range(key, key+100)
			if err != nil {
				continue
			}
			for it.Next() {
			}
			it.Close()
		}
	}
}
