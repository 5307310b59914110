package memtree

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/minidb-storage/minidb/dbms/btree"
)

func row(k int32) btree.Row {
	return btree.Row{
		ID:       k,
		Username: fmt.Sprintf("user%d", k),
		Email:    fmt.Sprintf("user%d@example.com", k),
	}
}

func TestInsertGetDelete(t *testing.T) {
	bt := New(4)

	for k := int32(0); k < 100; k++ {
		if err := bt.Insert(row(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	got, found, err := bt.Get(42)
	if err != nil || !found {
		t.Fatalf("Get(42) = found %v, err %v", found, err)
	}
	if got != row(42) {
		t.Errorf("Get(42) = %+v", got)
	}

	if err := bt.Delete(42); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := bt.Get(42); found {
		t.Error("Get(42) found a deleted key")
	}
	if err := bt.Delete(42); err != btree.ErrKeyNotFound {
		t.Errorf("second delete: got %v, want ErrKeyNotFound", err)
	}
}

func TestRangeFollowsLeafChain(t *testing.T) {
	bt := New(3)

	// Out-of-order inserts across enough keys to force several splits.
	for _, k := range []int32{50, 10, 90, 30, 70, 20, 80, 40, 60, 100, 5, 95} {
		if err := bt.Insert(row(k)); err != nil {
			t.Fatal(err)
		}
	}

	it, err := bt.Range(25, 85)
	if err != nil {
		t.Fatal(err)
	}
	var got []int32
	for it.Next() {
		got = append(got, it.Key())
	}
	want := []int32{30, 40, 50, 60, 70, 80}
	if len(got) != len(want) {
		t.Fatalf("Range(25, 85) yields %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Range(25, 85) yields %v, want %v", got, want)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memtree.gob")

	bt := New(4)
	for k := int32(0); k < 50; k++ {
		if err := bt.Insert(row(k)); err != nil {
			t.Fatal(err)
		}
	}
	if err := bt.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded := New(2)
	if err := loaded.LoadFrom(path); err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	it, err := loaded.Range(0, 49)
	if err != nil {
		t.Fatal(err)
	}
	count := int32(0)
	for it.Next() {
		if it.Key() != count {
			t.Fatalf("loaded tree yields key %d, want %d", it.Key(), count)
		}
		if it.Row() != row(count) {
			t.Fatalf("loaded tree yields row %+v for key %d", it.Row(), count)
		}
		count++
	}
	if count != 50 {
		t.Errorf("loaded tree yields %d rows, want 50", count)
	}
}
