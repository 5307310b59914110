package btree

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"
)

func testRow(k int32) Row {
	return Row{
		ID:       k,
		Username: fmt.Sprintf("user%d", k),
		Email:    fmt.Sprintf("user%d@example.com", k),
	}
}

func openTestTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return tbl
}

func mustInsert(t *testing.T, tbl *Table, keys ...int32) {
	t.Helper()
	for _, k := range keys {
		if err := tbl.Insert(testRow(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
}

func mustDelete(t *testing.T, tbl *Table, keys ...int32) {
	t.Helper()
	for _, k := range keys {
		if err := tbl.Delete(k); err != nil {
			t.Fatalf("Delete(%d): %v", k, err)
		}
	}
}

// scanKeys walks the leaf chain from the start cursor and returns every key.
func scanKeys(t *testing.T, tbl *Table) []int32 {
	t.Helper()
	c, err := tbl.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	var keys []int32
	for !c.EndOfTable {
		k, err := c.Key()
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		keys = append(keys, k)
		if err := c.Advance(); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	return keys
}

func checkTree(t *testing.T, tbl *Table) {
	t.Helper()
	if err := tbl.Check(); err != nil {
		t.Fatalf("integrity: %v", err)
	}
}

func wantKeys(t *testing.T, got []int32, want ...int32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("scan yields %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("scan yields %v, want %v", got, want)
		}
	}
}

func seq(lo, hi int32) []int32 {
	keys := make([]int32, 0, hi-lo+1)
	for k := lo; k <= hi; k++ {
		keys = append(keys, k)
	}
	return keys
}

func TestInsertSelectRoundTrip(t *testing.T) {
	tbl := openTestTable(t)
	defer tbl.Close()

	rows := []Row{
		{ID: 1, Username: "a", Email: "a@a.com"},
		{ID: 2, Username: "b", Email: "b@b.com"},
		{ID: 3, Username: "c", Email: "c@c.com"},
	}
	for _, r := range rows {
		if err := tbl.Insert(r); err != nil {
			t.Fatalf("Insert(%d): %v", r.ID, err)
		}
	}

	c, err := tbl.Start()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; !c.EndOfTable; i++ {
		got, err := c.Row()
		if err != nil {
			t.Fatal(err)
		}
		if got != rows[i] {
			t.Errorf("row %d = %+v, want %+v", i, got, rows[i])
		}
		if err := c.Advance(); err != nil {
			t.Fatal(err)
		}
	}

	if tbl.NumRows() != 3 {
		t.Errorf("NumRows = %d, want 3", tbl.NumRows())
	}
	checkTree(t, tbl)
}

func TestDuplicateKeyRejected(t *testing.T) {
	tbl := openTestTable(t)
	defer tbl.Close()

	if err := tbl.Insert(Row{ID: 1, Username: "a", Email: "a@a.com"}); err != nil {
		t.Fatal(err)
	}
	err := tbl.Insert(Row{ID: 1, Username: "x", Email: "x@x.com"})
	if err != ErrDuplicateKey {
		t.Fatalf("second insert of key 1: got %v, want ErrDuplicateKey", err)
	}

	// The original row must be untouched.
	c, err := tbl.Find(1)
	if err != nil {
		t.Fatal(err)
	}
	row, err := c.Row()
	if err != nil {
		t.Fatal(err)
	}
	if row.Username != "a" || row.Email != "a@a.com" {
		t.Errorf("row after rejected insert = %+v", row)
	}
	wantKeys(t, scanKeys(t, tbl), 1)
	checkTree(t, tbl)
}

func TestOutOfOrderInsertion(t *testing.T) {
	tbl := openTestTable(t)
	defer tbl.Close()

	dup := 0
	for _, k := range []int32{3, 1, 4, 1, 5, 9, 2, 6} {
		err := tbl.Insert(testRow(k))
		if err == ErrDuplicateKey {
			dup++
			continue
		}
		if err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	if dup != 1 {
		t.Errorf("got %d duplicate rejections, want 1", dup)
	}

	wantKeys(t, scanKeys(t, tbl), 1, 2, 3, 4, 5, 6, 9)
	checkTree(t, tbl)
}

func TestLeafSplitBoundary(t *testing.T) {
	tbl := openTestTable(t)
	defer tbl.Close()

	// Fill the root leaf to exactly its capacity: no split yet.
	mustInsert(t, tbl, seq(1, LeafMaxCells)...)
	root, err := tbl.page(tbl.RootPage())
	if err != nil {
		t.Fatal(err)
	}
	if nodeType(root) != TypeLeaf {
		t.Fatal("root is not a leaf after filling to capacity")
	}
	if n := leafNumCells(root); n != LeafMaxCells {
		t.Fatalf("root leaf holds %d cells, want %d", n, LeafMaxCells)
	}
	checkTree(t, tbl)

	// One more insert must split the leaf under a new internal root while
	// keeping the root page number stable.
	rootPage := tbl.RootPage()
	mustInsert(t, tbl, LeafMaxCells+1)
	if tbl.RootPage() != rootPage {
		t.Errorf("root page moved from %d to %d on root split", rootPage, tbl.RootPage())
	}
	root, err = tbl.page(tbl.RootPage())
	if err != nil {
		t.Fatal(err)
	}
	if nodeType(root) != TypeInternal {
		t.Fatal("root is not internal after split")
	}
	if n := internalNumKeys(root); n < 1 {
		t.Fatalf("internal root holds %d keys, want >= 1", n)
	}

	wantKeys(t, scanKeys(t, tbl), seq(1, LeafMaxCells+1)...)
	checkTree(t, tbl)
}

func TestManySequentialInserts(t *testing.T) {
	tbl := openTestTable(t)
	defer tbl.Close()

	mustInsert(t, tbl, seq(1, 500)...)
	wantKeys(t, scanKeys(t, tbl), seq(1, 500)...)
	if tbl.NumRows() != 500 {
		t.Errorf("NumRows = %d, want 500", tbl.NumRows())
	}
	checkTree(t, tbl)
}

func TestOrderIndependence(t *testing.T) {
	// Any permutation of the same key set must scan identically.
	want := seq(1, 200)

	for trial := 0; trial < 5; trial++ {
		t.Run(fmt.Sprintf("permutation%d", trial), func(t *testing.T) {
			tbl := openTestTable(t)
			defer tbl.Close()

			perm := rand.New(rand.NewSource(int64(trial))).Perm(len(want))
			for _, i := range perm {
				mustInsert(t, tbl, want[i])
			}

			wantKeys(t, scanKeys(t, tbl), want...)
			checkTree(t, tbl)
		})
	}
}

func TestFindPositionsCursor(t *testing.T) {
	tbl := openTestTable(t)
	defer tbl.Close()

	mustInsert(t, tbl, 10, 20, 30)

	c, err := tbl.Find(20)
	if err != nil {
		t.Fatal(err)
	}
	if c.EndOfTable {
		t.Fatal("cursor at existing key reports end of table")
	}
	if k, _ := c.Key(); k != 20 {
		t.Errorf("Find(20) lands on key %d", k)
	}

	// A miss lands on the insertion position.
	c, err = tbl.Find(25)
	if err != nil {
		t.Fatal(err)
	}
	if k, _ := c.Key(); k != 30 {
		t.Errorf("Find(25) lands on key %d, want 30", k)
	}

	// Past the last key the cursor is at end of table.
	c, err = tbl.Find(99)
	if err != nil {
		t.Fatal(err)
	}
	if !c.EndOfTable {
		t.Error("Find(99) past the last key does not report end of table")
	}
}

func TestEmptyTableScan(t *testing.T) {
	tbl := openTestTable(t)
	defer tbl.Close()

	c, err := tbl.Start()
	if err != nil {
		t.Fatal(err)
	}
	if !c.EndOfTable {
		t.Error("cursor on empty table does not report end of table")
	}
	checkTree(t, tbl)
}
