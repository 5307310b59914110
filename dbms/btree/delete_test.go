package btree

import (
	"math/rand"
	"testing"
)

func TestDeleteMissingKey(t *testing.T) {
	tbl := openTestTable(t)
	defer tbl.Close()

	mustInsert(t, tbl, 1, 2, 3)

	if err := tbl.Delete(99); err != ErrKeyNotFound {
		t.Fatalf("Delete(99): got %v, want ErrKeyNotFound", err)
	}
	wantKeys(t, scanKeys(t, tbl), 1, 2, 3)
	checkTree(t, tbl)
}

func TestDeleteFromRootLeaf(t *testing.T) {
	tbl := openTestTable(t)
	defer tbl.Close()

	mustInsert(t, tbl, 1, 2, 3)
	mustDelete(t, tbl, 2)

	wantKeys(t, scanKeys(t, tbl), 1, 3)
	if tbl.NumRows() != 2 {
		t.Errorf("NumRows = %d, want 2", tbl.NumRows())
	}
	checkTree(t, tbl)
}

func TestDeleteEverythingThenReinsert(t *testing.T) {
	tbl := openTestTable(t)
	defer tbl.Close()

	mustInsert(t, tbl, seq(1, 10)...)
	mustDelete(t, tbl, seq(1, 10)...)

	if keys := scanKeys(t, tbl); len(keys) != 0 {
		t.Fatalf("scan after deleting everything yields %v", keys)
	}
	if tbl.NumRows() != 0 {
		t.Errorf("NumRows = %d, want 0", tbl.NumRows())
	}
	checkTree(t, tbl)

	mustInsert(t, tbl, 5, 7)
	wantKeys(t, scanKeys(t, tbl), 5, 7)
	checkTree(t, tbl)
}

func TestDeleteInsertRoundTrip(t *testing.T) {
	// Insert(r); Delete(r.id); Insert(r) must scan like a single Insert(r).
	tbl := openTestTable(t)
	defer tbl.Close()

	mustInsert(t, tbl, seq(1, 30)...)
	mustDelete(t, tbl, 17)
	mustInsert(t, tbl, 17)

	wantKeys(t, scanKeys(t, tbl), seq(1, 30)...)
	checkTree(t, tbl)
}

func TestDeleteWithRebalance(t *testing.T) {
	tbl := openTestTable(t)
	defer tbl.Close()

	mustInsert(t, tbl, seq(1, 20)...)

	// Deleting from the left edge drains the first leaf below its minimum
	// and forces borrows or merges; invariants must hold after each step.
	for k := int32(1); k <= 5; k++ {
		mustDelete(t, tbl, k)
		checkTree(t, tbl)
	}

	wantKeys(t, scanKeys(t, tbl), seq(6, 20)...)
}

func TestDeleteBoundaryNoRebalanceUntilUnderflow(t *testing.T) {
	tbl := openTestTable(t)
	defer tbl.Close()

	// Two leaves after one split; the right leaf holds the high keys.
	mustInsert(t, tbl, seq(1, LeafMaxCells+1)...)
	checkTree(t, tbl)

	// Drain the right leaf down to exactly LeafMinCells: still balanced,
	// no structural change needed.
	rightCount := LeafMaxCells + 1 - (LeafMaxCells+1)/2
	var k int32 = LeafMaxCells + 1
	for ; rightCount > LeafMinCells; rightCount-- {
		mustDelete(t, tbl, k)
		checkTree(t, tbl)
		k--
	}

	// One more deletion pushes it below the minimum and triggers a borrow
	// or merge.
	mustDelete(t, tbl, k)
	checkTree(t, tbl)
	wantKeys(t, scanKeys(t, tbl), seq(1, k-1)...)
}

func TestRootCollapse(t *testing.T) {
	tbl := openTestTable(t)
	defer tbl.Close()

	// Grow to an internal root over two leaves, then shrink until the
	// leaves merge and the root collapses back to a single leaf.
	mustInsert(t, tbl, seq(1, LeafMaxCells+1)...)
	internalRoot := tbl.RootPage()

	root, err := tbl.page(internalRoot)
	if err != nil {
		t.Fatal(err)
	}
	if nodeType(root) != TypeInternal {
		t.Fatal("root is not internal after split")
	}

	for k := int32(LeafMaxCells + 1); k > LeafMinCells; k-- {
		mustDelete(t, tbl, k)
		checkTree(t, tbl)
	}

	if tbl.RootPage() == internalRoot {
		t.Fatal("root page did not change on collapse")
	}
	root, err = tbl.page(tbl.RootPage())
	if err != nil {
		t.Fatal(err)
	}
	if nodeType(root) != TypeLeaf {
		t.Fatal("collapsed root is not a leaf")
	}
	wantKeys(t, scanKeys(t, tbl), seq(1, LeafMinCells)...)
	checkTree(t, tbl)
}

func TestDeleteMaxKeyKeepsParentKeysFresh(t *testing.T) {
	tbl := openTestTable(t)
	defer tbl.Close()

	// Deleting a leaf's greatest key must repair the separator keys above
	// it; the integrity check verifies stored key == subtree max.
	mustInsert(t, tbl, seq(1, 40)...)
	checkTree(t, tbl)

	// Max of the whole table (right edge).
	mustDelete(t, tbl, 40)
	checkTree(t, tbl)

	// Max of an interior leaf: find a leaf boundary by deleting keys that
	// sit at the end of their leaves.
	for _, k := range []int32{7, 14, 21} {
		mustDelete(t, tbl, k)
		checkTree(t, tbl)
	}
	wantKeys(t, scanKeys(t, tbl), remove(seq(1, 39), 7, 14, 21)...)
}

func remove(keys []int32, drop ...int32) []int32 {
	dropped := make(map[int32]bool, len(drop))
	for _, d := range drop {
		dropped[d] = true
	}
	out := keys[:0:0]
	for _, k := range keys {
		if !dropped[k] {
			out = append(out, k)
		}
	}
	return out
}

func TestRandomChurn(t *testing.T) {
	tbl := openTestTable(t)
	defer tbl.Close()

	rng := rand.New(rand.NewSource(42))
	live := make(map[int32]bool)

	for op := 0; op < 2000; op++ {
		k := int32(rng.Intn(300))
		if live[k] && rng.Intn(2) == 0 {
			mustDelete(t, tbl, k)
			delete(live, k)
		} else if !live[k] {
			mustInsert(t, tbl, k)
			live[k] = true
		}
		if op%100 == 0 {
			checkTree(t, tbl)
		}
	}
	checkTree(t, tbl)

	keys := scanKeys(t, tbl)
	if len(keys) != len(live) {
		t.Fatalf("scan yields %d keys, %d live", len(keys), len(live))
	}
	for _, k := range keys {
		if !live[k] {
			t.Fatalf("scan yields key %d that was deleted", k)
		}
	}
}
