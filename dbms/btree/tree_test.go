package btree

import "testing"

// treeHeight walks from the root to the leftmost leaf.
func treeHeight(t *testing.T, tbl *Table) int {
	t.Helper()
	height := 1
	page := tbl.RootPage()
	for {
		node, err := tbl.page(page)
		if err != nil {
			t.Fatal(err)
		}
		if nodeType(node) == TypeLeaf {
			return height
		}
		page = internalChild(node, 0)
		height++
	}
}

func TestInternalSplitGrowsToHeightThree(t *testing.T) {
	if testing.Short() {
		t.Skip("height-3 tree needs thousands of inserts")
	}

	tbl := openTestTable(t)
	defer tbl.Close()

	// Sequential inserts spawn a new leaf roughly every LeafMaxCells/2
	// keys; past InternalMaxChildren leaves the internal root must split
	// and push the tree to height three.
	const n = 7000
	rootPage := tbl.RootPage()
	for k := int32(1); k <= n; k++ {
		if err := tbl.Insert(testRow(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
		if k%1000 == 0 {
			checkTree(t, tbl)
		}
	}
	checkTree(t, tbl)

	if h := treeHeight(t, tbl); h != 3 {
		t.Fatalf("tree height = %d after %d inserts, want 3", h, n)
	}
	// Root splits reuse the root page; only collapse may move it.
	if tbl.RootPage() != rootPage {
		t.Errorf("root page moved from %d to %d during growth", rootPage, tbl.RootPage())
	}

	wantKeys(t, scanKeys(t, tbl), seq(1, n)...)
}

func TestInternalRebalanceAndRootCollapseCascade(t *testing.T) {
	if testing.Short() {
		t.Skip("height-3 tree needs thousands of inserts")
	}

	tbl := openTestTable(t)
	defer tbl.Close()

	const n = 7000
	mustInsert(t, tbl, seq(1, n)...)
	if h := treeHeight(t, tbl); h != 3 {
		t.Fatalf("tree height = %d, want 3 before the delete cascade", h)
	}

	// Draining from the left edge forces leaf merges, which in turn drain
	// the internal level until internals borrow, merge, and finally empty
	// the root.
	rootBefore := tbl.RootPage()
	const remaining = 500
	for k := int32(1); k <= n-remaining; k++ {
		if err := tbl.Delete(k); err != nil {
			t.Fatalf("Delete(%d): %v", k, err)
		}
		if k%500 == 0 {
			checkTree(t, tbl)
		}
	}
	checkTree(t, tbl)

	if h := treeHeight(t, tbl); h >= 3 {
		t.Fatalf("tree height = %d after the cascade, want < 3", h)
	}
	if tbl.RootPage() == rootBefore {
		t.Error("root page unchanged; collapse should promote a child")
	}

	wantKeys(t, scanKeys(t, tbl), seq(n-remaining+1, n)...)
	if tbl.NumRows() != remaining {
		t.Errorf("NumRows = %d, want %d", tbl.NumRows(), remaining)
	}
}
