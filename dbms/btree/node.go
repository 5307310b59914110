// Package btree implements a disk-backed B+ tree over fixed-size rows keyed
// by a 32-bit integer, one node per 4 KB page.
//
// Common node header:
//
//	[0]     1 byte   node type (TypeInternal / TypeLeaf)
//	[1]     1 byte   is_root flag
//	[2-5]   4 bytes  parent page number (0 if none)
//
// Leaf node:
//
//	[6-9]    4 bytes  numCells
//	[10-13]  4 bytes  nextLeaf page number (0 if last leaf)
//	[14+]    packed cells: 4-byte key + RowSize row payload
//
// Internal node:
//
//	[6-9]    4 bytes  numKeys
//	[10-13]  4 bytes  rightChild page number
//	[14+]    packed cells: 4-byte child page number + 4-byte key
//
// The key in cell i is the max key reachable through child i; rightChild
// holds the subtree with all greater keys. Leaves are chained through
// nextLeaf in ascending key order. All integers are little-endian.
package btree

import (
	"encoding/binary"

	"github.com/minidb-storage/minidb/dbms/pager"
)

const (
	TypeInternal = byte(0)
	TypeLeaf     = byte(1)

	offNodeType = 0
	offIsRoot   = 1
	offParent   = 2

	commonHeaderSize = 6

	offLeafNumCells = commonHeaderSize
	offLeafNextLeaf = offLeafNumCells + 4
	leafHeaderSize  = offLeafNextLeaf + 4

	leafKeySize  = 4
	LeafCellSize = leafKeySize + RowSize

	// LeafMaxCells is the largest cell count that fits in a page.
	LeafMaxCells = (pager.PageSize - leafHeaderSize) / LeafCellSize
	LeafMinCells = LeafMaxCells / 2

	offInternalNumKeys    = commonHeaderSize
	offInternalRightChild = offInternalNumKeys + 4
	internalHeaderSize    = offInternalRightChild + 4

	internalChildSize = 4
	internalKeySize   = 4
	internalCellSize  = internalChildSize + internalKeySize

	InternalMaxKeys     = (pager.PageSize - internalHeaderSize) / internalCellSize
	InternalMaxChildren = InternalMaxKeys + 1
	InternalMinKeys     = InternalMaxKeys / 2
)

// ─── Common accessors ─────────────────────────────────────────────────────────

func nodeType(p *pager.Page) byte { return p[offNodeType] }

func setNodeType(p *pager.Page, t byte) { p[offNodeType] = t }

func isNodeRoot(p *pager.Page) bool { return p[offIsRoot] != 0 }

func setNodeRoot(p *pager.Page, root bool) {
	if root {
		p[offIsRoot] = 1
	} else {
		p[offIsRoot] = 0
	}
}

func nodeParent(p *pager.Page) uint32 {
	return binary.LittleEndian.Uint32(p[offParent : offParent+4])
}

func setNodeParent(p *pager.Page, parent uint32) {
	binary.LittleEndian.PutUint32(p[offParent:offParent+4], parent)
}

// ─── Leaf accessors ───────────────────────────────────────────────────────────

func leafNumCells(p *pager.Page) int {
	return int(binary.LittleEndian.Uint32(p[offLeafNumCells : offLeafNumCells+4]))
}

func setLeafNumCells(p *pager.Page, n int) {
	binary.LittleEndian.PutUint32(p[offLeafNumCells:offLeafNumCells+4], uint32(n))
}

func leafNextLeaf(p *pager.Page) uint32 {
	return binary.LittleEndian.Uint32(p[offLeafNextLeaf : offLeafNextLeaf+4])
}

func setLeafNextLeaf(p *pager.Page, next uint32) {
	binary.LittleEndian.PutUint32(p[offLeafNextLeaf:offLeafNextLeaf+4], next)
}

func leafCellOffset(i int) int {
	return leafHeaderSize + i*LeafCellSize
}

// leafCell returns the full cell (key + row) as a slice into the page.
func leafCell(p *pager.Page, i int) []byte {
	o := leafCellOffset(i)
	return p[o : o+LeafCellSize]
}

func leafKey(p *pager.Page, i int) int32 {
	o := leafCellOffset(i)
	return int32(binary.LittleEndian.Uint32(p[o : o+leafKeySize]))
}

func setLeafKey(p *pager.Page, i int, key int32) {
	o := leafCellOffset(i)
	binary.LittleEndian.PutUint32(p[o:o+leafKeySize], uint32(key))
}

// leafValue returns the row payload of cell i as a slice into the page.
// Writing through it mutates the page buffer.
func leafValue(p *pager.Page, i int) []byte {
	o := leafCellOffset(i) + leafKeySize
	return p[o : o+RowSize]
}

// ─── Internal accessors ───────────────────────────────────────────────────────

func internalNumKeys(p *pager.Page) int {
	return int(binary.LittleEndian.Uint32(p[offInternalNumKeys : offInternalNumKeys+4]))
}

func setInternalNumKeys(p *pager.Page, n int) {
	binary.LittleEndian.PutUint32(p[offInternalNumKeys:offInternalNumKeys+4], uint32(n))
}

func internalRightChild(p *pager.Page) uint32 {
	return binary.LittleEndian.Uint32(p[offInternalRightChild : offInternalRightChild+4])
}

func setInternalRightChild(p *pager.Page, child uint32) {
	binary.LittleEndian.PutUint32(p[offInternalRightChild:offInternalRightChild+4], child)
}

func internalCellOffset(i int) int {
	return internalHeaderSize + i*internalCellSize
}

func internalChild(p *pager.Page, i int) uint32 {
	o := internalCellOffset(i)
	return binary.LittleEndian.Uint32(p[o : o+internalChildSize])
}

func setInternalChild(p *pager.Page, i int, child uint32) {
	o := internalCellOffset(i)
	binary.LittleEndian.PutUint32(p[o:o+internalChildSize], child)
}

func internalKey(p *pager.Page, i int) int32 {
	o := internalCellOffset(i) + internalChildSize
	return int32(binary.LittleEndian.Uint32(p[o : o+internalKeySize]))
}

func setInternalKey(p *pager.Page, i int, key int32) {
	o := internalCellOffset(i) + internalChildSize
	binary.LittleEndian.PutUint32(p[o:o+internalKeySize], uint32(key))
}

// internalChildAt resolves the child at position idx in [0..numKeys], where
// idx == numKeys denotes rightChild.
func internalChildAt(p *pager.Page, idx int) uint32 {
	if idx == internalNumKeys(p) {
		return internalRightChild(p)
	}
	return internalChild(p, idx)
}

// ─── Init ─────────────────────────────────────────────────────────────────────

func initLeafNode(p *pager.Page) {
	for i := range p {
		p[i] = 0
	}
	setNodeType(p, TypeLeaf)
}

func initInternalNode(p *pager.Page) {
	for i := range p {
		p[i] = 0
	}
	setNodeType(p, TypeInternal)
}
