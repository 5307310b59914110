package pager

import (
	"fmt"
	"os"
)

const (
	PageSize = 4096 // 4 KB — matches OS page size

	// MaxPages bounds the resident working set. The allocator is monotonic
	// within a session, so this is also the largest file the engine will
	// grow to (16 MB).
	MaxPages = 4096
)

// Page is a raw 4 KB block read from or written to disk.
type Page [PageSize]byte

// Pager maps page numbers to in-memory page buffers backed by a single file.
// Pages are loaded lazily on first access and stay resident until Close;
// there is no eviction and no dirty tracking — Close flushes every resident
// page unconditionally.
type Pager struct {
	file      *os.File
	pages     [MaxPages]*Page
	fileLen   int64
	pageCount uint32 // pages known to exist, on disk or resident
}

// Open opens (or creates) a pager backed by the given file. The file length
// must be a whole number of pages.
func Open(path string) (*Pager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("pager open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pager open: %w", err)
	}
	if info.Size()%PageSize != 0 {
		f.Close()
		return nil, fmt.Errorf("pager open %s: file length %d is not a whole number of pages", path, info.Size())
	}

	return &Pager{
		file:      f,
		fileLen:   info.Size(),
		pageCount: uint32(info.Size() / PageSize),
	}, nil
}

// GetPage returns the buffer for page n, reading it from disk on first
// access. Accessing a page past the current count extends the count; the
// file itself grows at flush time.
func (p *Pager) GetPage(n uint32) (*Page, error) {
	if n >= MaxPages {
		return nil, fmt.Errorf("pager: page %d out of bounds (max %d)", n, MaxPages)
	}

	if p.pages[n] == nil {
		pg := new(Page)
		if int64(n)*PageSize < p.fileLen {
			if _, err := p.file.ReadAt(pg[:], p.offset(n)); err != nil {
				return nil, fmt.Errorf("pager: read page %d: %w", n, err)
			}
		}
		p.pages[n] = pg
		if n >= p.pageCount {
			p.pageCount = n + 1
		}
	}

	return p.pages[n], nil
}

// Flush writes the resident buffer for page n back to its file offset.
// A non-resident page is a no-op.
func (p *Pager) Flush(n uint32) error {
	if n >= MaxPages || p.pages[n] == nil {
		return nil
	}
	if _, err := p.file.WriteAt(p.pages[n][:], p.offset(n)); err != nil {
		return fmt.Errorf("pager: write page %d: %w", n, err)
	}
	return nil
}

// Close flushes every resident page and closes the underlying file.
func (p *Pager) Close() error {
	for i := uint32(0); i < p.pageCount; i++ {
		if p.pages[i] == nil {
			continue
		}
		if err := p.Flush(i); err != nil {
			p.file.Close()
			return err
		}
		p.pages[i] = nil
	}
	if err := p.file.Close(); err != nil {
		return fmt.Errorf("pager close: %w", err)
	}
	return nil
}

// PageCount returns the number of pages known to the pager.
func (p *Pager) PageCount() uint32 {
	return p.pageCount
}

func (p *Pager) offset(n uint32) int64 {
	return int64(n) * PageSize
}
