// Package bigbed provides a pure Go implementation for reading and
// writing BigBed files: a self-indexed binary container embedding a
// BED-format feature stream behind a chromosome B+-tree and a genomic
// interval R-tree.
package bigbed

import (
	"fmt"
	"os"

	"github.com/bioformats/bigbed/internal/core"
	"github.com/bioformats/bigbed/internal/structures"
	"github.com/bioformats/bigbed/internal/utils"
)

// OpenOptions controls how a BigBed file is opened.
type OpenOptions struct {
	// MemoryMap is a hint that the caller would prefer a memory-mapped
	// read path. Both the mapped and unmapped paths currently go
	// through io.ReaderAt, so this has no effect yet.
	MemoryMap bool
}

// File is an open BigBed file: its header and both tree indexes, read
// once at Open time, plus the underlying reader used for queries.
type File struct {
	r        readerAtCloser
	header   *core.FileHeader
	bpHeader *structures.BPTreeHeader
	rtHeader *structures.RTreeHeader
}

// readerAtCloser is satisfied by *os.File and by the no-op closer
// OpenReaderAt wraps around a caller-supplied io.ReaderAt.
type readerAtCloser interface {
	ReadAt(p []byte, off int64) (int, error)
	Close() error
}

type nopCloserReaderAt struct {
	r interface {
		ReadAt(p []byte, off int64) (int, error)
	}
}

func (n nopCloserReaderAt) ReadAt(p []byte, off int64) (int, error) { return n.r.ReadAt(p, off) }
func (n nopCloserReaderAt) Close() error                            { return nil }

// Open opens the BigBed file at path.
func Open(path string, opts OpenOptions) (*File, error) {
	//nolint:gosec // G304: caller-provided path is the intended use of this library
	f, err := os.Open(path)
	if err != nil {
		return nil, utils.WrapError("opening file", err)
	}

	file, err := openFrom(f, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return file, nil
}

// OpenReaderAt opens a BigBed file already available as an io.ReaderAt
// (e.g. a memory-mapped region, or an in-memory byte slice). size is
// presently unused but kept for future bounds-checking and API symmetry
// with callers that already know it.
func OpenReaderAt(r interface {
	ReadAt(p []byte, off int64) (int, error)
}, size int64, opts OpenOptions) (*File, error) {
	return openFrom(nopCloserReaderAt{r: r}, opts)
}

func openFrom(r readerAtCloser, opts OpenOptions) (*File, error) {
	header, _, err := core.ReadFileHeader(r)
	if err != nil {
		return nil, err
	}

	bpHeader, err := structures.ReadBPTreeHeader(r, header.ChromTreeOffset)
	if err != nil {
		return nil, utils.WrapError("opening file", err)
	}

	rtHeader, err := structures.ReadRTreeHeader(r, header.FullIndexOffset)
	if err != nil {
		return nil, utils.WrapError("opening file", err)
	}

	return &File{r: r, header: header, bpHeader: bpHeader, rtHeader: rtHeader}, nil
}

// Close releases the underlying file, if Open (not OpenReaderAt) created it.
func (f *File) Close() error {
	if f.r == nil {
		return nil
	}
	err := f.r.Close()
	f.r = nil
	return err
}

// ChromInfo is one chromosome entry from the chromosome B+-tree.
type ChromInfo struct {
	Name string
	structures.ChromInfo
}

// Chromosomes returns every chromosome in the file's B+-tree, in leaf
// order, which is ascending byte order of the name.
func (f *File) Chromosomes() []ChromInfo {
	names, err := structures.ListChroms(f.r, f.bpHeader, f.header.ChromTreeOffset)
	if err != nil {
		return nil
	}
	out := make([]ChromInfo, len(names))
	for i, n := range names {
		out[i] = ChromInfo{Name: n.Name, ChromInfo: n.ChromInfo}
	}
	return out
}

// ChromSize looks up a chromosome's size by name.
func (f *File) ChromSize(name string) (uint32, bool) {
	info, err := structures.ResolveChrom(f.r, f.bpHeader, f.header.ChromTreeOffset, name)
	if err != nil {
		return 0, false
	}
	return info.ChromSize, true
}

// AutoSQL returns the file's embedded autoSql schema text, if any.
func (f *File) AutoSQL() ([]byte, bool) {
	if f.header.AutoSQLOffset == 0 {
		return nil, false
	}

	// autoSql text runs from its offset up to fullDataOffset (the next
	// fixed point in the layout); read generously and trim at the first
	// NUL, matching the format's C-string convention.
	limit := f.header.FullDataOffset
	if limit <= f.header.AutoSQLOffset {
		return nil, false
	}
	span := limit - f.header.AutoSQLOffset

	buf := make([]byte, span)
	if _, err := f.r.ReadAt(buf, int64(f.header.AutoSQLOffset)); err != nil {
		return nil, false
	}
	if i := indexNUL(buf); i >= 0 {
		buf = buf[:i]
	}
	return buf, true
}

func indexNUL(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

// Query returns an Iterator over every feature on seqname whose
// half-open [first, last) span overlaps the caller's 1-based inclusive
// [first, last] region.
func (f *File) Query(seqname string, first, last int) (*Iterator, error) {
	if first < 1 || last < first {
		return nil, fmt.Errorf("bigbed: invalid query region [%d, %d]", first, last)
	}

	target, err := structures.ResolveChrom(f.r, f.bpHeader, f.header.ChromTreeOffset, seqname)
	if err != nil {
		return nil, utils.WrapError("running query", err)
	}

	startBase := uint32(first - 1)
	endBase := uint32(last)

	blocks, err := structures.CandidateBlocks(f.r, f.rtHeader, f.header.FullIndexOffset,
		target.ChromID, startBase, target.ChromID, endBase)
	if err != nil {
		return nil, utils.WrapError("running query", err)
	}

	return newIterator(f, blocks, target.ChromID, startBase, endBase, seqname), nil
}
