package writer

import (
	"fmt"
	"io"
	"os"
)

// randomAccessFile is what FileWriter needs from its underlying sink:
// enough to both stream-write a freshly created file and back-patch the
// header once every offset is known.
type randomAccessFile interface {
	io.ReaderAt
	io.WriterAt
	io.Seeker
	io.Closer
}

// syncer is implemented by *os.File; FileWriter uses it when present and
// treats Flush as a no-op otherwise (e.g. when wrapping an in-memory sink).
type syncer interface {
	Sync() error
}

// FileWriter wraps a random-access sink for writing a BigBed file. It
// provides:
// - Space allocation tracking (via Allocator)
// - Write-at-address operations
// - End-of-file tracking
// - Flush control
//
// Thread-safety: Not thread-safe. Caller must synchronize access.
type FileWriter struct {
	file      randomAccessFile // Underlying sink
	allocator *Allocator       // Space allocation tracker
}

// CreateMode specifies the file creation behavior.
type CreateMode int

const (
	// ModeTruncate creates a new file, truncating if it exists.
	// Equivalent to os.Create() behavior.
	ModeTruncate CreateMode = iota

	// ModeExclusive creates a new file, fails if it exists.
	// Equivalent to os.O_CREATE | os.O_EXCL.
	ModeExclusive
)

// NewFileWriter creates a writer for a new BigBed file, opened for
// reading and writing. initialOffset is where the allocator starts
// handing out space; the fixed-size file header at offset 0 is written
// separately and is not tracked by the allocator.
func NewFileWriter(filename string, mode CreateMode, initialOffset uint64) (*FileWriter, error) {
	var osFile *os.File
	var err error

	switch mode {
	case ModeTruncate:
		// Create or truncate file, read-write mode
		osFile, err = os.Create(filename)

	case ModeExclusive:
		// Create new file, fail if exists
		osFile, err = os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0666)

	default:
		return nil, fmt.Errorf("invalid create mode: %d", mode)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return &FileWriter{
		file:      osFile,
		allocator: NewAllocator(initialOffset),
	}, nil
}

// seekWriterAt adapts an io.WriteSeeker (which BigBed's public Write API
// accepts, not knowing whether the destination supports native WriteAt)
// into the randomAccessFile this package writes through. Reads are not
// needed during a write pass, so ReadAt always fails.
type seekWriterAt struct {
	w io.WriteSeeker
}

func (s *seekWriterAt) WriteAt(p []byte, off int64) (int, error) {
	if _, err := s.w.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return s.w.Write(p)
}

func (s *seekWriterAt) ReadAt(p []byte, off int64) (int, error) {
	return 0, fmt.Errorf("seekWriterAt: reads are not supported during a write pass")
}

func (s *seekWriterAt) Seek(offset int64, whence int) (int64, error) {
	return s.w.Seek(offset, whence)
}

func (s *seekWriterAt) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NewFileWriterFromWriteSeeker wraps an arbitrary io.WriteSeeker (the
// caller's destination for bigbed.Write) as a FileWriter, backing writes
// with Seek+Write when the destination has no native WriteAt.
func NewFileWriterFromWriteSeeker(w io.WriteSeeker, initialOffset uint64) *FileWriter {
	if raf, ok := w.(randomAccessFile); ok {
		return &FileWriter{file: raf, allocator: NewAllocator(initialOffset)}
	}
	return &FileWriter{file: &seekWriterAt{w: w}, allocator: NewAllocator(initialOffset)}
}

// Allocate reserves a block of space in the file.
// Returns the address where the block was allocated.
// The space is not zeroed - caller must write data to the allocated block.
//
// For MVP:
// - Allocation always occurs at end of file
// - No alignment requirements
//
// Example:
//
//	addr, err := writer.Allocate(1024)
//	if err != nil {
//	    return err
//	}
//	// Now write data at addr
//	err = writer.WriteAtAddress(data, addr)
func (w *FileWriter) Allocate(size uint64) (uint64, error) {
	if w.file == nil {
		return 0, fmt.Errorf("writer is closed")
	}

	return w.allocator.Allocate(size)
}

// WriteAt writes data at a specific address in the file.
// Implements io.WriterAt interface.
//
// The address should typically be obtained from Allocate().
//
// Note: This does not automatically track the write as an allocation.
// For metadata tracking, use Allocate() first, then WriteAt().
//
// Example:
//
//	addr, _ := writer.Allocate(uint64(len(data)))
//	_, err := writer.WriteAt(data, int64(addr))
func (w *FileWriter) WriteAt(data []byte, offset int64) (int, error) {
	if w.file == nil {
		return 0, fmt.Errorf("writer is closed")
	}

	if len(data) == 0 {
		return 0, nil // Nothing to write
	}

	// Use os.File.WriteAt which handles seeking internally
	n, err := w.file.WriteAt(data, offset)
	if err != nil {
		return n, fmt.Errorf("write at address %d failed: %w", offset, err)
	}

	if n != len(data) {
		return n, fmt.Errorf("incomplete write at address %d: wrote %d of %d bytes", offset, n, len(data))
	}

	return n, nil
}

// WriteAtAddress writes data at a specific address (convenience method with uint64 address).
func (w *FileWriter) WriteAtAddress(data []byte, addr uint64) error {
	_, err := w.WriteAt(data, int64(addr))
	return err
}

// ReadAt reads data at a specific address.
// Useful for reading back metadata immediately after writing.
// Implements io.ReaderAt interface for compatibility.
func (w *FileWriter) ReadAt(buf []byte, addr int64) (int, error) {
	if w.file == nil {
		return 0, fmt.Errorf("writer is closed")
	}

	return w.file.ReadAt(buf, addr)
}

// EndOfFile returns the current end-of-file address.
// This is where the next allocation would occur.
func (w *FileWriter) EndOfFile() uint64 {
	return w.allocator.EndOfFile()
}

// Rebase advances the allocator past a region written directly via
// WriteAt rather than Allocate. See Allocator.Rebase.
func (w *FileWriter) Rebase(offset uint64) {
	w.allocator.Rebase(offset)
}

// Flush ensures all writes are committed to disk. This is a no-op when
// the underlying sink doesn't support syncing (e.g. an in-memory buffer).
// This should be called before closing or when data durability is required.
func (w *FileWriter) Flush() error {
	if w.file == nil {
		return fmt.Errorf("writer is closed")
	}

	if s, ok := w.file.(syncer); ok {
		return s.Sync()
	}
	return nil
}

// Close closes the underlying file.
// This does NOT automatically flush - call Flush() first if needed.
// After Close(), the writer cannot be used.
func (w *FileWriter) Close() error {
	if w.file == nil {
		return nil // Already closed
	}

	err := w.file.Close()
	w.file = nil
	return err
}

// File returns the underlying sink. Use with caution - direct operations
// on it may break allocation tracking. Primarily for reading operations
// or advanced use cases.
func (w *FileWriter) File() randomAccessFile {
	return w.file
}

// Allocator returns the space allocator.
// Useful for debugging and testing allocation patterns.
func (w *FileWriter) Allocator() *Allocator {
	return w.allocator
}

// WriteAtWithAllocation is a convenience method that allocates space and writes data.
// Returns the address where data was written.
//
// This is equivalent to:
//
//	addr, err := writer.Allocate(uint64(len(data)))
//	if err != nil { return 0, err }
//	_, err = writer.WriteAt(data, int64(addr))
//	return addr, err
func (w *FileWriter) WriteAtWithAllocation(data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("cannot write empty data")
	}

	addr, err := w.Allocate(uint64(len(data)))
	if err != nil {
		return 0, err
	}

	if err := w.WriteAtAddress(data, addr); err != nil {
		return 0, err
	}

	return addr, nil
}

// Seek implements io.Seeker interface for compatibility. BigBed offsets
// are absolute, so seeking is rarely needed outside of os.File setup.
func (w *FileWriter) Seek(offset int64, whence int) (int64, error) {
	if w.file == nil {
		return 0, fmt.Errorf("writer is closed")
	}

	return w.file.Seek(offset, whence)
}

// Ensure FileWriter implements io.ReaderAt and io.WriterAt
var (
	_ io.ReaderAt = (*FileWriter)(nil)
	_ io.WriterAt = (*FileWriter)(nil)
)
