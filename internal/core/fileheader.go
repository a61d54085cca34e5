// Package core provides low-level parsing and generation of the BigBed
// file-level structures: the file header, zoom headers, and the total
// summary block. Chromosome and interval tree structures live in
// internal/structures; this package only covers the fixed-size records
// that sit at the front of the file.
package core

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/bioformats/bigbed/internal/utils"
)

// Magic numbers identifying a BigBed file and its two tree indexes.
// BigWig shares the same container shape but uses a different file magic;
// this package only recognizes the BigBed one.
const (
	MagicFile   uint32 = 0x8789F2EB
	MagicBPTree uint32 = 0x78CA8C91
	MagicRTree  uint32 = 0x2468ACE0

	// MinVersion is the lowest header version this package reads.
	MinVersion uint16 = 3

	// HeaderSize is the on-disk size in bytes of FileHeader.
	HeaderSize = 64

	// zoomHeaderSize is the on-disk size in bytes of one ZoomHeader entry.
	zoomHeaderSize = 24

	// maxZoomLevels bounds how many zoom headers ReadFileHeader will read,
	// guarding against a corrupt zoom_levels field driving an enormous read.
	maxZoomLevels = 64
)

// FileHeader is the 64-byte record at the start of a BigBed file.
type FileHeader struct {
	Magic               uint32
	Version             uint16
	ZoomLevels          uint16
	ChromTreeOffset     uint64
	FullDataOffset      uint64
	FullIndexOffset     uint64
	FieldCount          uint16
	DefinedFieldCount   uint16
	AutoSQLOffset       uint64
	TotalSummaryOffset  uint64
	UncompressedBufSize uint32
	Reserved            uint64
}

// ZoomHeader describes one reduction-level summary. BigBed files produced
// by this package always have ZoomLevels == 0, so these are only ever
// populated when reading a file written by another tool.
type ZoomHeader struct {
	ReductionLevel uint32
	Reserved       uint32
	DataOffset     uint64
	IndexOffset    uint64
}

// TotalSummary holds the whole-file coverage statistics that sit at
// TotalSummaryOffset. Writers in this package always emit a zeroed
// TotalSummary; see the writer package for the documented limitation.
type TotalSummary struct {
	BasesCovered uint64
	MinVal       float64
	MaxVal       float64
	SumData      float64
	SumSquares   float64
}

// ReadFileHeader reads and validates the file header at offset 0,
// followed by its ZoomLevels zoom headers.
func ReadFileHeader(r io.ReaderAt) (*FileHeader, []ZoomHeader, error) {
	buf := utils.GetBuffer(HeaderSize)
	defer utils.ReleaseBuffer(buf)

	if _, err := r.ReadAt(buf, 0); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, utils.WrapError("reading file header", utils.ErrUnexpectedEOF)
		}
		return nil, nil, utils.WrapError("reading file header", fmt.Errorf("%w: %v", utils.ErrIoError, err))
	}

	h := &FileHeader{}
	off := 0

	h.Magic = readU32At(buf, off)
	off += 4

	if h.Magic != MagicFile {
		return nil, nil, utils.WrapError("reading file header", utils.ErrInvalidMagic)
	}

	h.Version = readU16At(buf, off)
	off += 2
	if h.Version < MinVersion {
		return nil, nil, utils.WrapError("reading file header", utils.ErrUnsupportedVersion)
	}

	h.ZoomLevels = readU16At(buf, off)
	off += 2

	h.ChromTreeOffset = readU64At(buf, off)
	off += 8
	h.FullDataOffset = readU64At(buf, off)
	off += 8
	h.FullIndexOffset = readU64At(buf, off)
	off += 8
	h.FieldCount = readU16At(buf, off)
	off += 2
	h.DefinedFieldCount = readU16At(buf, off)
	off += 2
	h.AutoSQLOffset = readU64At(buf, off)
	off += 8
	h.TotalSummaryOffset = readU64At(buf, off)
	off += 8
	h.UncompressedBufSize = readU32At(buf, off)
	off += 4
	h.Reserved = readU64At(buf, off)

	if int(h.ZoomLevels) > maxZoomLevels {
		return nil, nil, utils.WrapError("reading zoom headers", utils.ErrCorruptIndex)
	}

	zooms := make([]ZoomHeader, h.ZoomLevels)
	for i := range zooms {
		zh, err := readZoomHeader(r, int64(HeaderSize+i*zoomHeaderSize))
		if err != nil {
			return nil, nil, utils.WrapError("reading zoom headers", err)
		}
		zooms[i] = zh
	}

	return h, zooms, nil
}

func readZoomHeader(r io.ReaderAt, offset int64) (ZoomHeader, error) {
	buf := utils.GetBuffer(zoomHeaderSize)
	defer utils.ReleaseBuffer(buf)

	if _, err := r.ReadAt(buf, offset); err != nil {
		if errors.Is(err, io.EOF) {
			return ZoomHeader{}, utils.ErrUnexpectedEOF
		}
		return ZoomHeader{}, fmt.Errorf("%w: %v", utils.ErrIoError, err)
	}

	return ZoomHeader{
		ReductionLevel: readU32At(buf, 0),
		Reserved:       readU32At(buf, 4),
		DataOffset:     readU64At(buf, 8),
		IndexOffset:    readU64At(buf, 16),
	}, nil
}

// ReadTotalSummary reads the TotalSummary record at the given offset. A
// zero offset means the file carries no summary and the zero value is
// returned with ok=false.
func ReadTotalSummary(r io.ReaderAt, offset uint64) (TotalSummary, bool, error) {
	if offset == 0 {
		return TotalSummary{}, false, nil
	}

	buf := utils.GetBuffer(40)
	defer utils.ReleaseBuffer(buf)

	if _, err := r.ReadAt(buf, int64(offset)); err != nil {
		if errors.Is(err, io.EOF) {
			return TotalSummary{}, false, utils.WrapError("reading total summary", utils.ErrUnexpectedEOF)
		}
		return TotalSummary{}, false, utils.WrapError("reading total summary", fmt.Errorf("%w: %v", utils.ErrIoError, err))
	}

	ts := TotalSummary{
		BasesCovered: readU64At(buf, 0),
		MinVal:       readF64At(buf, 8),
		MaxVal:       readF64At(buf, 16),
		SumData:      readF64At(buf, 24),
		SumSquares:   readF64At(buf, 32),
	}
	return ts, true, nil
}

// WriteTo serializes the header to w at offset 0. Callers are expected to
// have already reserved HeaderSize bytes and any zoom-header space ahead
// of writing the rest of the file, since the offset fields are only known
// once the B+-tree and R-tree have been laid out.
func (h *FileHeader) WriteTo(w io.WriterAt) error {
	var buf []byte
	buf = utils.PutUint32(buf, h.Magic)
	buf = utils.PutUint16(buf, h.Version)
	buf = utils.PutUint16(buf, h.ZoomLevels)
	buf = utils.PutUint64(buf, h.ChromTreeOffset)
	buf = utils.PutUint64(buf, h.FullDataOffset)
	buf = utils.PutUint64(buf, h.FullIndexOffset)
	buf = utils.PutUint16(buf, h.FieldCount)
	buf = utils.PutUint16(buf, h.DefinedFieldCount)
	buf = utils.PutUint64(buf, h.AutoSQLOffset)
	buf = utils.PutUint64(buf, h.TotalSummaryOffset)
	buf = utils.PutUint32(buf, h.UncompressedBufSize)
	buf = utils.PutUint64(buf, h.Reserved)

	if len(buf) != HeaderSize {
		return fmt.Errorf("internal error: header encoded to %d bytes, want %d", len(buf), HeaderSize)
	}

	if _, err := w.WriteAt(buf, 0); err != nil {
		return utils.WrapError("writing file header", fmt.Errorf("%w: %v", utils.ErrIoError, err))
	}
	return nil
}

// small unexported readers over an in-memory buffer, used instead of
// utils.ReadUint32/ReadUint64 (which take a ReaderAt and re-slice through
// the pool) since the header is parsed field-by-field out of one buffer
// already held in hand.

func readU16At(buf []byte, off int) uint16 {
	return uint16(buf[off]) | uint16(buf[off+1])<<8
}

func readU32At(buf []byte, off int) uint32 {
	return uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24
}

func readU64At(buf []byte, off int) uint64 {
	lo := uint64(readU32At(buf, off))
	hi := uint64(readU32At(buf, off+4))
	return lo | hi<<32
}

func readF64At(buf []byte, off int) float64 {
	bits := readU64At(buf, off)
	return math.Float64frombits(bits)
}
