package writer

import (
	"github.com/bioformats/bigbed/internal/codec"
	"github.com/bioformats/bigbed/internal/core"
	"github.com/bioformats/bigbed/internal/structures"
	"github.com/bioformats/bigbed/internal/utils"
)

// BuildOptions describes everything Build needs to lay out a complete
// BigBed file. Records must already be sorted by (chrom_id, start); Build
// does not sort, since the caller is expected to resolve chrom_id from
// Chroms before sorting.
type BuildOptions struct {
	Chroms  []structures.ChromEntry
	Records []codec.Record

	Codec codec.Codec

	BTreeBlockSize    uint32
	RTreeBlockSize    uint32
	ItemsPerSlot      int
	FieldCount        uint16
	DefinedFieldCount uint16
}

// Build writes a complete BigBed file to fw in the two documented passes:
// the chromosome B+-tree is written first (its shape needs no data yet to
// be known), then the record count, the compressed blocks themselves
// (collecting their bounding boxes along the way), then the interval
// R-tree built from those boxes, then finally the fixed-size file header
// at offset 0 is back-patched with every offset now that they are known.
func Build(fw *FileWriter, opts BuildOptions) (*core.FileHeader, error) {
	if err := validateSorted(opts.Records); err != nil {
		return nil, utils.WrapError("building file", err)
	}

	c := opts.Codec
	if c == nil {
		c = codec.NewZlibCodec(6)
	}

	// Ten zoom-header slots and a total-summary record follow the header,
	// written as zeros: no zoom levels or summary are produced, so the
	// header keeps zoom_levels and total_summary_offset at 0.
	const reservedSize = 10*24 + 40
	if err := fw.WriteAtAddress(make([]byte, reservedSize), core.HeaderSize); err != nil {
		return nil, utils.WrapError("reserving zoom and summary space", err)
	}
	fw.Rebase(core.HeaderSize + reservedSize)
	chromTreeOffset := uint64(core.HeaderSize + reservedSize)
	bpEnd, err := structures.WriteBPTree(fw, chromTreeOffset, opts.Chroms, opts.BTreeBlockSize)
	if err != nil {
		return nil, utils.WrapError("writing chromosome tree", err)
	}
	fw.Rebase(bpEnd)

	fullDataOffset := bpEnd
	countAddr, err := fw.Allocate(8)
	if err != nil {
		return nil, utils.WrapError("allocating data count", err)
	}
	var countBuf []byte
	countBuf = utils.PutUint64(countBuf, uint64(len(opts.Records)))
	if err := fw.WriteAtAddress(countBuf, countAddr); err != nil {
		return nil, utils.WrapError("writing data count", err)
	}

	dbw := NewDataBlockWriter(fw, c, opts.ItemsPerSlot)
	leaves, maxUncompressed, err := dbw.WriteBlocks(opts.Records)
	if err != nil {
		return nil, err
	}

	fullIndexOffset := fw.EndOfFile()
	rtreeEnd, err := structures.WriteRTree(fw, fullIndexOffset, leaves, opts.RTreeBlockSize, uint32(opts.ItemsPerSlot), fullIndexOffset)
	if err != nil {
		return nil, utils.WrapError("writing interval tree", err)
	}
	fw.Rebase(rtreeEnd)

	// Readers take uncompressed_buf_size == 0 to mean raw blocks.
	bufSize := maxUncompressed
	if _, raw := c.(codec.RawCodec); raw {
		bufSize = 0
	}

	hdr := &core.FileHeader{
		Magic:               core.MagicFile,
		Version:             core.MinVersion,
		ZoomLevels:          0,
		ChromTreeOffset:     chromTreeOffset,
		FullDataOffset:      fullDataOffset,
		FullIndexOffset:     fullIndexOffset,
		FieldCount:          opts.FieldCount,
		DefinedFieldCount:   opts.DefinedFieldCount,
		AutoSQLOffset:       0,
		TotalSummaryOffset:  0,
		UncompressedBufSize: bufSize,
	}

	if err := hdr.WriteTo(fw); err != nil {
		return nil, err
	}

	return hdr, nil
}
