package structures

import (
	"errors"
	"fmt"
	"io"

	"github.com/bioformats/bigbed/internal/core"
	"github.com/bioformats/bigbed/internal/utils"
)

// rTreeHeaderSize is the on-disk size of the R-tree header.
const rTreeHeaderSize = 48

// rTreeBoxSize is the on-disk size of one bounding box.
const rTreeBoxSize = 16

// rTreeInternalEntrySize is a bounding box plus a child offset (u64).
const rTreeInternalEntrySize = rTreeBoxSize + 8

// rTreeLeafEntrySize is a bounding box plus a data offset and size (u64 each).
const rTreeLeafEntrySize = rTreeBoxSize + 16

// BoundingBox is a (chrom_id, base) rectangle in the same coordinate
// space as feature records: chromosomes are ordered by their dense
// 0-based id, and within a chromosome by 0-based half-open position.
type BoundingBox struct {
	StartChromIx uint32
	StartBase    uint32
	EndChromIx   uint32
	EndBase      uint32
}

// Overlaps reports whether bb intersects the half-open query region
// [startChromIx:startBase, endChromIx:endBase), comparing (chromIx, base)
// pairs lexicographically so a query or box may span multiple
// chromosomes.
func (bb BoundingBox) Overlaps(startChromIx, startBase, endChromIx, endBase uint32) bool {
	queryBeforeBoxEnd := chromBaseLess(startChromIx, startBase, bb.EndChromIx, bb.EndBase)
	boxBeforeQueryEnd := chromBaseLess(bb.StartChromIx, bb.StartBase, endChromIx, endBase)
	return queryBeforeBoxEnd && boxBeforeQueryEnd
}

// chromBaseLess orders (chromIx, base) pairs lexicographically.
func chromBaseLess(aChrom, aBase, bChrom, bBase uint32) bool {
	if aChrom != bChrom {
		return aChrom < bChrom
	}
	return aBase < bBase
}

// RTreeHeader is the fixed header at the start of the interval R-tree.
type RTreeHeader struct {
	Magic         uint32
	BlockSize     uint32
	ItemCount     uint64
	Bounds        BoundingBox
	EndFileOffset uint64
	ItemsPerSlot  uint32
}

// Block identifies a compressed (or raw) data block by its byte range.
type Block struct {
	DataOffset uint64
	DataSize   uint64
}

// ReadRTreeHeader reads and validates the R-tree header at offset.
func ReadRTreeHeader(r io.ReaderAt, offset uint64) (*RTreeHeader, error) {
	buf := utils.GetBuffer(rTreeHeaderSize)
	defer utils.ReleaseBuffer(buf)

	if _, err := r.ReadAt(buf, int64(offset)); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, utils.WrapError("reading R-tree header", utils.ErrUnexpectedEOF)
		}
		return nil, utils.WrapError("reading R-tree header", fmt.Errorf("%w: %v", utils.ErrIoError, err))
	}

	h := &RTreeHeader{
		Magic:     readU32(buf, 0),
		BlockSize: readU32(buf, 4),
		ItemCount: readU64(buf, 8),
		Bounds: BoundingBox{
			StartChromIx: readU32(buf, 16),
			StartBase:    readU32(buf, 20),
			EndChromIx:   readU32(buf, 24),
			EndBase:      readU32(buf, 28),
		},
		EndFileOffset: readU64(buf, 32),
		ItemsPerSlot:  readU32(buf, 40),
	}

	if h.Magic != core.MagicRTree {
		return nil, utils.WrapError("reading R-tree header", utils.ErrInvalidMagic)
	}

	return h, nil
}

// CandidateBlocks performs a depth-first traversal of the R-tree rooted
// just after hdr, using an explicit offset stack rather than recursion,
// and returns every data block whose bounding box overlaps the query
// region [startChromIx:startBase, endChromIx:endBase). Results are in
// traversal order, not genomic order.
func CandidateBlocks(r io.ReaderAt, hdr *RTreeHeader, treeOffset uint64, startChromIx, startBase, endChromIx, endBase uint32) ([]Block, error) {
	if hdr.ItemCount == 0 {
		return nil, nil
	}

	rootOffset := int64(treeOffset + rTreeHeaderSize)
	stack := []int64{rootOffset}

	var results []Block

	for len(stack) > 0 {
		pos := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		nh, err := readNodeHeader(r, pos)
		if err != nil {
			return nil, utils.WrapError("walking R-tree", err)
		}
		if int(nh.Count) > int(hdr.BlockSize) {
			return nil, utils.WrapError("walking R-tree", utils.ErrCorruptIndex)
		}

		entrySize := rTreeInternalEntrySize
		if nh.IsLeaf {
			entrySize = rTreeLeafEntrySize
		}

		base := pos + nodeHeaderSize
		buf := utils.GetBuffer(entrySize)
		for i := 0; i < int(nh.Count); i++ {
			if _, err := r.ReadAt(buf, base+int64(i*entrySize)); err != nil {
				utils.ReleaseBuffer(buf)
				if errors.Is(err, io.EOF) {
					return nil, utils.WrapError("walking R-tree", utils.ErrUnexpectedEOF)
				}
				return nil, utils.WrapError("walking R-tree", fmt.Errorf("%w: %v", utils.ErrIoError, err))
			}

			box := BoundingBox{
				StartChromIx: readU32(buf, 0),
				StartBase:    readU32(buf, 4),
				EndChromIx:   readU32(buf, 8),
				EndBase:      readU32(buf, 12),
			}
			if box.EndChromIx < box.StartChromIx {
				utils.ReleaseBuffer(buf)
				return nil, utils.WrapError("walking R-tree", utils.ErrCorruptIndex)
			}

			if !box.Overlaps(startChromIx, startBase, endChromIx, endBase) {
				continue
			}

			if nh.IsLeaf {
				results = append(results, Block{
					DataOffset: readU64(buf, 16),
					DataSize:   readU64(buf, 24),
				})
			} else {
				childOffset := readU64(buf, 16)
				stack = append(stack, int64(childOffset))
			}
		}
		utils.ReleaseBuffer(buf)
	}

	return results, nil
}
