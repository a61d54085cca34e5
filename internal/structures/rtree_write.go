package structures

import (
	"fmt"

	"github.com/bioformats/bigbed/internal/core"
	"github.com/bioformats/bigbed/internal/utils"
)

// LeafBox is one data block's bounding box, as collected by the writer
// while emitting compressed blocks, in emission order (primarily by
// chrom_id, secondarily by start_base).
type LeafBox struct {
	Box        BoundingBox
	DataOffset uint64
	DataSize   uint64
}

// nodeRef is an already-written node: its file offset and enclosing box,
// used while grouping one level into the next.
type nodeRef struct {
	Offset uint64
	Box    BoundingBox
}

// WriteRTree writes a packed R-tree at offset, bottom-up: leaves first
// (each covering up to blockSize data blocks), then successive levels
// grouping up to blockSize children each, until a single root remains.
// Because every level is fully written before the next is built, a
// parent's child_offset always refers to an already-written position.
// In the file the levels run the other way: the byte size of every level
// is computed up front so the root lands immediately after the header,
// each lower level follows the one above it, and the leaf level is last.
func WriteRTree(w utils.WriterAt, offset uint64, leaves []LeafBox, blockSize, itemsPerSlot uint32, endFileOffset uint64) (uint64, error) {
	itemCount := uint64(len(leaves))
	if blockSize == 0 {
		blockSize = 1
	}

	pos := offset + rTreeHeaderSize

	var overall BoundingBox

	if itemCount > 0 {
		overall = leaves[0].Box
		for _, l := range leaves[1:] {
			overall = unionBox(overall, l.Box)
		}

		// Levels are laid out root first, so the root sits right after the
		// header where CandidateBlocks starts; the leaf level comes last.
		internalNodeSize := uint64(nodeHeaderSize) + uint64(blockSize)*rTreeInternalEntrySize
		var internalNodes uint64
		for n := ceilDiv(itemCount, uint64(blockSize)); n > 1; {
			n = ceilDiv(n, uint64(blockSize))
			internalNodes += n
		}
		pos += internalNodes * internalNodeSize
		levelStart := pos

		var level []nodeRef
		for i := 0; i < len(leaves); i += int(blockSize) {
			end := i + int(blockSize)
			if end > len(leaves) {
				end = len(leaves)
			}
			chunk := leaves[i:end]

			nodeOffset := pos
			box, size, err := writeRTreeLeafNode(w, pos, chunk, blockSize)
			if err != nil {
				return 0, err
			}
			pos += size
			level = append(level, nodeRef{Offset: nodeOffset, Box: box})
		}
		end := pos

		for len(level) > 1 {
			levelStart -= ceilDiv(uint64(len(level)), uint64(blockSize)) * internalNodeSize
			pos = levelStart
			var next []nodeRef
			for i := 0; i < len(level); i += int(blockSize) {
				end := i + int(blockSize)
				if end > len(level) {
					end = len(level)
				}
				chunk := level[i:end]

				nodeOffset := pos
				box, size, err := writeRTreeInternalNode(w, pos, chunk, blockSize)
				if err != nil {
					return 0, err
				}
				pos += size
				next = append(next, nodeRef{Offset: nodeOffset, Box: box})
			}
			level = next
		}
		pos = end
	}

	hdr := RTreeHeader{
		Magic:         core.MagicRTree,
		BlockSize:     blockSize,
		ItemCount:     itemCount,
		Bounds:        overall,
		EndFileOffset: endFileOffset,
		ItemsPerSlot:  itemsPerSlot,
	}

	buf := make([]byte, 0, rTreeHeaderSize)
	buf = utils.PutUint32(buf, hdr.Magic)
	buf = utils.PutUint32(buf, hdr.BlockSize)
	buf = utils.PutUint64(buf, hdr.ItemCount)
	buf = utils.PutUint32(buf, hdr.Bounds.StartChromIx)
	buf = utils.PutUint32(buf, hdr.Bounds.StartBase)
	buf = utils.PutUint32(buf, hdr.Bounds.EndChromIx)
	buf = utils.PutUint32(buf, hdr.Bounds.EndBase)
	buf = utils.PutUint64(buf, hdr.EndFileOffset)
	buf = utils.PutUint32(buf, hdr.ItemsPerSlot)
	buf = append(buf, 0, 0, 0, 0) // reserved

	if _, err := w.WriteAt(buf, int64(offset)); err != nil {
		return 0, utils.WrapError("writing R-tree header", fmt.Errorf("%w: %v", utils.ErrIoError, err))
	}

	return pos, nil
}

func writeRTreeLeafNode(w utils.WriterAt, offset uint64, chunk []LeafBox, blockSize uint32) (BoundingBox, uint64, error) {
	box := chunk[0].Box
	for _, c := range chunk[1:] {
		box = unionBox(box, c.Box)
	}

	size := uint64(nodeHeaderSize) + uint64(blockSize)*rTreeLeafEntrySize
	buf := make([]byte, 0, size)
	buf = append(buf, 1, 0) // is_leaf, reserved
	buf = utils.PutUint16(buf, uint16(len(chunk)))

	for i := uint32(0); i < blockSize; i++ {
		if int(i) < len(chunk) {
			c := chunk[i]
			buf = utils.PutUint32(buf, c.Box.StartChromIx)
			buf = utils.PutUint32(buf, c.Box.StartBase)
			buf = utils.PutUint32(buf, c.Box.EndChromIx)
			buf = utils.PutUint32(buf, c.Box.EndBase)
			buf = utils.PutUint64(buf, c.DataOffset)
			buf = utils.PutUint64(buf, c.DataSize)
		} else {
			buf = append(buf, make([]byte, rTreeLeafEntrySize)...)
		}
	}

	if _, err := w.WriteAt(buf, int64(offset)); err != nil {
		return BoundingBox{}, 0, utils.WrapError("writing R-tree leaf node", fmt.Errorf("%w: %v", utils.ErrIoError, err))
	}
	return box, size, nil
}

func writeRTreeInternalNode(w utils.WriterAt, offset uint64, chunk []nodeRef, blockSize uint32) (BoundingBox, uint64, error) {
	box := chunk[0].Box
	for _, c := range chunk[1:] {
		box = unionBox(box, c.Box)
	}

	size := uint64(nodeHeaderSize) + uint64(blockSize)*rTreeInternalEntrySize
	buf := make([]byte, 0, size)
	buf = append(buf, 0, 0) // is_leaf, reserved
	buf = utils.PutUint16(buf, uint16(len(chunk)))

	for i := uint32(0); i < blockSize; i++ {
		if int(i) < len(chunk) {
			c := chunk[i]
			buf = utils.PutUint32(buf, c.Box.StartChromIx)
			buf = utils.PutUint32(buf, c.Box.StartBase)
			buf = utils.PutUint32(buf, c.Box.EndChromIx)
			buf = utils.PutUint32(buf, c.Box.EndBase)
			buf = utils.PutUint64(buf, c.Offset)
		} else {
			buf = append(buf, make([]byte, rTreeInternalEntrySize)...)
		}
	}

	if _, err := w.WriteAt(buf, int64(offset)); err != nil {
		return BoundingBox{}, 0, utils.WrapError("writing R-tree internal node", fmt.Errorf("%w: %v", utils.ErrIoError, err))
	}
	return box, size, nil
}

// unionBox returns the smallest bounding box enclosing both a and b.
func unionBox(a, b BoundingBox) BoundingBox {
	out := a
	if chromBaseLess(b.StartChromIx, b.StartBase, a.StartChromIx, a.StartBase) {
		out.StartChromIx, out.StartBase = b.StartChromIx, b.StartBase
	}
	if chromBaseLess(a.EndChromIx, a.EndBase, b.EndChromIx, b.EndBase) {
		out.EndChromIx, out.EndBase = b.EndChromIx, b.EndBase
	}
	return out
}
