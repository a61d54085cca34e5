package structures

import (
	"fmt"

	"github.com/bioformats/bigbed/internal/core"
	"github.com/bioformats/bigbed/internal/utils"
)

// ChromEntry is one chromosome as seen by the B+-tree writer: its dense
// 0-based id, its name, and its size in bases.
type ChromEntry struct {
	Name      string
	ChromID   uint32
	ChromSize uint32
}

// WriteBPTree writes a chromosome B+-tree at offset, built bottom-up from
// chroms (which callers must already have sorted in ascending byte order
// of Name, with ChromID assigned 0..n-1 in that order). It returns the
// offset immediately after the tree.
//
// Node levels are written top (root) first, then down to the leaf level,
// but every level's byte layout — and therefore every node's offset — is
// computed before any bytes are written, so an internal node can record
// its children's offsets even though those children are written later in
// the stream.
func WriteBPTree(w utils.WriterAt, offset uint64, chroms []ChromEntry, blockSize uint32) (uint64, error) {
	itemCount := uint64(len(chroms))

	keySize := uint32(0)
	for _, c := range chroms {
		if l := uint32(len(c.Name)); l > keySize {
			keySize = l
		}
	}

	chromBlockSize := blockSize
	if itemCount > 0 && uint64(chromBlockSize) > itemCount {
		chromBlockSize = uint32(itemCount)
	}
	if chromBlockSize == 0 {
		chromBlockSize = 1
	}

	hdr := BPTreeHeader{
		Magic:     core.MagicBPTree,
		BlockSize: chromBlockSize,
		KeySize:   keySize,
		ValSize:   8,
		ItemCount: itemCount,
		Reserved:  0,
	}

	headerBuf := make([]byte, 0, bpTreeHeaderSize)
	headerBuf = utils.PutUint32(headerBuf, hdr.Magic)
	headerBuf = utils.PutUint32(headerBuf, hdr.BlockSize)
	headerBuf = utils.PutUint32(headerBuf, hdr.KeySize)
	headerBuf = utils.PutUint32(headerBuf, hdr.ValSize)
	headerBuf = utils.PutUint64(headerBuf, hdr.ItemCount)
	headerBuf = utils.PutUint64(headerBuf, hdr.Reserved)
	if _, err := w.WriteAt(headerBuf, int64(offset)); err != nil {
		return 0, utils.WrapError("writing B+-tree header", fmt.Errorf("%w: %v", utils.ErrIoError, err))
	}

	treeStart := offset + bpTreeHeaderSize
	if itemCount == 0 {
		return treeStart, nil
	}

	levels := bpTreeLevels(itemCount, chromBlockSize)
	entrySize := uint64(keySize) + 8
	nodeByteSize := uint64(nodeHeaderSize) + uint64(chromBlockSize)*entrySize

	numNodes := make([]uint64, levels)
	for l := 0; l < levels; l++ {
		itemsPerNode := bpPow(uint64(chromBlockSize), uint64(l+1))
		numNodes[l] = ceilDiv(itemCount, itemsPerNode)
	}

	levelStart := make([]uint64, levels)
	levelStart[levels-1] = treeStart
	for l := levels - 2; l >= 0; l-- {
		levelStart[l] = levelStart[l+1] + numNodes[l+1]*nodeByteSize
	}

	for l := levels - 1; l >= 1; l-- {
		if err := writeBPInternalLevel(w, levelStart, numNodes, l, chromBlockSize, keySize, entrySize, nodeByteSize, chroms); err != nil {
			return 0, err
		}
	}

	if err := writeBPLeafLevel(w, levelStart[0], numNodes[0], chromBlockSize, keySize, entrySize, chroms); err != nil {
		return 0, err
	}

	end := levelStart[0] + numNodes[0]*nodeByteSize
	return end, nil
}

func writeBPInternalLevel(w utils.WriterAt, levelStart []uint64, numNodes []uint64, l int, blockSize, keySize uint32, entrySize, nodeByteSize uint64, chroms []ChromEntry) error {
	itemsPerNode := bpPow(uint64(blockSize), uint64(l+1))
	itemsPerChild := bpPow(uint64(blockSize), uint64(l))
	itemCount := uint64(len(chroms))

	for i := uint64(0); i < numNodes[l]; i++ {
		nodeStart := i * itemsPerNode
		covered := itemsPerNode
		if nodeStart+covered > itemCount {
			covered = itemCount - nodeStart
		}
		liveChildren := ceilDiv(covered, itemsPerChild)

		buf := make([]byte, 0, nodeHeaderSize+uint64(blockSize)*entrySize)
		buf = append(buf, 0) // is_leaf
		buf = append(buf, 0) // reserved
		buf = utils.PutUint16(buf, uint16(liveChildren))

		for j := uint64(0); j < uint64(blockSize); j++ {
			if j < liveChildren {
				childGlobalIdx := i*uint64(blockSize) + j
				firstItemIdx := childGlobalIdx * itemsPerChild
				key := make([]byte, keySize)
				copy(key, chroms[firstItemIdx].Name)
				buf = append(buf, key...)
				childOffset := levelStart[l-1] + childGlobalIdx*nodeByteSize
				buf = utils.PutUint64(buf, childOffset)
			} else {
				buf = append(buf, make([]byte, entrySize)...)
			}
		}

		nodeOffset := levelStart[l] + i*nodeByteSize
		if _, err := w.WriteAt(buf, int64(nodeOffset)); err != nil {
			return utils.WrapError("writing B+-tree internal node", fmt.Errorf("%w: %v", utils.ErrIoError, err))
		}
	}
	return nil
}

func writeBPLeafLevel(w utils.WriterAt, leafStart uint64, numLeafNodes uint64, blockSize, keySize uint32, entrySize uint64, chroms []ChromEntry) error {
	itemCount := uint64(len(chroms))

	for i := uint64(0); i < numLeafNodes; i++ {
		nodeStart := i * uint64(blockSize)
		covered := uint64(blockSize)
		if nodeStart+covered > itemCount {
			covered = itemCount - nodeStart
		}

		buf := make([]byte, 0, nodeHeaderSize+uint64(blockSize)*entrySize)
		buf = append(buf, 1) // is_leaf
		buf = append(buf, 0) // reserved
		buf = utils.PutUint16(buf, uint16(covered))

		for j := uint64(0); j < uint64(blockSize); j++ {
			if j < covered {
				c := chroms[nodeStart+j]
				key := make([]byte, keySize)
				copy(key, c.Name)
				buf = append(buf, key...)
				buf = utils.PutUint32(buf, c.ChromID)
				buf = utils.PutUint32(buf, c.ChromSize)
			} else {
				buf = append(buf, make([]byte, entrySize)...)
			}
		}

		nodeOffset := leafStart + i*(nodeHeaderSize+uint64(blockSize)*entrySize)
		if _, err := w.WriteAt(buf, int64(nodeOffset)); err != nil {
			return utils.WrapError("writing B+-tree leaf node", fmt.Errorf("%w: %v", utils.ErrIoError, err))
		}
	}
	return nil
}

// bpTreeLevels computes ceil(log_blockSize(itemCount)), at least 1.
func bpTreeLevels(itemCount uint64, blockSize uint32) int {
	if itemCount <= uint64(blockSize) {
		return 1
	}
	levels := 1
	capacity := uint64(blockSize)
	for capacity < itemCount {
		capacity *= uint64(blockSize)
		levels++
	}
	return levels
}

func bpPow(base, exp uint64) uint64 {
	result := uint64(1)
	for i := uint64(0); i < exp; i++ {
		result *= base
	}
	return result
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
