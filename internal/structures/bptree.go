// Package structures implements the two on-disk tree indexes of a BigBed
// file: the chromosome B+-tree (this file and bptree_write.go) and the
// genomic interval R-tree (rtree.go and rtree_write.go).
package structures

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/bioformats/bigbed/internal/core"
	"github.com/bioformats/bigbed/internal/utils"
)

// bpTreeHeaderSize is the on-disk size of the B+-tree header.
const bpTreeHeaderSize = 32

// nodeHeaderSize is the on-disk size of a tree node header, shared by the
// B+-tree and the R-tree.
const nodeHeaderSize = 4

// ChromInfo is the result of a successful chromosome lookup.
type ChromInfo struct {
	ChromID   uint32
	ChromSize uint32
}

// BPTreeHeader is the fixed header at the start of the chromosome B+-tree.
type BPTreeHeader struct {
	Magic     uint32
	BlockSize uint32
	KeySize   uint32
	ValSize   uint32
	ItemCount uint64
	Reserved  uint64
}

// ReadBPTreeHeader reads and validates the B+-tree header at offset.
func ReadBPTreeHeader(r io.ReaderAt, offset uint64) (*BPTreeHeader, error) {
	buf := utils.GetBuffer(bpTreeHeaderSize)
	defer utils.ReleaseBuffer(buf)

	if _, err := r.ReadAt(buf, int64(offset)); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, utils.WrapError("reading B+-tree header", utils.ErrUnexpectedEOF)
		}
		return nil, utils.WrapError("reading B+-tree header", fmt.Errorf("%w: %v", utils.ErrIoError, err))
	}

	h := &BPTreeHeader{
		Magic:     readU32(buf, 0),
		BlockSize: readU32(buf, 4),
		KeySize:   readU32(buf, 8),
		ValSize:   readU32(buf, 12),
		ItemCount: readU64(buf, 16),
		Reserved:  readU64(buf, 24),
	}

	if h.Magic != core.MagicBPTree {
		return nil, utils.WrapError("reading B+-tree header", utils.ErrInvalidMagic)
	}
	if h.ValSize != 8 {
		return nil, utils.WrapError("reading B+-tree header", utils.ErrCorruptIndex)
	}
	if err := utils.ValidateBufferSize(uint64(h.KeySize), utils.MaxKeySize, "B+-tree key size"); err != nil {
		return nil, utils.WrapError("reading B+-tree header", fmt.Errorf("%w: %v", utils.ErrCorruptIndex, err))
	}

	return h, nil
}

// nodeHeader is the is_leaf/reserved/count triple shared by both trees.
type nodeHeader struct {
	IsLeaf bool
	Count  uint16
}

func readNodeHeader(r io.ReaderAt, offset int64) (nodeHeader, error) {
	buf := utils.GetBuffer(nodeHeaderSize)
	defer utils.ReleaseBuffer(buf)

	if _, err := r.ReadAt(buf, offset); err != nil {
		if errors.Is(err, io.EOF) {
			return nodeHeader{}, utils.ErrUnexpectedEOF
		}
		return nodeHeader{}, fmt.Errorf("%w: %v", utils.ErrIoError, err)
	}

	return nodeHeader{
		IsLeaf: buf[0] != 0,
		Count:  readU16(buf, 2),
	}, nil
}

// ResolveChrom walks the chromosome B+-tree rooted just after hdr to find
// seqname, following the "lower-bound search in internal nodes, equality
// confirmed at leaf" convention: internal-node separator keys are the
// first key of each child subtree, so in an internal node the search
// descends into the child at the lower bound when its separator equals
// the key, and into the child before it otherwise. That step only
// narrows the search — it is not itself proof of membership.
func ResolveChrom(r io.ReaderAt, hdr *BPTreeHeader, treeOffset uint64, seqname string) (ChromInfo, error) {
	key := make([]byte, hdr.KeySize)
	if len(seqname) > int(hdr.KeySize) {
		return ChromInfo{}, utils.WrapError("resolving chromosome", utils.ErrNotFound)
	}
	copy(key, seqname)

	rootOffset := treeOffset + bpTreeHeaderSize
	entrySize := int(hdr.KeySize) + 8 // internal: key + child_offset(u64)
	leafEntrySize := int(hdr.KeySize) + 8 // leaf: key + chrom_id(u32) + chrom_size(u32)

	pos := int64(rootOffset)

	for {
		nh, err := readNodeHeader(r, pos)
		if err != nil {
			return ChromInfo{}, utils.WrapError("resolving chromosome", err)
		}
		if int(nh.Count) > int(hdr.BlockSize) {
			return ChromInfo{}, utils.WrapError("resolving chromosome", utils.ErrCorruptIndex)
		}

		size := entrySize
		if nh.IsLeaf {
			size = leafEntrySize
		}

		keys := make([][]byte, nh.Count)
		entryBuf := utils.GetBuffer(size)
		base := pos + nodeHeaderSize
		for i := 0; i < int(nh.Count); i++ {
			if _, err := r.ReadAt(entryBuf, base+int64(i*size)); err != nil {
				utils.ReleaseBuffer(entryBuf)
				if errors.Is(err, io.EOF) {
					return ChromInfo{}, utils.WrapError("resolving chromosome", utils.ErrUnexpectedEOF)
				}
				return ChromInfo{}, utils.WrapError("resolving chromosome", fmt.Errorf("%w: %v", utils.ErrIoError, err))
			}
			k := make([]byte, hdr.KeySize)
			copy(k, entryBuf[:hdr.KeySize])
			keys[i] = k
		}
		utils.ReleaseBuffer(entryBuf)

		idx := lowerBound(keys, key)

		if nh.IsLeaf {
			if idx >= len(keys) || !bytes.Equal(keys[idx], key) {
				return ChromInfo{}, utils.WrapError("resolving chromosome", utils.ErrNotFound)
			}
			recBuf := utils.GetBuffer(leafEntrySize)
			defer utils.ReleaseBuffer(recBuf)
			if _, err := r.ReadAt(recBuf, base+int64(idx*leafEntrySize)); err != nil {
				return ChromInfo{}, utils.WrapError("resolving chromosome", fmt.Errorf("%w: %v", utils.ErrIoError, err))
			}
			return ChromInfo{
				ChromID:   readU32(recBuf, int(hdr.KeySize)),
				ChromSize: readU32(recBuf, int(hdr.KeySize)+4),
			}, nil
		}

		// Separator keys are each child's first key, so the only subtree
		// that can hold key is the last one whose separator is <= key.
		if idx >= len(keys) || !bytes.Equal(keys[idx], key) {
			idx--
		}
		if idx < 0 {
			return ChromInfo{}, utils.WrapError("resolving chromosome", utils.ErrNotFound)
		}
		childBuf := utils.GetBuffer(entrySize)
		if _, err := r.ReadAt(childBuf, base+int64(idx*entrySize)); err != nil {
			utils.ReleaseBuffer(childBuf)
			return ChromInfo{}, utils.WrapError("resolving chromosome", fmt.Errorf("%w: %v", utils.ErrIoError, err))
		}
		childOffset := readU64(childBuf, int(hdr.KeySize))
		utils.ReleaseBuffer(childBuf)

		pos = int64(childOffset)
	}
}

// lowerBound returns the index of the first key in keys that is >=
// target under the memisless ordering (shorter compares less; otherwise
// first differing byte decides — which for fixed-width zero-padded keys
// is exactly lexicographic byte comparison).
func lowerBound(keys [][]byte, target []byte) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if bytes.Compare(keys[mid], target) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func readU16(buf []byte, off int) uint16 {
	return uint16(buf[off]) | uint16(buf[off+1])<<8
}

func readU32(buf []byte, off int) uint32 {
	return uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24
}

func readU64(buf []byte, off int) uint64 {
	return uint64(readU32(buf, off)) | uint64(readU32(buf, off+4))<<32
}

// NamedChromInfo pairs a chromosome's name with its tree entry, as
// returned by ListChroms.
type NamedChromInfo struct {
	Name string
	ChromInfo
}

// ListChroms walks every leaf of the chromosome B+-tree rooted just after
// hdr and returns all entries, in leaf (ascending key) order.
func ListChroms(r io.ReaderAt, hdr *BPTreeHeader, treeOffset uint64) ([]NamedChromInfo, error) {
	if hdr.ItemCount == 0 {
		return nil, nil
	}

	rootOffset := treeOffset + bpTreeHeaderSize
	entrySize := int(hdr.KeySize) + 8
	leafEntrySize := int(hdr.KeySize) + 8

	out := make([]NamedChromInfo, 0, hdr.ItemCount)
	var walk func(pos int64) error
	walk = func(pos int64) error {
		nh, err := readNodeHeader(r, pos)
		if err != nil {
			return utils.WrapError("listing chromosomes", err)
		}
		if int(nh.Count) > int(hdr.BlockSize) {
			return utils.WrapError("listing chromosomes", utils.ErrCorruptIndex)
		}

		size := entrySize
		if nh.IsLeaf {
			size = leafEntrySize
		}
		base := pos + nodeHeaderSize
		buf := utils.GetBuffer(size)
		defer utils.ReleaseBuffer(buf)

		for i := 0; i < int(nh.Count); i++ {
			if _, err := r.ReadAt(buf, base+int64(i*size)); err != nil {
				if errors.Is(err, io.EOF) {
					return utils.WrapError("listing chromosomes", utils.ErrUnexpectedEOF)
				}
				return utils.WrapError("listing chromosomes", fmt.Errorf("%w: %v", utils.ErrIoError, err))
			}

			if nh.IsLeaf {
				name := string(bytes.TrimRight(buf[:hdr.KeySize], "\x00"))
				out = append(out, NamedChromInfo{
					Name: name,
					ChromInfo: ChromInfo{
						ChromID:   readU32(buf, int(hdr.KeySize)),
						ChromSize: readU32(buf, int(hdr.KeySize)+4),
					},
				})
			} else {
				childOffset := readU64(buf, int(hdr.KeySize))
				if err := walk(int64(childOffset)); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(int64(rootOffset)); err != nil {
		return nil, err
	}
	return out, nil
}
