package writer

import (
	"fmt"

	"github.com/bioformats/bigbed/internal/codec"
	"github.com/bioformats/bigbed/internal/structures"
	"github.com/bioformats/bigbed/internal/utils"
)

// DataBlockWriter partitions a sorted feature stream into data blocks,
// compresses each with a Codec, and writes them through a FileWriter's
// allocator, collecting the bounding box of each block for the R-tree.
type DataBlockWriter struct {
	fw           *FileWriter
	codec        codec.Codec
	itemsPerSlot int
}

// NewDataBlockWriter returns a writer that groups up to itemsPerSlot
// consecutive records into each block, never spanning a chromosome
// boundary.
func NewDataBlockWriter(fw *FileWriter, c codec.Codec, itemsPerSlot int) *DataBlockWriter {
	if itemsPerSlot <= 0 {
		itemsPerSlot = 1
	}
	return &DataBlockWriter{fw: fw, codec: c, itemsPerSlot: itemsPerSlot}
}

// WriteBlocks writes recs, which must already be sorted by (chrom_id,
// start), as a sequence of compressed blocks. It returns one LeafBox per
// block in emission order plus the largest uncompressed block size seen
// (the file header's uncompressed_buf_size).
func (d *DataBlockWriter) WriteBlocks(recs []codec.Record) ([]structures.LeafBox, uint32, error) {
	var leaves []structures.LeafBox
	var maxUncompressed uint32

	i := 0
	for i < len(recs) {
		j := i + 1
		for j < len(recs) && j-i < d.itemsPerSlot && recs[j].ChromID == recs[i].ChromID {
			j++
		}
		chunk := recs[i:j]

		var raw []byte
		maxEnd := chunk[0].End
		for _, r := range chunk {
			raw = append(raw, codec.EncodeRecord(r)...)
			if r.End > maxEnd {
				maxEnd = r.End
			}
		}
		if uint32(len(raw)) > maxUncompressed {
			maxUncompressed = uint32(len(raw))
		}

		compressed, err := d.codec.Compress(nil, raw)
		if err != nil {
			return nil, 0, utils.WrapError("compressing data block", err)
		}

		addr, err := d.fw.Allocate(uint64(len(compressed)))
		if err != nil {
			return nil, 0, utils.WrapError("allocating data block", err)
		}
		if err := d.fw.WriteAtAddress(compressed, addr); err != nil {
			return nil, 0, utils.WrapError("writing data block", err)
		}

		leaves = append(leaves, structures.LeafBox{
			Box: structures.BoundingBox{
				StartChromIx: chunk[0].ChromID,
				StartBase:    chunk[0].Start,
				EndChromIx:   chunk[len(chunk)-1].ChromID,
				EndBase:      maxEnd,
			},
			DataOffset: addr,
			DataSize:   uint64(len(compressed)),
		})

		i = j
	}

	return leaves, maxUncompressed, nil
}

// validateSorted reports an error if recs is not sorted by (chrom_id,
// start), the precondition WriteBlocks and the R-tree writer both rely
// on for correct bounding boxes.
func validateSorted(recs []codec.Record) error {
	for i := 1; i < len(recs); i++ {
		prev, cur := recs[i-1], recs[i]
		if cur.ChromID < prev.ChromID || (cur.ChromID == prev.ChromID && cur.Start < prev.Start) {
			return fmt.Errorf("records not sorted by (chrom_id, start) at index %d", i)
		}
	}
	return nil
}
