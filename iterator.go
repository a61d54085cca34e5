package bigbed

import (
	"github.com/bioformats/bigbed/internal/codec"
	"github.com/bioformats/bigbed/internal/structures"
	"github.com/bioformats/bigbed/internal/utils"
)

// Iterator streams Features overlapping a query region, lazily
// decompressing and parsing one candidate block at a time.
type Iterator struct {
	f       *File
	blocks  []structures.Block
	chromID uint32
	startBase, endBase uint32
	seqname string

	blockIdx int
	parser   *codec.FeatureParser

	cur Feature
	err error
	done bool
}

func newIterator(f *File, blocks []structures.Block, chromID, startBase, endBase uint32, seqname string) *Iterator {
	return &Iterator{
		f:         f,
		blocks:    blocks,
		chromID:   chromID,
		startBase: startBase,
		endBase:   endBase,
		seqname:   seqname,
	}
}

// Next advances to the next feature overlapping the query region,
// reporting whether one was found. Once it returns false, Err reports
// whether that was end-of-results or a read/parse failure.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}

	for {
		if it.parser == nil {
			if !it.advanceBlock() {
				return false
			}
		}

		rec, ok, err := it.parser.Next()
		if err != nil {
			it.err = utils.WrapError("reading query results", err)
			it.done = true
			return false
		}
		if !ok {
			it.parser = nil
			continue
		}

		if rec.ChromID != it.chromID || rec.End <= it.startBase || rec.Start >= it.endBase {
			continue
		}

		it.cur = recordToFeature(it.seqname, rec)
		return true
	}
}

// advanceBlock decompresses the next candidate block and installs its
// parser, returning false once every block has been consumed.
func (it *Iterator) advanceBlock() bool {
	if it.blockIdx >= len(it.blocks) {
		it.done = true
		return false
	}
	b := it.blocks[it.blockIdx]
	it.blockIdx++

	raw := make([]byte, b.DataSize)
	if _, err := it.f.r.ReadAt(raw, int64(b.DataOffset)); err != nil {
		it.err = utils.WrapError("reading data block", err)
		it.done = true
		return false
	}

	maxSize := int(it.f.header.UncompressedBufSize)
	c := blockCodec(it.f.header.UncompressedBufSize)
	if maxSize == 0 {
		// uncompressed_buf_size is 0 exactly when the file stores raw,
		// uncompressed blocks, so there is no meaningful upper bound to
		// enforce beyond the block's own size on disk.
		maxSize = len(raw)
	}
	decompressed, err := c.Decompress(nil, raw, maxSize)
	if err != nil {
		it.err = utils.WrapError("decompressing data block", err)
		it.done = true
		return false
	}

	it.parser = codec.NewFeatureParser(decompressed)
	return true
}

func blockCodec(uncompressedBufSize uint32) codec.Codec {
	if uncompressedBufSize == 0 {
		return codec.RawCodec{}
	}
	return codec.NewZlibCodec(0)
}

// Feature returns the feature found by the most recent call to Next.
func (it *Iterator) Feature() Feature {
	return it.cur
}

// Err returns the first error encountered, if any.
func (it *Iterator) Err() error {
	return it.err
}

func recordToFeature(seqname string, rec codec.Record) Feature {
	f := Feature{
		Seqname: seqname,
		First:   int(rec.Start) + 1,
		Last:    int(rec.End),
		Name:    rec.Name,
	}
	if rec.HasScore {
		f.Score = rec.Score
	}
	if rec.HasStrand {
		f.Strand = rec.Strand
	} else {
		f.Strand = '.'
	}
	if rec.HasThick {
		f.ThickFirst = int(rec.ThickStart) + 1
		f.ThickLast = int(rec.ThickEnd)
	}
	if rec.HasItemRGB {
		f.ItemRGB = rec.ItemRGB
		f.HasItemRGB = true
	}
	if rec.HasBlocks {
		f.BlockSizes = rec.BlockSizes
		f.BlockStarts = rec.BlockStarts
	}
	return f
}
