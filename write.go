package bigbed

import (
	"fmt"
	"io"
	"sort"

	"github.com/bioformats/bigbed/internal/codec"
	"github.com/bioformats/bigbed/internal/structures"
	"github.com/bioformats/bigbed/internal/writer"
)

// WriteOptions controls how Write lays out a new BigBed file. Zero
// values are replaced with the defaults documented on each field.
type WriteOptions struct {
	// BlockSize is the B+-tree and R-tree fan-out (items per node).
	// Defaults to 256.
	BlockSize int

	// ItemsPerSlot caps how many consecutive records share one
	// compressed data block. Defaults to 512.
	ItemsPerSlot int

	// Compressed selects zlib-compressed data blocks. Defaults to true.
	// Set CompressedSet to force Compressed=false to take effect.
	Compressed    bool
	CompressedSet bool

	// ChromSizes overrides a chromosome's SequenceIntervals.MaxEnd()
	// with an explicit size, for callers that know the true sequence
	// length (MaxEnd only reflects the rightmost feature seen).
	ChromSizes map[string]uint32

	// FieldCount and DefinedFieldCount describe the BED schema, as
	// recorded in the file header. Both default to 3 (chrom/start/end
	// only); callers writing extended BED columns should set these to
	// match, though Write does not itself validate field contents.
	FieldCount        uint16
	DefinedFieldCount uint16
}

func (o WriteOptions) withDefaults() WriteOptions {
	if o.BlockSize == 0 {
		o.BlockSize = 256
	}
	if o.ItemsPerSlot == 0 {
		o.ItemsPerSlot = 512
	}
	if !o.CompressedSet {
		o.Compressed = true
	}
	if o.FieldCount == 0 {
		o.FieldCount = 3
	}
	if o.DefinedFieldCount == 0 {
		o.DefinedFieldCount = 3
	}
	return o
}

// Write builds a complete BigBed file from data and writes it to w.
// Chromosome ids are assigned in ascending order of Name, matching the
// byte ordering the chromosome B+-tree requires of its leaves.
func Write(w io.WriteSeeker, data IntervalCollection, opts WriteOptions) error {
	opts = opts.withDefaults()

	type seq struct {
		name   string
		length uint32
		feats  []Feature
	}

	seqList := data.Sequences()
	seqs := make([]seq, len(seqList))
	for i, s := range seqList {
		length := s.MaxEnd()
		if override, ok := opts.ChromSizes[s.Name()]; ok {
			length = override
		}
		var feats []Feature
		for f := range s.Features() {
			feats = append(feats, f)
		}
		seqs[i] = seq{name: s.Name(), length: length, feats: feats}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i].name < seqs[j].name })

	chroms := make([]structures.ChromEntry, len(seqs))
	chromID := make(map[string]uint32, len(seqs))
	for i, s := range seqs {
		chroms[i] = structures.ChromEntry{Name: s.name, ChromID: uint32(i), ChromSize: s.length}
		chromID[s.name] = uint32(i)
	}

	var records []codec.Record
	for _, s := range seqs {
		id := chromID[s.name]
		for _, f := range s.feats {
			if f.First < 1 || f.Last < f.First {
				return fmt.Errorf("bigbed: invalid feature range [%d, %d] on %s", f.First, f.Last, s.name)
			}
			records = append(records, featureToRecord(id, f))
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].ChromID != records[j].ChromID {
			return records[i].ChromID < records[j].ChromID
		}
		return records[i].Start < records[j].Start
	})

	var c codec.Codec
	if opts.Compressed {
		c = codec.NewZlibCodec(6)
	} else {
		c = codec.RawCodec{}
	}

	fw := writer.NewFileWriterFromWriteSeeker(w, 0)
	defer fw.Close()

	_, err := writer.Build(fw, writer.BuildOptions{
		Chroms:            chroms,
		Records:           records,
		Codec:             c,
		BTreeBlockSize:    uint32(opts.BlockSize),
		RTreeBlockSize:    uint32(opts.BlockSize),
		ItemsPerSlot:      opts.ItemsPerSlot,
		FieldCount:        opts.FieldCount,
		DefinedFieldCount: opts.DefinedFieldCount,
	})
	if err != nil {
		return err
	}

	return fw.Flush()
}

// featureToRecord fills in a Record's optional fields by working outward
// from whichever field the caller actually populated: the on-disk
// grammar requires every earlier optional field to be present once a
// later one is, so setting BlockSizes implies Score, Strand, Thick, and
// ItemRGB must all be set too.
func featureToRecord(chromID uint32, f Feature) codec.Record {
	rec := codec.Record{
		ChromID: chromID,
		Start:   uint32(f.First - 1),
		End:     uint32(f.Last),
		Name:    f.Name,
	}

	strandSet := f.Strand != 0 && f.Strand != '.'
	thickSet := f.ThickLast > 0
	blocksSet := len(f.BlockSizes) > 0

	needThick := thickSet || f.HasItemRGB || blocksSet
	needStrand := strandSet || needThick
	needScore := f.Score != 0 || needStrand

	if needScore {
		rec.HasScore = true
		rec.Score = f.Score
	}
	if needStrand {
		rec.HasStrand = true
		rec.Strand = f.Strand
		if rec.Strand == 0 {
			rec.Strand = '.'
		}
	}
	if needThick {
		rec.HasThick = true
		if thickSet {
			rec.ThickStart = uint32(f.ThickFirst - 1)
			rec.ThickEnd = uint32(f.ThickLast)
		} else {
			rec.ThickStart = rec.Start
			rec.ThickEnd = rec.End
		}
	}
	if f.HasItemRGB || blocksSet {
		rec.HasItemRGB = true
		rec.ItemRGB = f.ItemRGB
	}
	if blocksSet {
		rec.HasBlocks = true
		rec.BlockCount = len(f.BlockSizes)
		rec.BlockSizes = f.BlockSizes
		rec.BlockStarts = f.BlockStarts
	}
	return rec
}
