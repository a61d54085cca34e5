// Package main provides a command-line utility for inspecting and
// building BigBed files: listing chromosomes, dumping a query region,
// and converting a plain BED file into a BigBed file.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"iter"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/bioformats/bigbed"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "chroms":
		err = runChroms(os.Args[2:])
	case "query":
		err = runQuery(os.Args[2:])
	case "build":
		err = runBuild(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Println("Usage: bigbedtool <command> [flags]")
	fmt.Println("Commands:")
	fmt.Println("  chroms <file.bb>                      list chromosomes and sizes")
	fmt.Println("  query  <file.bb> <chrom> <first> <last>  dump features overlapping a region")
	fmt.Println("  build  <in.bed> <out.bb>               build a BigBed file from a sorted BED file")
}

func runChroms(args []string) error {
	fs := flag.NewFlagSet("chroms", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("chroms: expected exactly one file argument")
	}

	f, err := bigbed.Open(fs.Arg(0), bigbed.OpenOptions{})
	if err != nil {
		return err
	}
	defer f.Close()

	for _, c := range f.Chromosomes() {
		fmt.Printf("%s\t%d\n", c.Name, c.ChromSize)
	}
	return nil
}

func runQuery(args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 4 {
		return fmt.Errorf("query: expected <file.bb> <chrom> <first> <last>")
	}

	first, err := strconv.Atoi(fs.Arg(2))
	if err != nil {
		return fmt.Errorf("query: invalid first: %w", err)
	}
	last, err := strconv.Atoi(fs.Arg(3))
	if err != nil {
		return fmt.Errorf("query: invalid last: %w", err)
	}

	f, err := bigbed.Open(fs.Arg(0), bigbed.OpenOptions{})
	if err != nil {
		return err
	}
	defer f.Close()

	it, err := f.Query(fs.Arg(1), first, last)
	if err != nil {
		return err
	}
	for it.Next() {
		ft := it.Feature()
		fmt.Printf("%s\t%d\t%d\t%s\n", ft.Seqname, ft.First-1, ft.Last, ft.Name)
	}
	return it.Err()
}

func runBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	blockSize := fs.Uint("block-size", 256, "B+-tree and R-tree block size")
	itemsPerSlot := fs.Int("items-per-slot", 512, "records per compressed data block")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("build: expected <in.bed> <out.bb>")
	}

	data, err := readBedFile(fs.Arg(0))
	if err != nil {
		return err
	}

	//nolint:gosec // G304: command-line-controlled output path is the intended use of this tool
	out, err := os.Create(fs.Arg(1))
	if err != nil {
		return err
	}
	defer out.Close()

	return bigbed.Write(out, data, bigbed.WriteOptions{
		BlockSize:    int(*blockSize),
		ItemsPerSlot: *itemsPerSlot,
	})
}

// bedCollection implements bigbed.IntervalCollection over a plain BED
// file: one bigbed.Feature per non-empty, non-comment line. Lines must
// already be grouped by chromosome and sorted by start position; this
// tool does no sorting or validation beyond that.
type bedCollection struct {
	order []string
	byChrom map[string][]bigbed.Feature
	lengths map[string]uint32
}

func (c *bedCollection) Sequences() []bigbed.SequenceIntervals {
	out := make([]bigbed.SequenceIntervals, len(c.order))
	for i, name := range c.order {
		out[i] = bedSequence{name: name, maxEnd: c.lengths[name], feats: c.byChrom[name]}
	}
	return out
}

// bedSequence adapts one chromosome's accumulated features to
// bigbed.SequenceIntervals.
type bedSequence struct {
	name   string
	maxEnd uint32
	feats  []bigbed.Feature
}

func (s bedSequence) Name() string   { return s.name }
func (s bedSequence) MaxEnd() uint32 { return s.maxEnd }
func (s bedSequence) Features() iter.Seq[bigbed.Feature] {
	return func(yield func(bigbed.Feature) bool) {
		for _, f := range s.feats {
			if !yield(f) {
				return
			}
		}
	}
}

func readBedFile(path string) (*bedCollection, error) {
	//nolint:gosec // G304: command-line-controlled input path is the intended use of this tool
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c := &bedCollection{
		byChrom: make(map[string][]bigbed.Feature),
		lengths: make(map[string]uint32),
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "track") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return nil, fmt.Errorf("malformed BED line: %q", line)
		}

		chrom := fields[0]
		start, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("malformed BED start in %q: %w", line, err)
		}
		end, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("malformed BED end in %q: %w", line, err)
		}

		feat := bigbed.Feature{Seqname: chrom, First: start + 1, Last: end}
		if len(fields) > 3 {
			feat.Name = fields[3]
		}
		if len(fields) > 4 {
			score, err := strconv.ParseUint(fields[4], 10, 16)
			if err != nil {
				return nil, fmt.Errorf("malformed BED score in %q: %w", line, err)
			}
			feat.Score = uint16(score)
		}
		if len(fields) > 5 {
			feat.Strand = fields[5][0]
		}

		if _, seen := c.byChrom[chrom]; !seen {
			c.order = append(c.order, chrom)
		}
		c.byChrom[chrom] = append(c.byChrom[chrom], feat)
		if uint32(end) > c.lengths[chrom] {
			c.lengths[chrom] = uint32(end)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return c, nil
}
