package structures

import (
	"errors"
	"sort"
	"testing"

	"github.com/bioformats/bigbed/internal/bbtest"
	"github.com/bioformats/bigbed/internal/utils"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestBPTree_RoundTrip_Small(t *testing.T) {
	chroms := []ChromEntry{
		{Name: "chr1", ChromID: 0, ChromSize: 1000},
		{Name: "chr10", ChromID: 1, ChromSize: 500},
		{Name: "chr2", ChromID: 2, ChromSize: 2000},
	}

	f := bbtest.NewMemFile()
	end, err := WriteBPTree(f, 0, chroms, 256)
	require.NoError(t, err)
	require.Positive(t, end)

	hdr, err := ReadBPTreeHeader(f, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(3), hdr.ItemCount)
	require.Equal(t, uint32(5), hdr.KeySize) // len("chr10")

	for _, c := range chroms {
		info, err := ResolveChrom(f, hdr, 0, c.Name)
		require.NoError(t, err)
		require.Equal(t, c.ChromID, info.ChromID)
		require.Equal(t, c.ChromSize, info.ChromSize)
	}

	_, err = ResolveChrom(f, hdr, 0, "chr3")
	require.True(t, errors.Is(err, utils.ErrNotFound))
}

func TestBPTree_RoundTrip_ForcesMultipleLevels(t *testing.T) {
	// block_size=4 with 20 chromosomes forces at least two tree levels.
	var chroms []ChromEntry
	names := []string{
		"chrA", "chrB", "chrC", "chrD", "chrE", "chrF", "chrG", "chrH",
		"chrI", "chrJ", "chrK", "chrL", "chrM", "chrN", "chrO", "chrP",
		"chrQ", "chrR", "chrS", "chrT",
	}
	for i, n := range names {
		chroms = append(chroms, ChromEntry{Name: n, ChromID: uint32(i), ChromSize: uint32(100 + i)})
	}

	f := bbtest.NewMemFile()
	_, err := WriteBPTree(f, 0, chroms, 4)
	require.NoError(t, err)

	hdr, err := ReadBPTreeHeader(f, 0)
	require.NoError(t, err)

	for _, c := range chroms {
		info, err := ResolveChrom(f, hdr, 0, c.Name)
		require.NoError(t, err, "lookup of %s failed", c.Name)
		require.Equal(t, c.ChromID, info.ChromID)
		require.Equal(t, c.ChromSize, info.ChromSize)
	}

	_, err = ResolveChrom(f, hdr, 0, "chrZZ")
	require.True(t, errors.Is(err, utils.ErrNotFound))
}

func TestBPTree_Empty(t *testing.T) {
	f := bbtest.NewMemFile()
	_, err := WriteBPTree(f, 0, nil, 256)
	require.NoError(t, err)

	hdr, err := ReadBPTreeHeader(f, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), hdr.ItemCount)
}

func TestListChroms_MatchesWrittenEntries(t *testing.T) {
	chroms := []ChromEntry{
		{Name: "chr1", ChromID: 0, ChromSize: 1000},
		{Name: "chr10", ChromID: 1, ChromSize: 500},
		{Name: "chr2", ChromID: 2, ChromSize: 2000},
		{Name: "chrX", ChromID: 3, ChromSize: 3000},
	}

	f := bbtest.NewMemFile()
	_, err := WriteBPTree(f, 0, chroms, 2)
	require.NoError(t, err)

	hdr, err := ReadBPTreeHeader(f, 0)
	require.NoError(t, err)

	got, err := ListChroms(f, hdr, 0)
	require.NoError(t, err)

	want := make([]NamedChromInfo, len(chroms))
	for i, c := range chroms {
		want[i] = NamedChromInfo{Name: c.Name, ChromInfo: ChromInfo{ChromID: c.ChromID, ChromSize: c.ChromSize}}
	}

	byName := func(s []NamedChromInfo) func(i, j int) bool {
		return func(i, j int) bool { return s[i].Name < s[j].Name }
	}
	sort.Slice(got, byName(got))
	sort.Slice(want, byName(want))

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ListChroms mismatch (-want +got):\n%s", diff)
	}
}

func TestListChroms_Empty(t *testing.T) {
	f := bbtest.NewMemFile()
	_, err := WriteBPTree(f, 0, nil, 256)
	require.NoError(t, err)

	hdr, err := ReadBPTreeHeader(f, 0)
	require.NoError(t, err)

	got, err := ListChroms(f, hdr, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestReadBPTreeHeader_InvalidMagic(t *testing.T) {
	f := bbtest.NewMemFileFrom(make([]byte, bpTreeHeaderSize))
	_, err := ReadBPTreeHeader(f, 0)
	require.True(t, errors.Is(err, utils.ErrInvalidMagic))
}

func TestResolveChrom_NameLongerThanKeySize(t *testing.T) {
	chroms := []ChromEntry{{Name: "chr1", ChromID: 0, ChromSize: 100}}
	f := bbtest.NewMemFile()
	_, err := WriteBPTree(f, 0, chroms, 256)
	require.NoError(t, err)

	hdr, err := ReadBPTreeHeader(f, 0)
	require.NoError(t, err)

	_, err = ResolveChrom(f, hdr, 0, "chr1_but_much_longer_than_the_key")
	require.True(t, errors.Is(err, utils.ErrNotFound))
}
