package core

import (
	"errors"
	"testing"

	"github.com/bioformats/bigbed/internal/bbtest"
	"github.com/bioformats/bigbed/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestFileHeader_RoundTrip(t *testing.T) {
	h := &FileHeader{
		Magic:               MagicFile,
		Version:             4,
		ZoomLevels:          0,
		ChromTreeOffset:     64,
		FullDataOffset:      200,
		FullIndexOffset:     400,
		FieldCount:          12,
		DefinedFieldCount:   12,
		AutoSQLOffset:       0,
		TotalSummaryOffset:  0,
		UncompressedBufSize: 32768,
		Reserved:            0,
	}

	f := bbtest.NewMemFile()
	require.NoError(t, h.WriteTo(f))

	got, zooms, err := ReadFileHeader(f)
	require.NoError(t, err)
	require.Empty(t, zooms)
	require.Equal(t, h, got)
}

func TestReadFileHeader_InvalidMagic(t *testing.T) {
	f := bbtest.NewMemFileFrom(make([]byte, HeaderSize))
	_, _, err := ReadFileHeader(f)
	require.Error(t, err)
	require.True(t, errors.Is(err, utils.ErrInvalidMagic))
}

func TestReadFileHeader_UnsupportedVersion(t *testing.T) {
	h := &FileHeader{Magic: MagicFile, Version: 2}
	f := bbtest.NewMemFile()
	require.NoError(t, h.WriteTo(f))

	_, _, err := ReadFileHeader(f)
	require.Error(t, err)
	require.True(t, errors.Is(err, utils.ErrUnsupportedVersion))
}

func TestReadFileHeader_Truncated(t *testing.T) {
	f := bbtest.NewMemFileFrom([]byte{0xEB, 0xF2, 0x89, 0x87})
	_, _, err := ReadFileHeader(f)
	require.Error(t, err)
}

func TestReadFileHeader_ZoomHeaders(t *testing.T) {
	h := &FileHeader{
		Magic:      MagicFile,
		Version:    4,
		ZoomLevels: 2,
	}
	f := bbtest.NewMemFile()
	require.NoError(t, h.WriteTo(f))

	var zoomBuf []byte
	zoomBuf = utils.PutUint32(zoomBuf, 10)
	zoomBuf = utils.PutUint32(zoomBuf, 0)
	zoomBuf = utils.PutUint64(zoomBuf, 1000)
	zoomBuf = utils.PutUint64(zoomBuf, 2000)
	_, err := f.WriteAt(zoomBuf, HeaderSize)
	require.NoError(t, err)

	_, err = f.WriteAt(zoomBuf, HeaderSize+zoomHeaderSize)
	require.NoError(t, err)

	_, zooms, err := ReadFileHeader(f)
	require.NoError(t, err)
	require.Len(t, zooms, 2)
	require.Equal(t, uint32(10), zooms[0].ReductionLevel)
	require.Equal(t, uint64(1000), zooms[0].DataOffset)
}

func TestReadFileHeader_ZoomLevelsTooLarge(t *testing.T) {
	h := &FileHeader{Magic: MagicFile, Version: 4, ZoomLevels: maxZoomLevels + 1}
	f := bbtest.NewMemFile()
	require.NoError(t, h.WriteTo(f))

	_, _, err := ReadFileHeader(f)
	require.Error(t, err)
	require.True(t, errors.Is(err, utils.ErrCorruptIndex))
}

func TestTotalSummary_ZeroOffsetMeansAbsent(t *testing.T) {
	f := bbtest.NewMemFile()
	ts, ok, err := ReadTotalSummary(f, 0)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, TotalSummary{}, ts)
}

func TestTotalSummary_RoundTrip(t *testing.T) {
	var buf []byte
	buf = utils.PutUint64(buf, 123456)
	buf = utils.PutFloat64(buf, 0.5)
	buf = utils.PutFloat64(buf, 99.5)
	buf = utils.PutFloat64(buf, 5000)
	buf = utils.PutFloat64(buf, 700000)

	f := bbtest.NewMemFile()
	_, err := f.WriteAt(buf, 64)
	require.NoError(t, err)

	ts, ok, err := ReadTotalSummary(f, 64)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(123456), ts.BasesCovered)
	require.InDelta(t, 0.5, ts.MinVal, 0)
	require.InDelta(t, 99.5, ts.MaxVal, 0)
}

func TestMagicConstants(t *testing.T) {
	require.Equal(t, uint32(0x8789F2EB), MagicFile)
	require.Equal(t, uint32(0x78CA8C91), MagicBPTree)
	require.Equal(t, uint32(0x2468ACE0), MagicRTree)
}
