package utils

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// mockReaderAt is a mock implementation of ReaderAt for testing.
type mockReaderAt struct {
	data []byte
	err  error
}

func (m *mockReaderAt) ReadAt(p []byte, off int64) (n int, err error) {
	if m.err != nil {
		return 0, m.err
	}

	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}

	n = copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func TestReadUint32(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		offset   int64
		expected uint32
	}{
		{"zero value", []byte{0x00, 0x00, 0x00, 0x00}, 0, 0},
		{"max value", []byte{0xFF, 0xFF, 0xFF, 0xFF}, 0, 0xFFFFFFFF},
		{"small value", []byte{0x01, 0x00, 0x00, 0x00}, 0, 1},
		{"with offset", []byte{0xFF, 0xFF, 0x01, 0x00, 0x00, 0x00}, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &mockReaderAt{data: tt.data}
			val, err := ReadUint32(reader, tt.offset)
			require.NoError(t, err)
			require.Equal(t, tt.expected, val)
		})
	}
}

func TestReadUint64_LittleEndian(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		offset   int64
		expected uint64
	}{
		{
			name:     "zero value",
			data:     []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			offset:   0,
			expected: 0,
		},
		{
			name:     "max value",
			data:     []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
			offset:   0,
			expected: 0xFFFFFFFFFFFFFFFF,
		},
		{
			name:     "small value little endian",
			data:     []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			offset:   0,
			expected: 1,
		},
		{
			name:     "large value little endian",
			data:     []byte{0x00, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			offset:   0,
			expected: 0x1000,
		},
		{
			name:     "with offset",
			data:     []byte{0xFF, 0xFF, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			offset:   2,
			expected: 1,
		},
		{
			name:     "typical file offset",
			data:     []byte{0x60, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			offset:   0,
			expected: 0x60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &mockReaderAt{data: tt.data}
			val, err := ReadUint64(reader, tt.offset)
			require.NoError(t, err)
			require.Equal(t, tt.expected, val)
		})
	}
}

func TestReadUint64_Errors(t *testing.T) {
	tests := []struct {
		name   string
		reader ReaderAt
		offset int64
	}{
		{
			name:   "read error",
			reader: &mockReaderAt{data: []byte{}, err: errors.New("read error")},
			offset: 0,
		},
		{
			name:   "offset beyond data",
			reader: &mockReaderAt{data: []byte{0x01, 0x02}},
			offset: 100,
		},
		{
			name:   "not enough data",
			reader: &mockReaderAt{data: []byte{0x01, 0x02, 0x03}},
			offset: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadUint64(tt.reader, tt.offset)
			require.Error(t, err)
		})
	}
}

func TestReadUint64_WithBytesReader(t *testing.T) {
	data := []byte{0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0xF0}

	reader := bytes.NewReader(data)
	val, err := ReadUint64(reader, 0)
	require.NoError(t, err)

	expected := binary.LittleEndian.Uint64(data)
	require.Equal(t, expected, val)
}

func TestReadFloat64(t *testing.T) {
	want := 3.1415926535
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(want))

	reader := &mockReaderAt{data: buf[:]}
	val, err := ReadFloat64(reader, 0)
	require.NoError(t, err)
	require.Equal(t, want, val)
}

func TestReadUint64_BufferPoolIntegration(t *testing.T) {
	// Verifies that ReadUint64 properly uses the buffer pool by reading
	// many times and checking every result, not just that it doesn't panic.
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i % 256)
	}

	reader := &mockReaderAt{data: data}

	for offset := int64(0); offset <= int64(len(data)-8); offset += 8 {
		val, err := ReadUint64(reader, offset)
		require.NoError(t, err)

		expected := binary.LittleEndian.Uint64(data[offset : offset+8])
		require.Equal(t, expected, val, "offset: %d", offset)
	}
}

func TestPutRoundTrip(t *testing.T) {
	var buf []byte
	buf = PutUint16(buf, 0xBEEF)
	buf = PutUint32(buf, 0xDEADBEEF)
	buf = PutUint64(buf, 0x0123456789ABCDEF)
	buf = PutFloat64(buf, 2.5)

	require.Equal(t, uint16(0xBEEF), binary.LittleEndian.Uint16(buf[0:2]))
	require.Equal(t, uint32(0xDEADBEEF), binary.LittleEndian.Uint32(buf[2:6]))
	require.Equal(t, uint64(0x0123456789ABCDEF), binary.LittleEndian.Uint64(buf[6:14]))
	require.InDelta(t, 2.5, math.Float64frombits(binary.LittleEndian.Uint64(buf[14:22])), 0)
}

func TestReaderAtInterface(t *testing.T) {
	t.Run("bytes.Reader", func(_ *testing.T) {
		data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
		var _ ReaderAt = bytes.NewReader(data)
	})

	t.Run("mockReaderAt", func(_ *testing.T) {
		var _ ReaderAt = &mockReaderAt{}
	})
}

func BenchmarkReadUint64(b *testing.B) {
	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i)
	}
	reader := &mockReaderAt{data: data}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		offset := int64((i * 8) % (len(data) - 8))
		_, _ = ReadUint64(reader, offset)
	}
}
