// Package codec implements the data-block compression layer and the
// BED-in-block streaming parser: the two pieces that turn a
// (data_offset, data_size) pair from the R-tree into a sequence of
// feature records.
package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/bioformats/bigbed/internal/utils"
	"github.com/klauspost/compress/zlib"
)

// Codec compresses and decompresses a single data block. It is
// deliberately narrower than the teacher's writer.Filter interface
// (ID/Name/Apply/Remove/Encode): BigBed has exactly one compression
// toggle for the whole file, not a per-dataset filter pipeline, so there
// is no filter id/name to negotiate — only "does this file use
// compression or not".
type Codec interface {
	// Compress appends the encoded form of src to dst and returns the
	// result.
	Compress(dst, src []byte) ([]byte, error)

	// Decompress reads up to maxSize uncompressed bytes from src,
	// appending them to dst, and returns the result.
	Decompress(dst, src []byte, maxSize int) ([]byte, error)
}

// ZlibCodec compresses blocks with zlib-framed DEFLATE, matching the
// on-disk format real BigBed files use (not raw flate, not gzip).
type ZlibCodec struct {
	Level int
}

// NewZlibCodec returns a ZlibCodec at the given compression level,
// clamping invalid levels to the zlib default.
func NewZlibCodec(level int) *ZlibCodec {
	if level < zlib.HuffmanOnly || level > zlib.BestCompression {
		level = zlib.DefaultCompression
	}
	return &ZlibCodec{Level: level}
}

// Compress implements Codec.
func (c *ZlibCodec) Compress(dst, src []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	w, err := zlib.NewWriterLevel(buf, c.Level)
	if err != nil {
		return nil, fmt.Errorf("constructing zlib writer: %w", err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, utils.WrapError("compressing block", fmt.Errorf("%w: %v", utils.ErrIoError, err))
	}
	if err := w.Close(); err != nil {
		return nil, utils.WrapError("compressing block", fmt.Errorf("%w: %v", utils.ErrIoError, err))
	}
	return append(dst, buf.Bytes()...), nil
}

// Decompress implements Codec.
func (c *ZlibCodec) Decompress(dst, src []byte, maxSize int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, utils.WrapError("decompressing block", utils.ErrCorruptIndex)
	}
	defer r.Close()

	limited := io.LimitReader(r, int64(maxSize)+1)
	out, err := io.ReadAll(limited)
	if err != nil {
		return nil, utils.WrapError("decompressing block", fmt.Errorf("%w: %v", utils.ErrIoError, err))
	}
	if len(out) > maxSize {
		return nil, utils.WrapError("decompressing block", utils.ErrCorruptIndex)
	}
	return append(dst, out...), nil
}

// RawCodec copies bytes verbatim: the file-wide "uncompressed" mode.
type RawCodec struct{}

// Compress implements Codec.
func (RawCodec) Compress(dst, src []byte) ([]byte, error) {
	return append(dst, src...), nil
}

// Decompress implements Codec.
func (RawCodec) Decompress(dst, src []byte, maxSize int) ([]byte, error) {
	if len(src) > maxSize {
		return nil, utils.WrapError("reading raw block", utils.ErrCorruptIndex)
	}
	return append(dst, src...), nil
}
