package utils

import (
	"encoding/binary"
	"math"
)

// ReaderAt is a simplified interface for io.ReaderAt, kept local so this
// package does not need to import io just for the one method it uses.
type ReaderAt interface {
	ReadAt(p []byte, off int64) (n int, err error)
}

// WriterAt is a simplified interface for io.WriterAt.
type WriterAt interface {
	WriteAt(p []byte, off int64) (n int, err error)
}

// Every BigBed integer on disk is little-endian; unlike the teacher's HDF5
// format there is no per-file endianness flag to honor, so these helpers
// hardcode binary.LittleEndian rather than taking an order argument.

// ReadUint32 reads a 32-bit little-endian value at the given offset.
func ReadUint32(r ReaderAt, offset int64) (uint32, error) {
	buf := GetBuffer(4)
	defer ReleaseBuffer(buf)

	if _, err := r.ReadAt(buf, offset); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// ReadUint64 reads a 64-bit little-endian value at the given offset.
func ReadUint64(r ReaderAt, offset int64) (uint64, error) {
	buf := GetBuffer(8)
	defer ReleaseBuffer(buf)

	if _, err := r.ReadAt(buf, offset); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// ReadFloat64 reads an IEEE-754 little-endian double at the given offset.
func ReadFloat64(r ReaderAt, offset int64) (float64, error) {
	bits, err := ReadUint64(r, offset)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// PutUint16 appends a 16-bit little-endian value to dst.
func PutUint16(dst []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(dst, b[:]...)
}

// PutUint32 appends a 32-bit little-endian value to dst.
func PutUint32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

// PutUint64 appends a 64-bit little-endian value to dst.
func PutUint64(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// PutFloat64 appends an IEEE-754 little-endian double to dst.
func PutFloat64(dst []byte, v float64) []byte {
	return PutUint64(dst, math.Float64bits(v))
}
