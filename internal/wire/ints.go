package wire

import "encoding/binary"

// EncodeInt64 big-endian encodes n into 8 bytes, the width the protocol uses
// for lengths, offsets, and file sizes.
func EncodeInt64(n int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

// DecodeInt64 is the inverse of EncodeInt64. data shorter than 8 bytes yields 0.
func DecodeInt64(data []byte) int64 {
	if len(data) < 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(data))
}

// EncodeInt32 big-endian encodes n into 4 bytes, the width used for CRC32 fields.
func EncodeInt32(n int32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(n))
	return buf
}

// DecodeInt32 is the inverse of EncodeInt32. data shorter than 4 bytes yields 0.
func DecodeInt32(data []byte) int32 {
	if len(data) < 4 {
		return 0
	}
	return int32(binary.BigEndian.Uint32(data))
}
