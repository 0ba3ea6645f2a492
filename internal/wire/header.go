package wire

import "encoding/binary"

// Header is the 10-byte frame every FastDFS message begins with.
type Header struct {
	Length int64 // body length, not including the header itself
	Cmd    byte
	Status byte
}

// EncodeHeader serializes length/cmd/status into a HeaderLen-byte frame.
func EncodeHeader(length int64, cmd, status byte) []byte {
	buf := make([]byte, HeaderLen)
	binary.BigEndian.PutUint64(buf[0:8], uint64(length))
	buf[8] = cmd
	buf[9] = status
	return buf
}

// DecodeHeader parses a HeaderLen-byte frame. data must be exactly HeaderLen
// bytes; callers read the frame with a fixed-size read before calling this.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderLen {
		return Header{}, ErrShortHeader
	}
	return Header{
		Length: int64(binary.BigEndian.Uint64(data[0:8])),
		Cmd:    data[8],
		Status: data[9],
	}, nil
}
