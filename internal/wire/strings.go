package wire

import (
	"bytes"
	"path/filepath"
)

// PadString right-pads (or truncates) s to a fixed-width NUL-padded field.
func PadString(s string, length int) []byte {
	buf := make([]byte, length)
	copy(buf, s)
	return buf
}

// UnpadString trims trailing NUL bytes from a fixed-width field.
func UnpadString(data []byte) string {
	return string(bytes.TrimRight(data, "\x00"))
}

// FileExtName extracts a filename's extension, without the dot, truncated to
// FileExtNameMaxLen characters as the protocol's ext field requires.
func FileExtName(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 && ext[0] == '.' {
		ext = ext[1:]
	}
	if len(ext) > FileExtNameMaxLen {
		ext = ext[:FileExtNameMaxLen]
	}
	return ext
}
