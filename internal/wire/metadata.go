package wire

import "bytes"

// EncodeMetadata serializes a metadata map into the wire form
// key1<FieldSeparator>value1<RecordSeparator>key2<FieldSeparator>value2<RecordSeparator>...
// Keys and values over the protocol's length limits are truncated.
func EncodeMetadata(metadata map[string]string) []byte {
	if len(metadata) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for key, value := range metadata {
		if len(key) > MaxMetaNameLen {
			key = key[:MaxMetaNameLen]
		}
		if len(value) > MaxMetaValueLen {
			value = value[:MaxMetaValueLen]
		}
		buf.WriteString(key)
		buf.WriteByte(FieldSeparator)
		buf.WriteString(value)
		buf.WriteByte(RecordSeparator)
	}
	return buf.Bytes()
}

// DecodeMetadata is the inverse of EncodeMetadata. Records that don't split
// into exactly one key and one value are skipped rather than rejected,
// matching the storage server's own tolerance for trailing separators.
func DecodeMetadata(data []byte) map[string]string {
	metadata := make(map[string]string)
	if len(data) == 0 {
		return metadata
	}

	for _, record := range bytes.Split(data, []byte{RecordSeparator}) {
		if len(record) == 0 {
			continue
		}
		fields := bytes.Split(record, []byte{FieldSeparator})
		if len(fields) != 2 {
			continue
		}
		metadata[string(fields[0])] = string(fields[1])
	}
	return metadata
}
