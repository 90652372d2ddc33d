package message

import (
	"encoding/binary"
	"fmt"
)

// rowSize is the fixed width of an encoded Row: messageId(16) + timestampMs(8) + nReturned(4).
const rowSize = 16 + 8 + 4

// EncodeRow serializes a Row to its fixed-width on-disk form.
func EncodeRow(r Row) []byte {
	buf := make([]byte, rowSize)
	copy(buf[0:16], r.MessageID[:])
	binary.BigEndian.PutUint64(buf[16:24], uint64(r.TimestampMs))
	binary.BigEndian.PutUint32(buf[24:28], r.NReturned)
	return buf
}

// DecodeRow deserializes a Row from its fixed-width on-disk form.
func DecodeRow(b []byte) (Row, error) {
	if len(b) != rowSize {
		return Row{}, fmt.Errorf("message: row must be %d bytes, got %d", rowSize, len(b))
	}
	var r Row
	copy(r.MessageID[:], b[0:16])
	r.TimestampMs = int64(binary.BigEndian.Uint64(b[16:24]))
	r.NReturned = binary.BigEndian.Uint32(b[24:28])
	return r, nil
}
