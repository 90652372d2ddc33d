package deadletter

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// entryHeaderSize is recordedAtMs(8) + nReturned(4), kept out front so List
// can be extended to filter on either without decoding the reason string.
const entryHeaderSize = 8 + 4

// encodeEntry frames a dead-letter record the same way internal/message
// frames a body: fixed header | messageId(16) | reason | crc32c(...), rather
// than the generic varint-length header the teacher's eventlog used for an
// arbitrary byte blob.
func encodeEntry(e Entry) []byte {
	reason := []byte(e.Reason)
	out := make([]byte, 0, entryHeaderSize+16+len(reason)+4)

	var hdr [entryHeaderSize]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(e.RecordedAtMs))
	binary.BigEndian.PutUint32(hdr[8:12], e.NReturned)
	out = append(out, hdr[:]...)
	out = append(out, e.MessageID[:]...)
	out = append(out, reason...)

	crc := crc32.Checksum(out, castagnoli)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	return append(out, crcb[:]...)
}

// decodeEntry reverses encodeEntry, verifying the checksum. Queue, Region
// and Seq are filled in by the caller since they come from the key, not the
// value.
func decodeEntry(raw []byte) (Entry, error) {
	const minLen = entryHeaderSize + 16 + 4
	if len(raw) < minLen {
		return Entry{}, fmt.Errorf("deadletter: entry record too short (%d bytes)", len(raw))
	}
	body := raw[:len(raw)-4]
	want := binary.BigEndian.Uint32(raw[len(raw)-4:])
	if crc32.Checksum(body, castagnoli) != want {
		return Entry{}, fmt.Errorf("deadletter: entry checksum mismatch")
	}

	var e Entry
	e.RecordedAtMs = int64(binary.BigEndian.Uint64(body[0:8]))
	e.NReturned = binary.BigEndian.Uint32(body[8:12])
	copy(e.MessageID[:], body[entryHeaderSize:entryHeaderSize+16])
	e.Reason = string(body[entryHeaderSize+16:])
	return e, nil
}
