package message

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Body is the payload stored once per messageId: an opaque blob plus a
// content-type string, per §3's DatabaseQueueMessageBody and §9's note
// that higher-level object mapping is outside the core.
type Body struct {
	Blob        []byte
	ContentType string
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// EncodeBody frames a Body as contentTypeLen(4B BE) | contentType |
// blob | crc32c(contentType|blob), the same header|payload|crc framing the
// teacher uses for its own message records.
func EncodeBody(b Body) []byte {
	ct := []byte(b.ContentType)
	out := make([]byte, 0, 4+len(ct)+len(b.Blob)+4)

	var lb [4]byte
	binary.BigEndian.PutUint32(lb[:], uint32(len(ct)))
	out = append(out, lb[:]...)
	out = append(out, ct...)
	out = append(out, b.Blob...)

	crc := crc32.Update(0, castagnoli, ct)
	crc = crc32.Update(crc, castagnoli, b.Blob)
	var cb [4]byte
	binary.BigEndian.PutUint32(cb[:], crc)
	return append(out, cb[:]...)
}

// DecodeBody reverses EncodeBody, verifying the checksum.
func DecodeBody(raw []byte) (Body, error) {
	if len(raw) < 8 {
		return Body{}, fmt.Errorf("message: body record too short (%d bytes)", len(raw))
	}
	ctLen := binary.BigEndian.Uint32(raw[:4])
	if int(4+ctLen+4) > len(raw) {
		return Body{}, fmt.Errorf("message: body record truncated")
	}
	ctEnd := 4 + int(ctLen)
	ct := raw[4:ctEnd]
	blob := raw[ctEnd : len(raw)-4]
	want := binary.BigEndian.Uint32(raw[len(raw)-4:])

	crc := crc32.Update(0, castagnoli, ct)
	crc = crc32.Update(crc, castagnoli, blob)
	if crc != want {
		return Body{}, fmt.Errorf("message: body record checksum mismatch")
	}
	return Body{
		ContentType: string(ct),
		Blob:        append([]byte(nil), blob...),
	}, nil
}
