package message

import (
	"testing"

	"github.com/google/uuid"
)

func TestRowRoundTrip(t *testing.T) {
	r := Row{MessageID: uuid.New(), TimestampMs: 1700000000123, NReturned: 2}
	decoded, err := DecodeRow(EncodeRow(r))
	if err != nil {
		t.Fatalf("DecodeRow: %v", err)
	}
	if decoded != r {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, r)
	}
}

func TestDecodeRowRejectsWrongSize(t *testing.T) {
	if _, err := DecodeRow([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for short row")
	}
}

func TestBodyRoundTrip(t *testing.T) {
	b := Body{Blob: []byte("my test data"), ContentType: "text/plain"}
	decoded, err := DecodeBody(EncodeBody(b))
	if err != nil {
		t.Fatalf("DecodeBody: %v", err)
	}
	if string(decoded.Blob) != string(b.Blob) || decoded.ContentType != b.ContentType {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, b)
	}
}

func TestDecodeBodyDetectsCorruption(t *testing.T) {
	raw := EncodeBody(Body{Blob: []byte("data"), ContentType: "text/plain"})
	raw[len(raw)-1] ^= 0xFF
	if _, err := DecodeBody(raw); err == nil {
		t.Fatalf("expected checksum error")
	}
}
