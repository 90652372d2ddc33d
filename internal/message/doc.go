// Package message defines Qakka's message-row and body wire formats: the
// two fixed-width records that back the messages_available and
// messages_inflight tables (§3, §6 of spec.md), and the CRC-framed body
// record that backs message_bodies.
//
// Row encoding is a plain fixed-width binary layout rather than JSON,
// since rows are read and written on the dequeue/ack hot path; body
// encoding reuses the teacher's header|payload|crc32c framing, since a
// body is an opaque blob plus a short content-type header, the same shape
// the teacher's workqueue message records have.
package message
