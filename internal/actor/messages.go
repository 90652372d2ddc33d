package actor

import (
	"github.com/qakkaio/qakka/internal/message"
	"github.com/qakkaio/qakka/pkg/timeid"
)

type refreshMsg struct{}

type getNextMsg struct {
	n          int
	consumerID string
	reply      chan<- []message.Descriptor
}

type ackMsg struct {
	queueMessageID timeid.ID
	reply          chan<- error
}

type nackMsg struct {
	queueMessageID timeid.ID
	reply          chan<- error
}

type shardCheckMsg struct{}

type sweepMsg struct {
	leaseMs int64
	reply   chan<- sweepResult
}

type sweepResult struct {
	swept int
	err   error
}
