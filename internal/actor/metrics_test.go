package actor

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/qakkaio/qakka/internal/metrics"
)

func TestDeadLetterIncrementsMessagesDeadLettered(t *testing.T) {
	m := metrics.New()
	a, s, _, _ := newTestActorWithMetrics(t, Config{RefreshBatch: 10, MaxRedeliveries: 0}, m)
	mid := uuid.New()
	send(t, s, mid, time.Now())
	a.Refresh()

	got := a.GetNext(1, "")
	if len(got) != 1 {
		t.Fatalf("GetNext(1) = %d, want 1", len(got))
	}
	if err := a.Nack(got[0].QueueMessageID); err != nil {
		t.Fatalf("Nack: %v", err)
	}

	if got := testutil.ToFloat64(m.MessagesDeadLettered.WithLabelValues("orders", "us-east")); got != 1 {
		t.Fatalf("MessagesDeadLettered = %v, want 1", got)
	}
}

func TestSweepIncrementsMessagesRedeliveredNotDeadLettered(t *testing.T) {
	m := metrics.New()
	a, s, _, _ := newTestActorWithMetrics(t, Config{RefreshBatch: 10, MaxRedeliveries: 3}, m)
	mid := uuid.New()
	send(t, s, mid, time.Now())
	a.Refresh()

	if got := a.GetNext(1, ""); len(got) != 1 {
		t.Fatalf("GetNext(1) = %d, want 1", len(got))
	}

	swept, err := a.SweepExpired(0)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}
	if got := testutil.ToFloat64(m.MessagesRedelivered.WithLabelValues("orders", "us-east")); got != 1 {
		t.Fatalf("MessagesRedelivered = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.MessagesDeadLettered.WithLabelValues("orders", "us-east")); got != 0 {
		t.Fatalf("MessagesDeadLettered = %v, want 0 (sweep stayed under maxRedeliveries)", got)
	}
}

func TestRefreshAndGetNextPublishBufferOccupancy(t *testing.T) {
	m := metrics.New()
	a, s, _, _ := newTestActorWithMetrics(t, Config{RefreshBatch: 10}, m)
	send(t, s, uuid.New(), time.Now())
	send(t, s, uuid.New(), time.Now())
	a.Refresh()

	if got := testutil.ToFloat64(m.BufferOccupancy.WithLabelValues("orders", "us-east")); got != 2 {
		t.Fatalf("BufferOccupancy after refresh = %v, want 2", got)
	}

	a.GetNext(1, "")
	if got := testutil.ToFloat64(m.BufferOccupancy.WithLabelValues("orders", "us-east")); got != 1 {
		t.Fatalf("BufferOccupancy after getNext = %v, want 1", got)
	}
}
