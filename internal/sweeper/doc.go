// Package sweeper implements §4.4's lease-expiry sweep: a ticking
// background loop that asks each registered queue actor to requeue or
// dead-letter its own INFLIGHT rows whose lease has expired.
//
// Grounded on the teacher's internal/workqueue/autoclaim.go
// ConsumerSweeper: a ticker plus a registry of scan targets, generalized
// so the actual row transition happens inside the owning actor's mailbox
// (Actor.SweepExpired) rather than by the sweeper writing to storage
// directly — keeping every DEFAULT/INFLIGHT mutation on a single writer
// per (queue, region).
package sweeper
