package timeid

import (
	"testing"
	"time"
)

func TestOrderingMonotonic(t *testing.T) {
	g := NewGenerator()
	Now = func() time.Time { return time.UnixMilli(1000) }
	defer func() { Now = func() time.Time { return time.Now() } }()

	a := g.Next()
	b := g.Next()
	if a.Compare(b) >= 0 {
		t.Fatalf("expected a<b")
	}
}

func TestOrderingAcrossMillis(t *testing.T) {
	g := NewGenerator()
	Now = func() time.Time { return time.UnixMilli(1000) }
	a := g.Next()
	Now = func() time.Time { return time.UnixMilli(1001) }
	defer func() { Now = func() time.Time { return time.Now() } }()
	b := g.Next()
	if a.Compare(b) >= 0 {
		t.Fatalf("expected a<b across millisecond boundary")
	}
}

func TestFromTimeSortsBeforeSameMillisecondID(t *testing.T) {
	g := NewGenerator()
	Now = func() time.Time { return time.UnixMilli(5000) }
	defer func() { Now = func() time.Time { return time.Now() } }()

	pivot := FromTime(time.UnixMilli(5000))
	minted := g.Next()
	if pivot.Compare(minted) > 0 {
		t.Fatalf("expected pivot <= any ID minted at the same millisecond")
	}
}

func TestFromTimeOrdersWithTimestamp(t *testing.T) {
	early := FromTime(time.UnixMilli(1000))
	late := FromTime(time.UnixMilli(2000))
	if early.Compare(late) >= 0 {
		t.Fatalf("expected early pivot < late pivot")
	}
}

func TestToTimeRoundTrips(t *testing.T) {
	want := time.UnixMilli(123456789)
	id := FromTime(want)
	got := ToTime(id)
	if !got.Equal(want) {
		t.Fatalf("ToTime(FromTime(t)) = %v, want %v", got, want)
	}
}
