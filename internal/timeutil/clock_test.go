package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	d := clock.Since(past)

	if d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestMockClock_NowAndSet(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(base)

	if got := clock.Now(); !got.Equal(base) {
		t.Errorf("Now() = %v, expected %v", got, base)
	}

	later := base.Add(time.Hour)
	clock.Set(later)
	if got := clock.Now(); !got.Equal(later) {
		t.Errorf("Now() after Set = %v, expected %v", got, later)
	}
}

func TestMockClock_Advance(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(base)

	clock.Advance(90 * time.Second)
	want := base.Add(90 * time.Second)
	if got := clock.Now(); !got.Equal(want) {
		t.Errorf("Now() after Advance = %v, expected %v", got, want)
	}
}

func TestMockClock_Since(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(base)
	clock.Advance(5 * time.Minute)

	if got := clock.Since(base); got != 5*time.Minute {
		t.Errorf("Since() = %v, expected 5m", got)
	}
}
