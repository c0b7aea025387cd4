package backoff

import (
	"testing"
	"time"
)

func TestNextDelaySchedule(t *testing.T) {
	p := Policy{Base: time.Minute, Cap: time.Hour}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 1 * time.Minute},
		{attempt: 1, want: 2 * time.Minute},
		{attempt: 2, want: 4 * time.Minute},
		{attempt: 3, want: 8 * time.Minute},
		{attempt: 4, want: 16 * time.Minute},
		{attempt: 5, want: 32 * time.Minute},
		{attempt: 6, want: time.Hour},
		{attempt: 7, want: time.Hour},
		{attempt: 100, want: time.Hour},
		{attempt: -1, want: 1 * time.Minute},
	}

	for _, tt := range tests {
		if got := p.NextDelay(tt.attempt); got != tt.want {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestNextDelayMonotonicAndCapped(t *testing.T) {
	p := Default()
	prev := time.Duration(0)
	for a := 0; a < 200; a++ {
		d := p.NextDelay(a)
		if d < prev {
			t.Errorf("NextDelay(%d) = %v, less than NextDelay(%d) = %v", a, d, a-1, prev)
		}
		if d > p.Cap {
			t.Errorf("NextDelay(%d) = %v exceeds cap %v", a, d, p.Cap)
		}
		prev = d
	}
}

func TestNextDelayOverflowHoldsAtCap(t *testing.T) {
	p := Policy{Base: time.Hour, Cap: 100000 * time.Hour}
	// Doubling an hour 62 times overflows int64; the result must clamp to
	// the cap rather than go negative.
	if got := p.NextDelay(64); got != p.Cap {
		t.Errorf("NextDelay(64) = %v, want cap %v", got, p.Cap)
	}
}

func TestNextDelayJitterBounds(t *testing.T) {
	p := Policy{Base: time.Minute, Cap: time.Hour, JitterPct: 0.25}
	for i := 0; i < 100; i++ {
		d := p.NextDelay(2) // 4m nominal
		lo := time.Duration(float64(4*time.Minute) * 0.75)
		hi := time.Duration(float64(4*time.Minute) * 1.25)
		if d < lo || d > hi {
			t.Fatalf("jittered NextDelay(2) = %v outside [%v, %v]", d, lo, hi)
		}
	}
}
