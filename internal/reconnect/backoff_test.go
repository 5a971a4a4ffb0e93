package reconnect

import (
	"testing"
	"time"
)

func TestBackoffSequence(t *testing.T) {
	b := newBackoff(1000*time.Millisecond, 5000*time.Millisecond)

	interval := time.Duration(0)
	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		3000 * time.Millisecond,
		4000 * time.Millisecond,
		5000 * time.Millisecond,
		5000 * time.Millisecond, // capped
	}
	for i, w := range want {
		interval = b.next(interval)
		if interval != w {
			t.Fatalf("step %d: interval = %v, want %v", i, interval, w)
		}
	}
}

func TestBackoffZeroIncrease(t *testing.T) {
	b := newBackoff(0, time.Second)
	if got := b.next(0); got != 0 {
		t.Fatalf("next(0) = %v, want 0", got)
	}
}

func TestBackoffNoCap(t *testing.T) {
	b := newBackoff(time.Second, 0)
	interval := time.Duration(0)
	for i := 0; i < 5; i++ {
		interval = b.next(interval)
	}
	if interval != 5*time.Second {
		t.Fatalf("interval = %v, want 5s", interval)
	}
}
