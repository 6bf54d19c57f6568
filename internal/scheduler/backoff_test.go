package scheduler

import (
	"testing"
	"time"
)

func TestRetryDelayBounds(t *testing.T) {
	cases := []struct {
		attempt  int
		min, max time.Duration
	}{
		{1, 2 * time.Minute, 2*time.Minute + 30*time.Second},
		{2, 4 * time.Minute, 5 * time.Minute},
		{3, 8 * time.Minute, 10 * time.Minute},
		{5, 32 * time.Minute, 40 * time.Minute},
		// Past the ceiling the delay pins to MaxRetryDelay exactly.
		{6, time.Hour, time.Hour},
	}

	for _, tc := range cases {
		// Jitter makes the delay random inside its band; sample a few times.
		for i := 0; i < 50; i++ {
			got := retryDelay(tc.attempt)
			if got < tc.min || got > tc.max {
				t.Fatalf("retryDelay(%d) = %s, want within [%s, %s]", tc.attempt, got, tc.min, tc.max)
			}
		}
	}
}

func TestRetryDelayCap(t *testing.T) {
	for _, attempt := range []int{7, 10, 30, 63, 64, 100} {
		for i := 0; i < 20; i++ {
			if got := retryDelay(attempt); got > MaxRetryDelay {
				t.Fatalf("retryDelay(%d) = %s exceeds the %s ceiling", attempt, got, MaxRetryDelay)
			}
		}
	}
}
