package quota

import (
	"testing"
	"time"
)

func TestUsageKey(t *testing.T) {
	march := time.Date(2026, time.March, 5, 14, 30, 0, 0, time.UTC)
	if got, want := usageKey(42, "social_posts", march), "usage:42:social_posts:2026:03"; got != want {
		t.Fatalf("usageKey = %q, want %q", got, want)
	}

	// Keys rotate at the month boundary, nowhere else.
	april := march.AddDate(0, 1, 0)
	if usageKey(42, "social_posts", march) == usageKey(42, "social_posts", april) {
		t.Fatal("adjacent months must map to distinct keys")
	}
	sameMonth := march.AddDate(0, 0, 20)
	if usageKey(42, "social_posts", march) != usageKey(42, "social_posts", sameMonth) {
		t.Fatal("days within one month must share a key")
	}
}

func TestUntilMonthEnd(t *testing.T) {
	now := time.Date(2026, time.March, 30, 12, 0, 0, 0, time.UTC)
	got := untilMonthEnd(now)
	if want := 36 * time.Hour; got != want {
		t.Fatalf("untilMonthEnd = %s, want %s", got, want)
	}
	if untilMonthEnd(time.Now()) <= 0 {
		t.Fatal("expiry must always be in the future")
	}
}
