package watcher

import (
	"context"
	"testing"
	"time"
)

func TestPolicyNormalizeClampsFields(t *testing.T) {
	p := Policy{MaxRetries: 5, Min: -time.Second, Max: 0, Factor: 0.5}.Normalize()
	if p.Min != defaultBackoffMin {
		t.Fatalf("expected min clamped to default, got %v", p.Min)
	}
	if p.Max != defaultBackoffMax {
		t.Fatalf("expected max clamped to default, got %v", p.Max)
	}
	if p.Factor != defaultBackoffFactor {
		t.Fatalf("expected factor clamped to default, got %v", p.Factor)
	}

	p = Policy{Min: 10 * time.Second, Max: time.Second, Factor: 2}.Normalize()
	if p.Max != p.Min {
		t.Fatalf("expected max raised to min, got min=%v max=%v", p.Min, p.Max)
	}
}

func TestPolicyAllow(t *testing.T) {
	p := Policy{MaxRetries: 2}
	if !p.Allow(0) || !p.Allow(1) {
		t.Fatalf("expected restarts below the limit to be allowed")
	}
	if p.Allow(2) {
		t.Fatalf("expected restarts at the limit to be denied")
	}

	unbounded := Policy{MaxRetries: -1}
	if !unbounded.Allow(1000) {
		t.Fatalf("expected negative max retries to allow indefinitely")
	}

	disabled := Policy{MaxRetries: 0}
	if disabled.Allow(0) {
		t.Fatalf("expected zero max retries to disable restarts")
	}
}

func TestPolicyNextGrowsAndClamps(t *testing.T) {
	p := DefaultPolicy()
	base := p.Min
	prev := base
	for i := 0; i < 10; i++ {
		next := p.Next(prev)
		if next < prev && prev != p.Max {
			t.Fatalf("expected monotonic growth, got %v after %v", next, prev)
		}
		if next > p.Max {
			t.Fatalf("expected next bounded by max, got %v", next)
		}
		prev = next
	}
	if prev != p.Max {
		t.Fatalf("expected backoff to saturate at max, got %v", prev)
	}
}

func TestJitterStaysInRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := Jitter(time.Second)
		if d < 0 || d > time.Second {
			t.Fatalf("jitter out of range: %v", d)
		}
	}
	if Jitter(0) != 0 {
		t.Fatalf("expected zero jitter for zero duration")
	}
}

func TestSleepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepWithContext(ctx, time.Hour); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := sleepWithContext(context.Background(), 0); err != nil {
		t.Fatalf("expected zero sleep to return immediately, got %v", err)
	}
}
