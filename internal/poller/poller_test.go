package poller

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(time.Millisecond, func(ctx context.Context) (time.Duration, error) {
		return 0, nil
	}, nil)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_TickErrorIsFatal(t *testing.T) {
	boom := errors.New("boom")
	p := New(time.Millisecond, func(ctx context.Context) (time.Duration, error) {
		return 0, boom
	}, nil)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Errorf("Run() = %v, want %v", err, boom)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after tick error")
	}
}

func TestRun_TicksAreSequential(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inTick := false
	ticks := 0
	p := New(time.Millisecond, func(ctx context.Context) (time.Duration, error) {
		if inTick {
			t.Error("tick re-entered")
		}
		inTick = true
		defer func() { inTick = false }()
		ticks++
		if ticks >= 5 {
			cancel()
		}
		return 0, nil
	}, nil)

	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
	if ticks < 5 {
		t.Errorf("ticks = %d, want >= 5", ticks)
	}
}

func TestRun_PeriodChangeReschedules(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stamps []time.Time
	p := New(5*time.Millisecond, func(ctx context.Context) (time.Duration, error) {
		stamps = append(stamps, time.Now())
		if len(stamps) >= 3 {
			cancel()
			return 0, nil
		}
		// Stretch the cadence after the first tick.
		return 50 * time.Millisecond, nil
	}, nil)

	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
	if len(stamps) < 3 {
		t.Fatalf("got %d ticks, want 3", len(stamps))
	}
	if gap := stamps[2].Sub(stamps[1]); gap < 25*time.Millisecond {
		t.Errorf("gap after period change = %v, want >= 25ms", gap)
	}
}
