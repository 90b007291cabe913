package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend failed")

func failN(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		_ = b.Call(context.Background(), func(context.Context) error { return errBackend })
	}
}

func TestBreakerStartsClosed(t *testing.T) {
	b := NewBreaker(BreakerOpts{})
	if b.State() != StateClosed {
		t.Fatalf("expected closed, got %v", b.State())
	}
	if b.opts.FailThreshold != DefaultBreakerOpts.FailThreshold || b.opts.Cooldown != DefaultBreakerOpts.Cooldown {
		t.Fatalf("defaults not applied: %+v", b.opts)
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Cooldown: time.Minute})
	failN(b, 3)
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %v", b.State())
	}
	called := false
	err := b.Call(context.Background(), func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("open breaker should reject without calling: err=%v called=%v", err, called)
	}
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Cooldown: time.Minute})
	failN(b, 2)
	_ = b.Call(context.Background(), func(context.Context) error { return nil })
	failN(b, 2)
	if b.State() != StateClosed {
		t.Fatalf("expected closed, got %v", b.State())
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	now := time.Now()
	var transitions []string
	b := NewBreaker(BreakerOpts{
		FailThreshold: 1,
		Cooldown:      10 * time.Second,
		OnStateChange: func(from, to State) { transitions = append(transitions, from.String()+">"+to.String()) },
	})
	b.now = func() time.Time { return now }

	failN(b, 1)
	now = now.Add(11 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %v", b.State())
	}

	// A failed probe reopens immediately.
	failN(b, 1)
	if b.State() != StateOpen {
		t.Fatalf("expected open after failed probe, got %v", b.State())
	}

	now = now.Add(11 * time.Second)
	if err := b.Call(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %v", b.State())
	}
	if len(transitions) == 0 || transitions[0] != "closed>open" || transitions[len(transitions)-1] != "half-open>closed" {
		t.Fatalf("transitions = %v", transitions)
	}
}

func TestBreakerIgnoresCallerCancellation(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Cooldown: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Call(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
	if b.State() != StateClosed {
		t.Fatal("caller cancellation must not open the breaker")
	}
}

func TestStateString(t *testing.T) {
	if StateHalfOpen.String() != "half-open" || State(9).String() != "unknown" {
		t.Fatal("State.String")
	}
}
