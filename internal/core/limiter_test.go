package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// ============================================================================
// Acquire / Release Tests
// ============================================================================

func TestLimiter_SlotAccounting(t *testing.T) {
	l := NewLimiter(2, time.Second)

	steps := []struct {
		name          string
		op            func()
		wantActive    int
		wantAvailable int
	}{
		{"initial", func() {}, 0, 2},
		{"acquire", func() { mustAcquire(t, l) }, 1, 1},
		{"try acquire", func() {
			if !l.TryAcquire() {
				t.Fatal("TryAcquire() = false with a free slot")
			}
		}, 2, 0},
		{"try acquire when full", func() {
			if l.TryAcquire() {
				t.Fatal("TryAcquire() = true with no free slot")
			}
		}, 2, 0},
		{"release", l.Release, 1, 1},
		{"release again", l.Release, 0, 2},
	}

	for _, st := range steps {
		st.op()
		if got := l.ActiveCount(); got != st.wantActive {
			t.Errorf("%s: ActiveCount() = %d, want %d", st.name, got, st.wantActive)
		}
		if got := l.Available(); got != st.wantAvailable {
			t.Errorf("%s: Available() = %d, want %d", st.name, got, st.wantAvailable)
		}
	}
}

func TestLimiter_AcquireFailures(t *testing.T) {
	tests := []struct {
		name    string
		maxWait time.Duration
		ctx     func() (context.Context, context.CancelFunc)
		wantErr error
	}{
		{
			name:    "wait time runs out",
			maxWait: 50 * time.Millisecond,
			ctx:     func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) },
			wantErr: ErrTooManyRequests,
		},
		{
			name:    "caller deadline first",
			maxWait: 5 * time.Second,
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 50*time.Millisecond)
			},
			wantErr: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLimiter(1, tt.maxWait)
			mustAcquire(t, l)
			defer l.Release()

			ctx, cancel := tt.ctx()
			defer cancel()

			err := l.Acquire(ctx)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Acquire() error = %v, want %v", err, tt.wantErr)
			}
			if got := l.ActiveCount(); got != 1 {
				t.Errorf("failed Acquire changed ActiveCount to %d", got)
			}
		})
	}
}

func TestLimiter_AcquireCanceledWithFreeSlot(t *testing.T) {
	l := NewLimiter(2, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Acquire() error = %v, want context.Canceled", err)
	}
	if got := l.Status(); got.Active != 0 || got.Available != 2 {
		t.Errorf("Status() = %+v, want no slot taken", got)
	}
}

func TestLimiter_CancelWhileWaiting(t *testing.T) {
	l := NewLimiter(1, 5*time.Second)
	mustAcquire(t, l)
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Acquire(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Acquire() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return after cancellation")
	}
}

func TestLimiter_NeverExceedsSlots(t *testing.T) {
	const slots = 3
	l := NewLimiter(slots, time.Second)

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			defer l.Release()

			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
		}()
	}
	wg.Wait()

	if p := peak.Load(); p > slots {
		t.Errorf("peak concurrency %d exceeds %d slots", p, slots)
	}
	if got := l.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount() = %d after all released", got)
	}
}

// ============================================================================
// Drain / Status Tests
// ============================================================================

func TestLimiter_WaitForDrain(t *testing.T) {
	l := NewLimiter(2, time.Second)
	mustAcquire(t, l)
	mustAcquire(t, l)

	done := make(chan error, 1)
	go func() { done <- l.WaitForDrain(context.Background()) }()

	l.Release()
	select {
	case <-done:
		t.Fatal("WaitForDrain returned with a transform still active")
	case <-time.After(30 * time.Millisecond):
	}

	l.Release()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitForDrain() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForDrain did not return after the last release")
	}
}

func TestLimiter_WaitForDrainTimeout(t *testing.T) {
	l := NewLimiter(1, time.Second)
	mustAcquire(t, l)
	defer l.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForDrain() error = %v, want DeadlineExceeded", err)
	}
}

func TestLimiter_WaitForDrainIdle(t *testing.T) {
	if err := NewLimiter(1, time.Second).WaitForDrain(context.Background()); err != nil {
		t.Errorf("idle WaitForDrain() error = %v", err)
	}
}

func TestLimiter_Status(t *testing.T) {
	l := NewLimiter(3, time.Second)
	mustAcquire(t, l)
	defer l.Release()

	want := LimiterStatus{Active: 1, Available: 2, MaxConcurrent: 3}
	if got := l.Status(); got != want {
		t.Errorf("Status() = %+v, want %+v", got, want)
	}

	if got := NewLimiter(0, 0).MaxConcurrent(); got != DefaultMaxConcurrent {
		t.Errorf("default MaxConcurrent() = %d, want %d", got, DefaultMaxConcurrent)
	}
}

func mustAcquire(t *testing.T, l *Limiter) {
	t.Helper()
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
}
