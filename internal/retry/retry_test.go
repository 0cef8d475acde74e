package retry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fastPolicy keeps test backoffs short.
func fastPolicy(retries int) Policy {
	return Policy{
		MaxRetries:     retries,
		Timeout:        time.Second,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

var errFlaky = errors.New("flaky")

func TestDo(t *testing.T) {
	t.Parallel()

	t.Run("succeeds on first attempt", func(t *testing.T) {
		t.Parallel()
		attempts, err := Do(context.Background(), fastPolicy(2), func(context.Context) error { return nil }, nil)
		if err != nil || attempts != 1 {
			t.Errorf("expected 1 attempt and nil error, got %d %v", attempts, err)
		}
	})

	t.Run("times out twice then succeeds on the third attempt", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		p := fastPolicy(3)
		p.Timeout = 20 * time.Millisecond

		var observed []Attempt
		attempts, err := Do(context.Background(), p, func(ctx context.Context) error {
			if calls.Add(1) <= 2 {
				<-ctx.Done()
				return ctx.Err()
			}
			return nil
		}, func(a Attempt) { observed = append(observed, a) })

		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", attempts)
		}
		if len(observed) != 2 {
			t.Fatalf("expected 2 observed failures, got %d", len(observed))
		}
		for _, a := range observed {
			if !errors.Is(a.Err, ErrAttemptTimeout) || a.Final || a.MaxAttempts != 4 {
				t.Errorf("unexpected attempt: %+v", a)
			}
		}
	})

	t.Run("abandons an attempt that ignores its context", func(t *testing.T) {
		t.Parallel()
		p := fastPolicy(0)
		p.Timeout = 10 * time.Millisecond
		release := make(chan struct{})
		defer close(release)

		start := time.Now()
		attempts, err := Do(context.Background(), p, func(context.Context) error {
			<-release
			return nil
		}, nil)
		if !errors.Is(err, ErrAttemptTimeout) || !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected timeout, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", attempts)
		}
		if time.Since(start) > time.Second {
			t.Error("hard timeout was not enforced")
		}
	})

	t.Run("exhausts retries and reports the last error", func(t *testing.T) {
		t.Parallel()
		var observed []Attempt
		attempts, err := Do(context.Background(), fastPolicy(2), func(context.Context) error {
			return errFlaky
		}, func(a Attempt) { observed = append(observed, a) })

		if !errors.Is(err, errFlaky) {
			t.Errorf("expected errFlaky, got %v", err)
		}
		if attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", attempts)
		}
		if len(observed) != 3 || !observed[2].Final || observed[0].Final {
			t.Errorf("unexpected observations: %+v", observed)
		}
	})

	t.Run("stops on permanent errors", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		attempts, err := Do(context.Background(), fastPolicy(5), func(context.Context) error {
			calls.Add(1)
			return Permanent(errFlaky)
		}, nil)
		if !errors.Is(err, errFlaky) || !IsPermanent(err) {
			t.Errorf("expected permanent errFlaky, got %v", err)
		}
		if attempts != 1 || calls.Load() != 1 {
			t.Errorf("expected a single attempt, got %d", attempts)
		}
	})

	t.Run("cancelled context prevents the first attempt", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		attempts, err := Do(ctx, fastPolicy(2), func(context.Context) error {
			t.Error("fn must not be called")
			return nil
		}, nil)
		if !errors.Is(err, context.Canceled) || attempts != 0 {
			t.Errorf("expected 0 attempts and context.Canceled, got %d %v", attempts, err)
		}
	})

	t.Run("cancellation interrupts backoff", func(t *testing.T) {
		t.Parallel()
		p := fastPolicy(3)
		p.InitialBackoff = time.Hour
		p.MaxBackoff = time.Hour

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		attempts, err := Do(ctx, p, func(context.Context) error { return errFlaky }, nil)
		if !errors.Is(err, errFlaky) || attempts != 1 {
			t.Errorf("expected 1 attempt with errFlaky, got %d %v", attempts, err)
		}
	})

	t.Run("in-flight attempt survives cancellation", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		attempts, err := Do(ctx, fastPolicy(2), func(attemptCtx context.Context) error {
			cancel()
			time.Sleep(5 * time.Millisecond)
			return attemptCtx.Err()
		}, nil)
		if err != nil || attempts != 1 {
			t.Errorf("expected the attempt to complete, got %d %v", attempts, err)
		}
	})
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	p := Policy{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, Multiplier: 2}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := p.Backoff(i + 1); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestMaxAttempts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		retries int
		want    int
	}{
		{0, 1}, {2, 3}, {-1, 1},
	}
	for _, tt := range tests {
		if got := (Policy{MaxRetries: tt.retries}).MaxAttempts(); got != tt.want {
			t.Errorf("MaxAttempts(%d) = %d, want %d", tt.retries, got, tt.want)
		}
	}
}

func TestPermanentNil(t *testing.T) {
	t.Parallel()
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) must be nil")
	}
}
