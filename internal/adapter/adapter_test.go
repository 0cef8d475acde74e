package adapter

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/nao1215/a11yscan/internal/model"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, string, time.Duration) (*Output, error) { return &Output{}, nil }
	axe := NewFunc("axe", noop)
	pa11y := NewFunc("pa11y", noop)

	t.Run("keeps registration order", func(t *testing.T) {
		t.Parallel()
		r, err := NewRegistry(axe, pa11y)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(r.Names(), []string{"axe", "pa11y"}) {
			t.Errorf("unexpected names %v", r.Names())
		}
		if a, ok := r.Get("pa11y"); !ok || a.Name() != "pa11y" {
			t.Error("expected to find pa11y")
		}
	})

	t.Run("enabled keeps requested order", func(t *testing.T) {
		t.Parallel()
		r, err := NewRegistry(axe, pa11y)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		enabled, err := r.Enabled([]string{"pa11y", "axe"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if enabled[0].Name() != "pa11y" || enabled[1].Name() != "axe" {
			t.Errorf("unexpected order: %s, %s", enabled[0].Name(), enabled[1].Name())
		}
	})

	t.Run("unknown adapter", func(t *testing.T) {
		t.Parallel()
		r, err := NewRegistry(axe)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := r.Enabled([]string{"wave"}); !errors.Is(err, ErrUnknownAdapter) {
			t.Errorf("expected ErrUnknownAdapter, got %v", err)
		}
	})

	t.Run("duplicate adapter", func(t *testing.T) {
		t.Parallel()
		if _, err := NewRegistry(axe, NewFunc("axe", noop)); !errors.Is(err, ErrDuplicateAdapter) {
			t.Errorf("expected ErrDuplicateAdapter, got %v", err)
		}
	})
}

func TestFunc(t *testing.T) {
	t.Parallel()

	var gotURL string
	var gotTimeout time.Duration
	f := NewFunc("fake", func(_ context.Context, url string, timeout time.Duration) (*Output, error) {
		gotURL, gotTimeout = url, timeout
		return &Output{Findings: []model.RawFinding{{RuleID: "x"}}}, nil
	})

	out, err := f.Run(context.Background(), "https://example.com/", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotURL != "https://example.com/" || gotTimeout != time.Second || len(out.Findings) != 1 {
		t.Errorf("unexpected call: %s %v %v", gotURL, gotTimeout, out)
	}
}

func TestTimeoutFor(t *testing.T) {
	t.Parallel()

	cmd, err := NewCommand("axe", "axe", WithTimeout(90*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := TimeoutFor(cmd, time.Minute); got != 90*time.Second {
		t.Errorf("expected adapter timeout, got %v", got)
	}
	if got := TimeoutFor(NewHTMLCheck(), time.Minute); got != time.Minute {
		t.Errorf("expected fallback timeout, got %v", got)
	}
}
