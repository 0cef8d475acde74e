package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/a11yscan/internal/model"
)

var (
	// ErrUnknownAdapter is returned when an enabled adapter is not registered.
	ErrUnknownAdapter = errors.New("unknown adapter")

	// ErrDuplicateAdapter is returned when registering a name twice.
	ErrDuplicateAdapter = errors.New("adapter already registered")
)

// Output is the raw result of one adapter run.
type Output struct {
	// Findings are the tool's findings in its own vocabulary.
	Findings []model.RawFinding

	// ToolVersion is the version reported by the tool, if any.
	ToolVersion string
}

// Adapter runs one analysis tool against a page.
// Run must honour ctx; timeout is passed for tools that take their own limit.
type Adapter interface {
	Name() string
	Run(ctx context.Context, pageURL string, timeout time.Duration) (*Output, error)
}

// TimeoutProvider is implemented by adapters with their own attempt timeout.
type TimeoutProvider interface {
	Timeout() time.Duration
}

// TimeoutFor returns the adapter's own timeout, or fallback when it has none.
func TimeoutFor(a Adapter, fallback time.Duration) time.Duration {
	if tp, ok := a.(TimeoutProvider); ok && tp.Timeout() > 0 {
		return tp.Timeout()
	}
	return fallback
}

// Registry holds adapters in registration order.
type Registry struct {
	adapters []Adapter
	byName   map[string]Adapter
}

// NewRegistry creates a registry with the given adapters.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{byName: make(map[string]Adapter)}
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an adapter.
func (r *Registry) Register(a Adapter) error {
	if _, ok := r.byName[a.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAdapter, a.Name())
	}
	r.byName[a.Name()] = a
	r.adapters = append(r.adapters, a)
	return nil
}

// Get returns the adapter with the given name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// Names returns the registered adapter names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		names = append(names, a.Name())
	}
	return names
}

// Enabled resolves names to adapters, keeping the order of names.
func (r *Registry) Enabled(names []string) ([]Adapter, error) {
	out := make([]Adapter, 0, len(names))
	for _, name := range names {
		a, ok := r.byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAdapter, name)
		}
		out = append(out, a)
	}
	return out, nil
}

// RunFunc is the signature of Func adapters.
type RunFunc func(ctx context.Context, pageURL string, timeout time.Duration) (*Output, error)

// Func adapts a function to the Adapter interface.
type Func struct {
	name string
	fn   RunFunc
}

// NewFunc creates a Func adapter.
func NewFunc(name string, fn RunFunc) *Func {
	return &Func{name: name, fn: fn}
}

// Name returns the adapter name.
func (f *Func) Name() string { return f.name }

// Run calls the wrapped function.
func (f *Func) Run(ctx context.Context, pageURL string, timeout time.Duration) (*Output, error) {
	return f.fn(ctx, pageURL, timeout)
}
