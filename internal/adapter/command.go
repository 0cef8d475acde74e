package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/a11yscan/internal/config"
)

// Argument placeholders replaced per run.
const (
	placeholderURL     = "{url}"
	placeholderTimeout = "{timeout_ms}"
)

// maxStderr bounds the stderr excerpt kept for error messages.
const maxStderr = 512

// ErrEmptyOutput is returned when a tool exits without printing anything.
var ErrEmptyOutput = errors.New("tool produced no output")

// CommandAdapter runs an external analysis tool and decodes its stdout.
type CommandAdapter struct {
	name    string
	command string
	args    []string
	env     map[string]string
	format  string
	decode  Decoder
	timeout time.Duration
}

// CommandOption configures a CommandAdapter.
type CommandOption func(*CommandAdapter)

// WithArgs sets the command arguments. "{url}" and "{timeout_ms}" are
// replaced on every run. Without "{url}" the URL is appended.
func WithArgs(args ...string) CommandOption {
	return func(c *CommandAdapter) {
		c.args = args
	}
}

// WithEnv adds environment variables to the tool's environment.
func WithEnv(env map[string]string) CommandOption {
	return func(c *CommandAdapter) {
		c.env = env
	}
}

// WithFormat selects the output decoder.
func WithFormat(format string) CommandOption {
	return func(c *CommandAdapter) {
		c.format = format
	}
}

// WithTimeout sets an adapter specific attempt timeout.
func WithTimeout(d time.Duration) CommandOption {
	return func(c *CommandAdapter) {
		c.timeout = d
	}
}

// NewCommand creates a CommandAdapter. The format defaults to the adapter
// name when it names a known format, else to the generic JSON format.
func NewCommand(name, command string, opts ...CommandOption) (*CommandAdapter, error) {
	if name == "" || command == "" {
		return nil, config.ErrInvalidAdapter
	}
	c := &CommandAdapter{name: name, command: command}
	for _, opt := range opts {
		opt(c)
	}
	if c.format == "" {
		c.format = FormatJSON
		if _, ok := decoders[name]; ok {
			c.format = name
		}
	}
	d, err := DecoderFor(c.format)
	if err != nil {
		return nil, fmt.Errorf("adapter %s: %w", name, err)
	}
	c.decode = d
	return c, nil
}

// FromConfig creates a CommandAdapter from a config file entry.
func FromConfig(ac config.AdapterConfig) (*CommandAdapter, error) {
	return NewCommand(ac.Name, ac.Command,
		WithArgs(ac.Args...),
		WithEnv(ac.Env),
		WithFormat(ac.Format),
		WithTimeout(ac.Timeout),
	)
}

// Name returns the adapter name.
func (c *CommandAdapter) Name() string { return c.name }

// Timeout returns the adapter specific timeout, zero when unset.
func (c *CommandAdapter) Timeout() time.Duration { return c.timeout }

// Format returns the output format.
func (c *CommandAdapter) Format() string { return c.format }

// Run executes the tool for pageURL. Many tools exit non-zero when they
// find violations, so a non-zero exit is only an error when stdout is empty.
func (c *CommandAdapter) Run(ctx context.Context, pageURL string, timeout time.Duration) (*Output, error) {
	args := c.expandArgs(pageURL, timeout)

	cmd := exec.CommandContext(ctx, c.command, args...) //nolint:gosec // command comes from the user's config file
	cmd.WaitDelay = 2 * time.Second
	if len(c.env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range c.env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%s: %w", c.name, ctx.Err())
	}
	if stdout.Len() == 0 {
		if runErr != nil {
			return nil, fmt.Errorf("%s failed: %w: %s", c.name, runErr, excerpt(stderr.String()))
		}
		return nil, fmt.Errorf("%s: %w", c.name, ErrEmptyOutput)
	}

	findings, err := c.decode(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	return &Output{Findings: findings}, nil
}

// expandArgs replaces placeholders in the configured arguments.
func (c *CommandAdapter) expandArgs(pageURL string, timeout time.Duration) []string {
	ms := strconv.FormatInt(timeout.Milliseconds(), 10)
	args := make([]string, 0, len(c.args)+1)
	hasURL := false
	for _, a := range c.args {
		if strings.Contains(a, placeholderURL) {
			hasURL = true
		}
		a = strings.ReplaceAll(a, placeholderURL, pageURL)
		a = strings.ReplaceAll(a, placeholderTimeout, ms)
		args = append(args, a)
	}
	if !hasURL {
		args = append(args, pageURL)
	}
	return args
}

// excerpt trims stderr for error messages.
func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		return s[:maxStderr] + "..."
	}
	return s
}
