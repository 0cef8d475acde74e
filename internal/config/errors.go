package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers use errors.Is to tell them apart.
var (
	// ErrNoTarget is returned when no seed URL is given.
	ErrNoTarget = errors.New("no target specified: provide a seed URL")

	// ErrInvalidSeedURL is returned when the seed is not an absolute http(s) URL.
	ErrInvalidSeedURL = errors.New("invalid seed URL: must be an absolute http or https URL")

	// ErrInvalidTimeout is returned when a per-page or per-adapter timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxPages is returned when the page limit is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidDepth is returned when the crawl depth is negative.
	ErrInvalidDepth = errors.New("invalid crawl depth: must be non-negative")

	// ErrInvalidParallelism is returned when a concurrency limit is not positive.
	ErrInvalidParallelism = errors.New("invalid parallelism: must be positive")

	// ErrInvalidThreshold is returned when the similarity threshold is outside (0, 1].
	ErrInvalidThreshold = errors.New("invalid similarity threshold: must be in (0, 1]")

	// ErrUnknownStrategy is returned for unsupported selection strategies.
	ErrUnknownStrategy = errors.New("unknown selection strategy")

	// ErrNoAdapters is returned when no analyzer adapter is enabled.
	ErrNoAdapters = errors.New("no analyzer adapters enabled")

	// ErrInvalidRetries is returned when the retry count is negative.
	ErrInvalidRetries = errors.New("invalid max retries: must be non-negative")

	// ErrInvalidBackoff is returned when backoff durations are negative or inverted.
	ErrInvalidBackoff = errors.New("invalid backoff: initial must be non-negative and not exceed max")

	// ErrConflictingReportFormats is returned when both --json and --markdown are set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidAdapter is returned for adapter definitions without name or command.
	ErrInvalidAdapter = errors.New("invalid adapter definition: name and command are required")
)
