package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/urlutil"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "a11yscan"

	// DefaultMaxPages bounds discovery; WCAG-EM samples rarely need more.
	DefaultMaxPages = 50

	// DefaultMaxDepth is the crawl distance from the seed.
	DefaultMaxDepth = 3

	// DefaultTimeoutPerPage bounds each discovery fetch.
	DefaultTimeoutPerPage = 30 * time.Second

	// DefaultParallelism is the number of concurrent discovery fetches.
	DefaultParallelism = 4

	// DefaultDiscoveryBudget is the wall-clock budget of one discovery session.
	DefaultDiscoveryBudget = 10 * time.Minute

	// DefaultCrawlDelay is the minimum interval between discovery requests.
	DefaultCrawlDelay = 250 * time.Millisecond

	// DefaultUserAgent identifies a11yscan in HTTP requests.
	DefaultUserAgent = "a11yscan/1.0 (+https://github.com/nao1215/a11yscan)"

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultSimilarityThreshold is the template clustering threshold.
	DefaultSimilarityThreshold = 0.85

	// DefaultSelectionMaxPages bounds the sample handed to the scanner.
	DefaultSelectionMaxPages = 15

	// DefaultSelectionSeed seeds the random member picked from large groups.
	DefaultSelectionSeed uint64 = 1

	// DefaultMaxParallelPages is the number of pages scanned concurrently.
	DefaultMaxParallelPages = 2

	// DefaultMaxConcurrentAdapters is the number of adapters run concurrently on one page.
	DefaultMaxConcurrentAdapters = 4

	// DefaultMaxRetries is the number of retries after the first adapter attempt.
	DefaultMaxRetries = 2

	// DefaultAdapterTimeout is the hard timeout of one adapter attempt.
	DefaultAdapterTimeout = 60 * time.Second

	// DefaultInitialBackoff is the wait before the first retry.
	DefaultInitialBackoff = 1 * time.Second

	// DefaultMaxBackoff caps the exponential backoff.
	DefaultMaxBackoff = 30 * time.Second

	// DefaultStaleDiscoveryAfter is the age after which an interrupted
	// discovery session is failed instead of resumed.
	DefaultStaleDiscoveryAfter = 24 * time.Hour
)

// DefaultAdapters are enabled when neither flags nor the config file name any.
var DefaultAdapters = []string{"htmlcheck"}

// Config holds all configuration options for a11yscan.
// It is populated from CLI flags and the optional config file and passed
// down explicitly; there is no global configuration state.
type Config struct {
	// SeedURL is the start of discovery.
	SeedURL string

	// MaxPages bounds the number of pages discovered.
	MaxPages int

	// MaxDepth is the maximum link distance from the seed. 0 means only the seed.
	MaxDepth int

	// TimeoutPerPage bounds each discovery fetch.
	TimeoutPerPage time.Duration

	// Parallelism is the number of concurrent discovery fetches.
	Parallelism int

	// RespectRobots enables robots.txt checks during discovery.
	RespectRobots bool

	// DiscoveryBudget is the wall-clock limit of a discovery session.
	DiscoveryBudget time.Duration

	// CrawlDelay is the minimum interval between discovery requests.
	CrawlDelay time.Duration

	// UserAgent is sent with discovery and htmlcheck requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// ExcludePatterns are URL path globs never crawled.
	ExcludePatterns []string

	// AllowedDomains are extra domains the crawler may follow.
	AllowedDomains []string

	// Cookie and Headers are sent with every discovery and htmlcheck request,
	// for audits behind a login.
	Cookie  string
	Headers map[string]string

	// SimilarityThreshold is the template clustering threshold.
	SimilarityThreshold float64

	// Recluster rebuilds the template groups in a second pass after the crawl.
	Recluster bool

	// Strategy is the page selection strategy.
	Strategy model.Strategy

	// SelectionMaxPages bounds the selected sample.
	SelectionMaxPages int

	// SelectionSeed seeds random choices of the selector.
	SelectionSeed uint64

	// ManualURLs is the explicit selection used by the manual strategy.
	ManualURLs []string

	// Adapters names the enabled analyzer adapters in run order.
	Adapters []string

	// MaxParallelPages is the number of pages scanned concurrently.
	MaxParallelPages int

	// MaxConcurrentAdapters is the number of adapters run at once on one page.
	MaxConcurrentAdapters int

	// MaxRetries is the number of retries after a failed adapter attempt.
	MaxRetries int

	// AdapterTimeout is the hard timeout of one adapter attempt.
	AdapterTimeout time.Duration

	// InitialBackoff and MaxBackoff bound the exponential retry backoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// StaleDiscoveryAfter is the recovery cutoff for interrupted discoveries.
	StaleDiscoveryAfter time.Duration

	// DBDir is the directory of the session database. Defaults to the XDG data dir.
	DBDir string

	// NoDB keeps sessions in memory only.
	NoDB bool

	// RedisURL, when set, also publishes progress events to redis.
	RedisURL string

	// Verbose enables debug logging.
	Verbose bool

	// JSONReport and MarkdownReport select the report format; text is the default.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// ConfigFilePath is an explicit config file path.
	ConfigFilePath string

	// File holds the loaded config file, nil when none was found.
	File *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxPages:              DefaultMaxPages,
		MaxDepth:              DefaultMaxDepth,
		TimeoutPerPage:        DefaultTimeoutPerPage,
		Parallelism:           DefaultParallelism,
		RespectRobots:         true,
		DiscoveryBudget:       DefaultDiscoveryBudget,
		CrawlDelay:            DefaultCrawlDelay,
		UserAgent:             DefaultUserAgent,
		MaxBodySize:           DefaultMaxBodySize,
		SimilarityThreshold:   DefaultSimilarityThreshold,
		Strategy:              model.StrategyWCAGEM,
		SelectionMaxPages:     DefaultSelectionMaxPages,
		SelectionSeed:         DefaultSelectionSeed,
		MaxParallelPages:      DefaultMaxParallelPages,
		MaxConcurrentAdapters: DefaultMaxConcurrentAdapters,
		MaxRetries:            DefaultMaxRetries,
		AdapterTimeout:        DefaultAdapterTimeout,
		InitialBackoff:        DefaultInitialBackoff,
		MaxBackoff:            DefaultMaxBackoff,
		StaleDiscoveryAfter:   DefaultStaleDiscoveryAfter,
		DBDir:                 XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for a11yscan.
// On Linux: ~/.local/share/a11yscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for a11yscan.
// On Linux: ~/.config/a11yscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DiscoveryConfig returns the discovery part of the configuration in the
// form persisted on a discovery session.
func (c *Config) DiscoveryConfig() model.DiscoveryConfig {
	dc := model.DiscoveryConfig{
		SeedURL:             c.SeedURL,
		MaxPages:            c.MaxPages,
		MaxDepth:            c.MaxDepth,
		TimeoutPerPage:      c.TimeoutPerPage,
		Parallelism:         c.Parallelism,
		RespectRobots:       c.RespectRobots,
		ExcludePatterns:     append([]string(nil), c.ExcludePatterns...),
		AllowedDomains:      append([]string(nil), c.AllowedDomains...),
		Budget:              c.DiscoveryBudget,
		CrawlDelay:          c.CrawlDelay,
		SimilarityThreshold: c.SimilarityThreshold,
		Recluster:           c.Recluster,
		Strategy:            c.Strategy,
		SelectionMaxPages:   c.SelectionMaxPages,
		Seed:                c.SelectionSeed,
	}
	if c.File != nil {
		dc.CriticalPaths = c.File.CriticalPaths
		dc.Journeys = c.File.Journeys
	}
	return dc
}

// ScanConfig returns the scan part of the configuration.
func (c *Config) ScanConfig() model.ScanConfig {
	return model.ScanConfig{
		Adapters:              append([]string(nil), c.Adapters...),
		MaxParallelPages:      c.MaxParallelPages,
		MaxConcurrentAdapters: c.MaxConcurrentAdapters,
		MaxRetries:            c.MaxRetries,
		AdapterTimeout:        c.AdapterTimeout,
		InitialBackoff:        c.InitialBackoff,
		MaxBackoff:            c.MaxBackoff,
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.SeedURL == "" {
		return ErrNoTarget
	}
	if _, err := urlutil.ParseSeed(c.SeedURL); err != nil {
		return ErrInvalidSeedURL
	}
	if c.MaxPages <= 0 || c.SelectionMaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}
	if c.TimeoutPerPage <= 0 || c.AdapterTimeout <= 0 || c.DiscoveryBudget <= 0 {
		return ErrInvalidTimeout
	}
	if c.Parallelism <= 0 || c.MaxParallelPages <= 0 || c.MaxConcurrentAdapters <= 0 {
		return ErrInvalidParallelism
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return ErrInvalidThreshold
	}
	if !c.Strategy.Valid() {
		return ErrUnknownStrategy
	}
	if len(c.Adapters) == 0 {
		return ErrNoAdapters
	}
	if c.MaxRetries < 0 {
		return ErrInvalidRetries
	}
	if c.InitialBackoff < 0 || c.MaxBackoff < 0 || c.InitialBackoff > c.MaxBackoff {
		return ErrInvalidBackoff
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}
