package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/urlutil"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrSeedDisallowed is returned when robots.txt forbids crawling the seed URL.
var ErrSeedDisallowed = errors.New("seed url is disallowed by robots.txt")

// StopReason tells why a crawl ended.
type StopReason string

// Stop reasons.
const (
	StopFrontierEmpty StopReason = "frontier_empty"
	StopMaxPages      StopReason = "max_pages"
	StopBudget        StopReason = "budget_elapsed"
	StopCancelled     StopReason = "cancelled"
)

// Spider performs a bounded breadth-first crawl of one site.
//
// The frontier is processed level by level. Each level is fetched
// concurrently, but pages are handed to OnPage from the calling goroutine
// in frontier order, so consumers never need their own locking.
type Spider struct {
	client *http.Client
	logger *slog.Logger

	maxDepth       int
	maxPages       int
	parallelism    int
	timeoutPerPage time.Duration
	budget         time.Duration
	delay          time.Duration
	respectRobots  bool
	useSitemaps    bool

	userAgent   string
	maxBodySize int64
	headers     map[string]string
	cookie      string

	excludePatterns []string
	allowedDomains  []string

	// known are pages discovered by an earlier run of the same session.
	// They are fetched again for their links but not reported.
	known map[string]bool

	onPage    func(page *model.DiscoveredPage, count int)
	onWarning func(msg string)

	mu       sync.Mutex
	warnings []string
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth.
// 0 = only the starting page, 1 = starting page plus linked pages, etc.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of pages to crawl.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithParallelism sets the number of concurrent fetches.
func WithParallelism(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithTimeoutPerPage bounds each fetch.
func WithTimeoutPerPage(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.timeoutPerPage = d
	}
}

// WithBudget sets the wall-clock budget of the crawl. Zero disables it.
func WithBudget(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.budget = d
	}
}

// WithDelay sets the minimum interval between requests.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithRespectRobots enables or disables robots.txt checks.
func WithRespectRobots(respect bool) SpiderOption {
	return func(s *Spider) {
		s.respectRobots = respect
	}
}

// WithSitemaps enables or disables sitemap discovery.
func WithSitemaps(enabled bool) SpiderOption {
	return func(s *Spider) {
		s.useSitemaps = enabled
	}
}

// WithSpiderUserAgent sets a custom User-Agent header.
func WithSpiderUserAgent(ua string) SpiderOption {
	return func(s *Spider) {
		s.userAgent = ua
	}
}

// WithSpiderMaxBodySize sets the maximum response body size.
func WithSpiderMaxBodySize(size int64) SpiderOption {
	return func(s *Spider) {
		s.maxBodySize = size
	}
}

// WithHeaders sets extra request headers.
func WithHeaders(headers map[string]string) SpiderOption {
	return func(s *Spider) {
		s.headers = headers
	}
}

// WithCookie sets the Cookie header sent with every request.
func WithCookie(cookie string) SpiderOption {
	return func(s *Spider) {
		s.cookie = cookie
	}
}

// WithExcludePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithExcludePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.excludePatterns = patterns
	}
}

// WithAllowedDomains lets the crawler follow links to other domains
// (and their subdomains) besides the seed host.
func WithAllowedDomains(domains []string) SpiderOption {
	return func(s *Spider) {
		s.allowedDomains = domains
	}
}

// WithKnownPages resumes an interrupted crawl: the given URLs count toward
// the page limit and are fetched again for their links, but OnPage is not
// called for them.
func WithKnownPages(urls []string) SpiderOption {
	return func(s *Spider) {
		s.known = make(map[string]bool, len(urls))
		for _, u := range urls {
			s.known[u] = true
		}
	}
}

// WithOnPage registers the page callback. count is the running number of
// discovered pages including this one.
func WithOnPage(fn func(page *model.DiscoveredPage, count int)) SpiderOption {
	return func(s *Spider) {
		s.onPage = fn
	}
}

// WithOnWarning registers the warning callback.
func WithOnWarning(fn func(msg string)) SpiderOption {
	return func(s *Spider) {
		s.onWarning = fn
	}
}

// WithSpiderLogger sets the logger.
func WithSpiderLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSpider creates a new Spider with the given HTTP client.
// The client's own timeout should be zero or larger than the per-page timeout.
func NewSpider(client *http.Client, opts ...SpiderOption) *Spider {
	s := &Spider{
		client:         client,
		logger:         slog.New(slog.DiscardHandler),
		maxDepth:       3,
		maxPages:       50,
		parallelism:    4,
		timeoutPerPage: 30 * time.Second,
		respectRobots:  true,
		useSitemaps:    true,
		userAgent:      "a11yscan/1.0",
		maxBodySize:    5 * 1024 * 1024, // 5MB
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Result is the outcome of a crawl.
type Result struct {
	// Pages are the newly discovered pages in discovery order.
	Pages []*model.DiscoveredPage

	// Count is the number of pages discovered including known pages.
	Count int

	// Warnings are non-fatal problems such as failed fetches.
	Warnings []string

	// Reason tells why the crawl ended.
	Reason StopReason
}

// queueItem represents an item in the crawl frontier.
type queueItem struct {
	url      string
	depth    int
	linkText string
}

// fetchResult is the outcome of fetching one frontier item.
type fetchResult struct {
	page    *model.DiscoveredPage
	links   []Link
	err     error
	skipped bool
}

// Crawl crawls from seedURL until the page limit is reached, the depth is
// exhausted, the frontier is empty, the budget elapses or ctx is cancelled.
// Cancellation returns the pages found so far together with ctx.Err().
// In-flight fetches are not interrupted by cancellation; they finish under
// their own per-page timeout.
func (s *Spider) Crawl(ctx context.Context, seedURL string) (*Result, error) {
	normalized, err := urlutil.ParseSeed(seedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid seed URL: %w", err)
	}
	seed, err := url.Parse(normalized)
	if err != nil {
		return nil, fmt.Errorf("invalid seed URL: %w", err)
	}

	start := time.Now()
	result := &Result{Pages: make([]*model.DiscoveredPage, 0)}

	var robots *robotsGate
	if s.respectRobots {
		robots = s.loadRobots(ctx, seed)
	}
	if !robots.allowed(normalized) {
		return nil, ErrSeedDisallowed
	}

	seen := map[string]bool{normalized: true}
	frontier := []queueItem{{url: normalized, depth: 0}}

	if s.useSitemaps && s.maxDepth >= 1 {
		for _, loc := range s.sitemapURLs(ctx, seed, robots, s.maxPages) {
			if u, ok := s.admit(seed.Hostname(), loc, robots, seen); ok {
				frontier = append(frontier, queueItem{url: u, depth: 1})
			}
		}
	}

	var limiter *rate.Limiter
	if s.delay > 0 {
		limiter = rate.NewLimiter(rate.Every(s.delay), 1)
	}

	var deadline time.Time
	if s.budget > 0 {
		deadline = start.Add(s.budget)
	}

	for len(frontier) > 0 {
		if result.Count >= s.maxPages {
			result.Reason = StopMaxPages
			break
		}
		if ctx.Err() != nil {
			result.Reason = StopCancelled
			break
		}
		if pastDeadline(deadline) {
			result.Reason = StopBudget
			break
		}

		n := min(len(frontier), s.maxPages-result.Count)
		batch := frontier[:n]
		frontier = frontier[n:]

		results := s.fetchBatch(ctx, batch, limiter, deadline)

		var next []queueItem
		for i, r := range results {
			item := batch[i]
			if r.skipped {
				continue
			}
			if r.err != nil {
				s.warn(fmt.Sprintf("failed to fetch %s: %v", item.url, r.err))
				continue
			}

			result.Count++
			if !s.known[item.url] {
				r.page.Depth = item.depth
				r.page.LinkText = item.linkText
				result.Pages = append(result.Pages, r.page)
				if s.onPage != nil {
					s.onPage(r.page, result.Count)
				}
			}

			if item.depth >= s.maxDepth {
				continue
			}
			for _, link := range r.links {
				if u, ok := s.admit(seed.Hostname(), link.URL, robots, seen); ok {
					next = append(next, queueItem{url: u, depth: item.depth + 1, linkText: link.Text})
				}
			}
		}
		frontier = append(frontier, next...)

		// A level may outlast the budget; its unfetched items are dropped.
		if pastDeadline(deadline) && (len(frontier) > 0 || skipped(results)) {
			result.Reason = StopBudget
			break
		}
	}

	if result.Reason == StopBudget {
		s.warn(fmt.Sprintf("discovery budget of %s elapsed after %d pages", s.budget, result.Count))
	}

	if result.Reason == "" {
		if result.Count >= s.maxPages {
			result.Reason = StopMaxPages
		} else {
			result.Reason = StopFrontierEmpty
		}
	}
	result.Warnings = s.Warnings()

	s.logger.Info("crawl finished",
		"seed", normalized,
		"pages", result.Count,
		"reason", string(result.Reason),
		"duration", time.Since(start).Round(time.Millisecond).String(),
	)

	if result.Reason == StopCancelled {
		return result, ctx.Err()
	}
	return result, nil
}

// fetchBatch fetches items concurrently and returns results in item order.
// Items not started before deadline (when set) are skipped.
func (s *Spider) fetchBatch(ctx context.Context, batch []queueItem, limiter *rate.Limiter, deadline time.Time) []fetchResult {
	results := make([]fetchResult, len(batch))

	g := new(errgroup.Group)
	g.SetLimit(s.parallelism)
	for i, item := range batch {
		g.Go(func() error {
			if ctx.Err() != nil || pastDeadline(deadline) {
				results[i].skipped = true
				return nil
			}
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil || pastDeadline(deadline) {
					results[i].skipped = true
					return nil
				}
			}
			page, links, err := s.fetchPage(ctx, item.url)
			results[i] = fetchResult{page: page, links: links, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func pastDeadline(deadline time.Time) bool {
	return !deadline.IsZero() && !time.Now().Before(deadline)
}

// skipped reports whether any result of a batch was skipped.
func skipped(results []fetchResult) bool {
	for _, r := range results {
		if r.skipped {
			return true
		}
	}
	return false
}

// admit normalizes a candidate link and reports whether it joins the frontier.
func (s *Spider) admit(seedHost, link string, robots *robotsGate, seen map[string]bool) (string, bool) {
	u, err := urlutil.Normalize(link)
	if err != nil || seen[u] {
		return "", false
	}
	if !urlutil.InScope(seedHost, u, s.allowedDomains) {
		return "", false
	}
	if urlutil.MatchAny(s.excludePatterns, urlutil.Path(u)) {
		return "", false
	}
	if !robots.allowed(u) {
		s.logger.Debug("skipping url disallowed by robots.txt", "url", u)
		return "", false
	}
	seen[u] = true
	return u, true
}

// fetchPage fetches a single page and extracts its content and links.
func (s *Spider) fetchPage(ctx context.Context, pageURL string) (*model.DiscoveredPage, []Link, error) {
	status, body, contentType, err := s.get(ctx, pageURL)
	if err != nil {
		return nil, nil, err
	}
	if status >= 400 {
		return nil, nil, fmt.Errorf("HTTP %d", status)
	}

	page := &model.DiscoveredPage{
		URL:         pageURL,
		ContentType: contentType,
		Priority:    model.PriorityOptional,
		Role:        model.RoleOther,
	}

	if !isHTML(contentType) {
		return page, nil, nil
	}

	parser, err := NewParser(pageURL)
	if err != nil {
		return nil, nil, err
	}
	parsed, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	page.Title = parsed.Title
	page.Lang = parsed.Lang
	page.ContentSignature = parsed.Signature()
	page.Metadata = parsed.Metadata()
	return page, parsed.Links, nil
}

// get performs a GET with the per-page timeout. The request is detached
// from ctx cancellation so an in-flight fetch completes on its own clock.
func (s *Spider) get(ctx context.Context, rawURL string) (status int, body []byte, contentType string, err error) {
	reqCtx := context.WithoutCancel(ctx)
	if s.timeoutPerPage > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(reqCtx, s.timeoutPerPage)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, "", err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	if s.cookie != "" {
		req.Header.Set("Cookie", s.cookie)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, "", err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return 0, nil, "", err
	}
	return resp.StatusCode, body, mediaType(resp.Header.Get("Content-Type")), nil
}

// warn records a warning and forwards it to the warning hook.
func (s *Spider) warn(msg string) {
	s.mu.Lock()
	s.warnings = append(s.warnings, msg)
	s.mu.Unlock()
	s.logger.Warn(msg)
	if s.onWarning != nil {
		s.onWarning(msg)
	}
}

// Warnings returns the warnings recorded so far.
func (s *Spider) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.warnings...)
}

// mediaType strips parameters from a Content-Type header value.
func mediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(header, ";")[0]))
	}
	return mt
}

// isHTML reports whether a media type is an HTML document. An empty type
// is sniffed as HTML.
func isHTML(mt string) bool {
	return mt == "" || mt == "text/html" || mt == "application/xhtml+xml"
}
