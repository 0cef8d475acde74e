package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/a11yscan/internal/model"
)

// newSite serves the given path → body map. Paths ending in .pdf are served
// as PDF, .xml as XML, .txt as plain text; everything else as HTML. Unknown
// paths return 404.
func newSite(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, ".pdf"):
			w.Header().Set("Content-Type", "application/pdf")
		case strings.HasSuffix(r.URL.Path, ".xml"):
			w.Header().Set("Content-Type", "application/xml")
		case strings.HasSuffix(r.URL.Path, ".txt"):
			w.Header().Set("Content-Type", "text/plain")
		default:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}
		_, _ = w.Write([]byte(body)) //nolint:errcheck
	}))
	t.Cleanup(server.Close)
	return server
}

// newTestSpider returns a spider without politeness delays.
func newTestSpider(client *http.Client, opts ...SpiderOption) *Spider {
	base := []SpiderOption{WithDelay(0), WithRespectRobots(false), WithSitemaps(false)}
	return NewSpider(client, append(base, opts...)...)
}

func urlsOf(pages []*model.DiscoveredPage) []string {
	urls := make([]string, 0, len(pages))
	for _, p := range pages {
		urls = append(urls, p.URL)
	}
	return urls
}

// TestParser tests HTML parsing functionality.
func TestParser(t *testing.T) {
	t.Parallel()

	parse := func(t *testing.T, html string) *ParseResult {
		t.Helper()
		parser, err := NewParser("https://example.com/page")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}
		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		return result
	}

	t.Run("extracts title and lang", func(t *testing.T) {
		t.Parallel()
		result := parse(t, `<html lang="en"><head><title>  Test
			Page </title></head><body></body></html>`)
		if result.Title != "Test Page" {
			t.Errorf("expected title 'Test Page', got %q", result.Title)
		}
		if result.Lang != "en" {
			t.Errorf("expected lang 'en', got %q", result.Lang)
		}
	})

	t.Run("extracts links with anchor text", func(t *testing.T) {
		t.Parallel()
		result := parse(t, `<html><body>
			<a href="/contact">Contact <b>us</b></a>
			<a href="https://other.example.org/x"><img src="/logo.png" alt="Logo"></a>
			<a href="mailto:a@example.com">Mail</a>
			<a href="javascript:void(0)">JS</a>
			<a href="#">Top</a>
			<a href="/icon" aria-label="Settings"></a>
		</body></html>`)

		want := []Link{
			{URL: "https://example.com/contact", Text: "Contact us"},
			{URL: "https://other.example.org/x", Text: "Logo"},
			{URL: "https://example.com/icon", Text: "Settings"},
		}
		if !slices.Equal(result.Links, want) {
			t.Errorf("links = %v, want %v", result.Links, want)
		}
	})

	t.Run("extracts forms and detects search and password", func(t *testing.T) {
		t.Parallel()
		result := parse(t, `<html><body>
			<form action="/login" method="post">
				<input name="user">
				<input type="password" name="pass">
				<input type="hidden" name="csrf">
				<button type="submit">Go</button>
			</form>
			<form action="/find"><input type="text" name="q"></form>
		</body></html>`)

		if len(result.Forms) != 2 {
			t.Fatalf("expected 2 forms, got %d", len(result.Forms))
		}
		if result.Forms[0].Method != "POST" || result.Forms[0].Action != "https://example.com/login" {
			t.Errorf("unexpected first form: %+v", result.Forms[0])
		}
		if result.Forms[1].Method != "GET" {
			t.Errorf("expected default method GET, got %q", result.Forms[1].Method)
		}
		md := result.Metadata()
		if !md.HasPasswordField || !md.HasSearchForm {
			t.Errorf("expected password and search detection, got %+v", md)
		}
		if md.InputCount != 3 {
			t.Errorf("expected 3 visible inputs, got %d", md.InputCount)
		}
		if md.FormCount != 2 {
			t.Errorf("expected FormCount 2, got %d", md.FormCount)
		}
	})

	t.Run("counts images media and words", func(t *testing.T) {
		t.Parallel()
		result := parse(t, `<html><head><title>Not counted</title></head><body>
			<p>one two three</p>
			<script>var notCounted = 1;</script>
			<img src="a.png"><img src="b.png">
			<video src="v.mp4"></video><iframe src="/embed"></iframe>
		</body></html>`)
		md := result.Metadata()
		if md.WordCount != 3 {
			t.Errorf("expected 3 words, got %d", md.WordCount)
		}
		if md.ImageCount != 2 || md.MediaCount != 2 {
			t.Errorf("unexpected counters: %+v", md)
		}
	})

	t.Run("skeleton strips attributes and scripts", func(t *testing.T) {
		t.Parallel()
		a := parse(t, `<html><head><title>A</title></head><body><div class="x"><p>Hello</p><script>1</script></div></body></html>`)
		b := parse(t, `<html><head><title>B</title><meta name="d"></head><body><div id="y"><p>Other text entirely</p></div></body></html>`)
		if a.Signature() != "body div p" {
			t.Errorf("unexpected signature %q", a.Signature())
		}
		if a.Signature() != b.Signature() {
			t.Errorf("expected equal signatures, got %q and %q", a.Signature(), b.Signature())
		}
	})

	t.Run("inline svg collapses to one token", func(t *testing.T) {
		t.Parallel()
		result := parse(t, `<html><body><svg><path d="M0"></path><circle></circle></svg></body></html>`)
		if result.Signature() != "body svg" {
			t.Errorf("unexpected signature %q", result.Signature())
		}
	})
}

// TestSpider tests crawling against local test servers.
func TestSpider(t *testing.T) {
	t.Parallel()

	t.Run("crawls single page", func(t *testing.T) {
		t.Parallel()
		server := newSite(t, map[string]string{
			"/": `<html lang="en"><head><title>Test</title></head><body><p>Hello</p></body></html>`,
		})

		result, err := newTestSpider(server.Client(), WithMaxDepth(0)).Crawl(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Pages) != 1 {
			t.Fatalf("expected 1 page, got %d", len(result.Pages))
		}
		page := result.Pages[0]
		if page.Title != "Test" || page.Lang != "en" || page.Depth != 0 {
			t.Errorf("unexpected page: %+v", page)
		}
		if page.URL != server.URL+"/" {
			t.Errorf("expected normalized seed URL, got %q", page.URL)
		}
		if page.ContentSignature == "" {
			t.Error("expected content signature")
		}
		if result.Reason != StopFrontierEmpty {
			t.Errorf("expected frontier_empty, got %s", result.Reason)
		}
	})

	t.Run("breadth first within depth limit", func(t *testing.T) {
		t.Parallel()
		server := newSite(t, map[string]string{
			"/":       `<html><body><a href="/a">A</a><a href="/b">B</a></body></html>`,
			"/a":      `<html><body><a href="/a/deep">Deep</a></body></html>`,
			"/b":      `<html><body>B</body></html>`,
			"/a/deep": `<html><body><a href="/a/deeper">Deeper</a></body></html>`,
		})

		result, err := newTestSpider(server.Client(), WithMaxDepth(2), WithParallelism(3)).Crawl(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{server.URL + "/", server.URL + "/a", server.URL + "/b", server.URL + "/a/deep"}
		if got := urlsOf(result.Pages); !slices.Equal(got, want) {
			t.Errorf("pages = %v, want %v", got, want)
		}
		if result.Pages[1].LinkText != "A" || result.Pages[3].Depth != 2 {
			t.Errorf("unexpected link text or depth: %+v %+v", result.Pages[1], result.Pages[3])
		}
	})

	t.Run("respects max pages limit", func(t *testing.T) {
		t.Parallel()
		pages := map[string]string{"/": ""}
		var links strings.Builder
		for i := 1; i <= 5; i++ {
			fmt.Fprintf(&links, `<a href="/page%d">%d</a>`, i, i)
			pages[fmt.Sprintf("/page%d", i)] = `<html><body>Page</body></html>`
		}
		pages["/"] = `<html><body>` + links.String() + `</body></html>`
		server := newSite(t, pages)

		var counts []int
		spider := newTestSpider(server.Client(), WithMaxPages(3), WithMaxDepth(1),
			WithOnPage(func(_ *model.DiscoveredPage, n int) { counts = append(counts, n) }))
		result, err := spider.Crawl(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Pages) != 3 {
			t.Errorf("expected 3 pages, got %d", len(result.Pages))
		}
		if !slices.Equal(counts, []int{1, 2, 3}) {
			t.Errorf("expected running counts 1..3, got %v", counts)
		}
		if result.Reason != StopMaxPages {
			t.Errorf("expected max_pages, got %s", result.Reason)
		}
	})

	t.Run("failed fetches become warnings and do not count", func(t *testing.T) {
		t.Parallel()
		server := newSite(t, map[string]string{
			"/":   `<html><body><a href="/missing">Gone</a><a href="/ok">OK</a></body></html>`,
			"/ok": `<html><body>OK</body></html>`,
		})

		var warned []string
		spider := newTestSpider(server.Client(), WithMaxPages(2),
			WithOnWarning(func(msg string) { warned = append(warned, msg) }))
		result, err := spider.Crawl(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := urlsOf(result.Pages); !slices.Equal(got, []string{server.URL + "/", server.URL + "/ok"}) {
			t.Errorf("unexpected pages %v", got)
		}
		if len(warned) != 1 || !strings.Contains(warned[0], "/missing") {
			t.Errorf("expected one warning for /missing, got %v", warned)
		}
		if len(result.Warnings) != 1 {
			t.Errorf("expected warning in result, got %v", result.Warnings)
		}
	})

	t.Run("drops out of scope and excluded links", func(t *testing.T) {
		t.Parallel()
		server := newSite(t, map[string]string{
			"/": `<html><body>
				<a href="https://elsewhere.example.org/">Out</a>
				<a href="/admin/panel">Admin</a>
				<a href="/keep#section">Keep</a>
			</body></html>`,
			"/keep":        `<html><body>Keep</body></html>`,
			"/admin/panel": `<html><body>Admin</body></html>`,
		})

		spider := newTestSpider(server.Client(), WithExcludePatterns([]string{"/admin/*"}))
		result, err := spider.Crawl(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := urlsOf(result.Pages); !slices.Equal(got, []string{server.URL + "/", server.URL + "/keep"}) {
			t.Errorf("unexpected pages %v", got)
		}
	})

	t.Run("records non-HTML documents", func(t *testing.T) {
		t.Parallel()
		server := newSite(t, map[string]string{
			"/":           `<html><body><a href="/report.pdf">Annual report</a></body></html>`,
			"/report.pdf": "%PDF-1.4",
		})

		result, err := newTestSpider(server.Client()).Crawl(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Pages) != 2 {
			t.Fatalf("expected 2 pages, got %d", len(result.Pages))
		}
		if result.Pages[1].ContentType != "application/pdf" || result.Pages[1].LinkText != "Annual report" {
			t.Errorf("unexpected document page: %+v", result.Pages[1])
		}
	})

	t.Run("avoids duplicate visits", func(t *testing.T) {
		t.Parallel()
		var visits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			visits.Add(1)
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><body><a href="/">Self</a><a href="/#top">Self Again</a></body></html>`)) //nolint:errcheck
		}))
		defer server.Close()

		if _, err := newTestSpider(server.Client(), WithMaxDepth(1)).Crawl(context.Background(), server.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if visits.Load() != 1 {
			t.Errorf("expected 1 visit, got %d", visits.Load())
		}
	})

	t.Run("sends headers and cookie", func(t *testing.T) {
		t.Parallel()
		var gotCookie, gotHeader, gotUA atomic.Value
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotCookie.Store(r.Header.Get("Cookie"))
			gotHeader.Store(r.Header.Get("X-Audit"))
			gotUA.Store(r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><body>ok</body></html>`)) //nolint:errcheck
		}))
		defer server.Close()

		spider := newTestSpider(server.Client(), WithMaxDepth(0),
			WithCookie("session=abc"),
			WithHeaders(map[string]string{"X-Audit": "1"}),
			WithSpiderUserAgent("test-agent"))
		if _, err := spider.Crawl(context.Background(), server.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotCookie.Load() != "session=abc" || gotHeader.Load() != "1" || gotUA.Load() != "test-agent" {
			t.Errorf("unexpected request headers: cookie=%v header=%v ua=%v", gotCookie.Load(), gotHeader.Load(), gotUA.Load())
		}
	})

	t.Run("known pages are not reported again", func(t *testing.T) {
		t.Parallel()
		server := newSite(t, map[string]string{
			"/":  `<html><body><a href="/a">A</a></body></html>`,
			"/a": `<html><body>A</body></html>`,
		})

		spider := newTestSpider(server.Client(), WithKnownPages([]string{server.URL + "/"}))
		result, err := spider.Crawl(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := urlsOf(result.Pages); !slices.Equal(got, []string{server.URL + "/a"}) {
			t.Errorf("unexpected pages %v", got)
		}
		if result.Count != 2 {
			t.Errorf("expected count 2 including known page, got %d", result.Count)
		}
	})

	t.Run("cancellation returns pages found so far", func(t *testing.T) {
		t.Parallel()
		server := newSite(t, map[string]string{
			"/":  `<html><body><a href="/a">A</a></body></html>`,
			"/a": `<html><body>A</body></html>`,
		})

		ctx, cancel := context.WithCancel(context.Background())
		spider := newTestSpider(server.Client(), WithOnPage(func(*model.DiscoveredPage, int) { cancel() }))
		result, err := spider.Crawl(ctx, server.URL)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if len(result.Pages) != 1 || result.Reason != StopCancelled {
			t.Errorf("expected 1 page and cancelled reason, got %d %s", len(result.Pages), result.Reason)
		}
	})

	t.Run("budget ends the crawl with a warning", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(30 * time.Millisecond)
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, `<html><body><a href="%snext/">next</a></body></html>`, r.URL.Path) //nolint:errcheck
		}))
		defer server.Close()

		spider := newTestSpider(server.Client(), WithBudget(10*time.Millisecond), WithMaxDepth(10))
		result, err := spider.Crawl(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("budget exhaustion must not be an error: %v", err)
		}
		if result.Reason != StopBudget {
			t.Errorf("expected budget_elapsed, got %s", result.Reason)
		}
		if len(result.Warnings) == 0 || !strings.Contains(result.Warnings[0], "budget") {
			t.Errorf("expected budget warning, got %v", result.Warnings)
		}
	})

	t.Run("budget stops a slow wide level", func(t *testing.T) {
		t.Parallel()
		var links strings.Builder
		for i := range 10 {
			fmt.Fprintf(&links, `<a href="/p%d">p%d</a>`, i, i)
		}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			if r.URL.Path == "/" {
				fmt.Fprintf(w, `<html><body>%s</body></html>`, links.String()) //nolint:errcheck
				return
			}
			time.Sleep(200 * time.Millisecond)
			fmt.Fprint(w, `<html><body><p>slow</p></body></html>`) //nolint:errcheck
		}))
		defer server.Close()

		spider := newTestSpider(server.Client(),
			WithBudget(100*time.Millisecond), WithParallelism(1), WithMaxDepth(1))
		start := time.Now()
		result, err := spider.Crawl(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("budget exhaustion must not be an error: %v", err)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("crawl overran its budget: %s", elapsed)
		}
		if result.Reason != StopBudget {
			t.Errorf("expected budget_elapsed, got %s", result.Reason)
		}
		if result.Count >= 11 {
			t.Errorf("expected the level to be cut short, got %d pages", result.Count)
		}
		found := false
		for _, w := range result.Warnings {
			if strings.Contains(w, "budget") {
				found = true
			}
		}
		if !found {
			t.Errorf("expected budget warning, got %v", result.Warnings)
		}
	})

	t.Run("rejects invalid seed", func(t *testing.T) {
		t.Parallel()
		if _, err := newTestSpider(http.DefaultClient).Crawl(context.Background(), "ftp://example.com"); err == nil {
			t.Error("expected error for non-http seed")
		}
	})
}

// TestSpiderRobots tests robots.txt handling.
func TestSpiderRobots(t *testing.T) {
	t.Parallel()

	t.Run("skips disallowed paths", func(t *testing.T) {
		t.Parallel()
		server := newSite(t, map[string]string{
			"/robots.txt": "User-agent: *\nDisallow: /private\n",
			"/":           `<html><body><a href="/private/x">P</a><a href="/public">Q</a></body></html>`,
			"/private/x":  `<html><body>P</body></html>`,
			"/public":     `<html><body>Q</body></html>`,
		})

		spider := NewSpider(server.Client(), WithDelay(0), WithSitemaps(false))
		result, err := spider.Crawl(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := urlsOf(result.Pages); !slices.Equal(got, []string{server.URL + "/", server.URL + "/public"}) {
			t.Errorf("unexpected pages %v", got)
		}
	})

	t.Run("disallowed seed is an error", func(t *testing.T) {
		t.Parallel()
		server := newSite(t, map[string]string{
			"/robots.txt": "User-agent: *\nDisallow: /\n",
			"/":           `<html><body>hidden</body></html>`,
		})

		spider := NewSpider(server.Client(), WithDelay(0), WithSitemaps(false))
		if _, err := spider.Crawl(context.Background(), server.URL); !errors.Is(err, ErrSeedDisallowed) {
			t.Errorf("expected ErrSeedDisallowed, got %v", err)
		}
	})

	t.Run("ignored when disabled", func(t *testing.T) {
		t.Parallel()
		server := newSite(t, map[string]string{
			"/robots.txt": "User-agent: *\nDisallow: /\n",
			"/":           `<html><body>visible</body></html>`,
		})

		result, err := newTestSpider(server.Client()).Crawl(context.Background(), server.URL)
		if err != nil || len(result.Pages) != 1 {
			t.Errorf("expected seed to be crawled, got %v %v", result, err)
		}
	})
}

// TestSpiderSitemap tests sitemap merging.
func TestSpiderSitemap(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"/robots.txt": "User-agent: *\nAllow: /\n",
		"/":           `<html><body><a href="/linked">Linked</a></body></html>`,
		"/linked":     `<html><body>linked</body></html>`,
		"/from-index": `<html><body>index</body></html>`,
		"/from-map":   `<html><body>map</body></html>`,
	}
	server := newSite(t, pages)
	pages["/sitemap.xml"] = `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>` + server.URL + `/pages.xml</loc></sitemap>
</sitemapindex>`
	pages["/pages.xml"] = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>` + server.URL + `/from-map</loc></url>
  <url><loc>` + server.URL + `/from-index</loc></url>
  <url><loc>https://elsewhere.example.org/x</loc></url>
</urlset>`

	spider := NewSpider(server.Client(), WithDelay(0), WithMaxDepth(1))
	result, err := spider.Crawl(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{server.URL + "/", server.URL + "/from-map", server.URL + "/from-index", server.URL + "/linked"}
	if got := urlsOf(result.Pages); !slices.Equal(got, want) {
		t.Errorf("pages = %v, want %v", got, want)
	}
	if result.Pages[1].Depth != 1 {
		t.Errorf("expected sitemap pages at depth 1, got %d", result.Pages[1].Depth)
	}
}

// TestParseSitemap tests the sitemap parser directly.
func TestParseSitemap(t *testing.T) {
	t.Parallel()

	t.Run("urlset", func(t *testing.T) {
		t.Parallel()
		pages, children, err := parseSitemap([]byte(`<urlset><url><loc> https://a.example/1 </loc></url><url><loc>https://a.example/2</loc></url></urlset>`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(pages, []string{"https://a.example/1", "https://a.example/2"}) || len(children) != 0 {
			t.Errorf("unexpected result: %v %v", pages, children)
		}
	})

	t.Run("sitemap index", func(t *testing.T) {
		t.Parallel()
		pages, children, err := parseSitemap([]byte(`<sitemapindex><sitemap><loc>https://a.example/s1.xml</loc></sitemap></sitemapindex>`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(pages) != 0 || !slices.Equal(children, []string{"https://a.example/s1.xml"}) {
			t.Errorf("unexpected result: %v %v", pages, children)
		}
	})
}

func TestMediaType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
		html   bool
	}{
		{"text/html; charset=utf-8", "text/html", true},
		{"application/xhtml+xml", "application/xhtml+xml", true},
		{"application/pdf", "application/pdf", false},
		{"", "", true},
	}
	for _, tt := range tests {
		got := mediaType(tt.header)
		if got != tt.want {
			t.Errorf("mediaType(%q) = %q, want %q", tt.header, got, tt.want)
		}
		if isHTML(got) != tt.html {
			t.Errorf("isHTML(%q) = %v, want %v", got, !tt.html, tt.html)
		}
	}
}
