// Package crawler discovers the pages of a website for an accessibility audit.
//
// # Architecture
//
// The Spider performs a bounded breadth-first crawl starting at a seed URL.
// The frontier is processed level by level: each level is fetched
// concurrently (bounded by the parallelism option) while the coordinating
// goroutine delivers pages in frontier order through the OnPage hook.
//
// The crawl ends when one of the following holds:
//   - the page limit is reached
//   - the depth limit is exhausted or the frontier is empty
//   - the wall-clock discovery budget elapses (a warning, not an error)
//   - the context is cancelled
//
// # Components
//
//   - Spider: coordinates the crawl, enforces scope and limits
//   - Parser: extracts title, language, links with anchor text, forms,
//     media and the DOM skeleton used for template clustering
//   - robots.txt gate (github.com/temoto/robotstxt)
//   - sitemap reader (github.com/antchfx/xmlquery)
//
// # Politeness
//
//   - robots.txt is respected by default, including for the seed
//   - requests are spaced by a token-bucket limiter (golang.org/x/time/rate)
//   - each fetch is bounded by a per-page timeout and a body size limit
//
// # Usage
//
//	spider := crawler.NewSpider(http.DefaultClient,
//		crawler.WithMaxPages(50),
//		crawler.WithOnPage(func(p *model.DiscoveredPage, n int) { ... }),
//	)
//	result, err := spider.Crawl(ctx, "https://example.com")
package crawler
