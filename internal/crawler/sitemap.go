package crawler

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/antchfx/xmlquery"
)

// maxSitemapFiles bounds the number of sitemap documents fetched per crawl,
// including children of sitemap indexes.
const maxSitemapFiles = 10

// sitemapURLs collects page URLs from the robots.txt sitemaps and the
// conventional /sitemap.xml of the seed origin. At most limit URLs are
// returned, in document order.
func (s *Spider) sitemapURLs(ctx context.Context, seed *url.URL, robots *robotsGate, limit int) []string {
	queue := append([]string{}, robots.sitemaps()...)
	queue = append(queue, (&url.URL{Scheme: seed.Scheme, Host: seed.Host, Path: "/sitemap.xml"}).String())

	seen := make(map[string]bool)
	var locs []string
	fetched := 0
	for len(queue) > 0 && fetched < maxSitemapFiles && len(locs) < limit {
		if ctx.Err() != nil {
			break
		}
		sm := queue[0]
		queue = queue[1:]
		if seen[sm] {
			continue
		}
		seen[sm] = true
		fetched++

		status, body, _, err := s.get(ctx, sm)
		if err != nil || status >= 400 {
			continue
		}
		pages, children, err := parseSitemap(body)
		if err != nil {
			s.warn("failed to parse sitemap " + sm + ": " + err.Error())
			continue
		}
		queue = append(queue, children...)
		for _, p := range pages {
			if len(locs) >= limit {
				break
			}
			locs = append(locs, p)
		}
	}
	return locs
}

// parseSitemap extracts <url><loc> entries and, for sitemap indexes,
// the child sitemap locations.
func parseSitemap(body []byte) (pages, children []string, err error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	for _, n := range xmlquery.Find(doc, "//url/loc") {
		if loc := strings.TrimSpace(n.InnerText()); loc != "" {
			pages = append(pages, loc)
		}
	}
	for _, n := range xmlquery.Find(doc, "//sitemap/loc") {
		if loc := strings.TrimSpace(n.InnerText()); loc != "" {
			children = append(children, loc)
		}
	}
	return pages, children, nil
}
