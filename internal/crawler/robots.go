package crawler

import (
	"context"
	"net/url"

	"github.com/temoto/robotstxt"
)

// robotsGate answers robots.txt questions for one host.
// A nil gate allows everything.
type robotsGate struct {
	data      *robotstxt.RobotsData
	userAgent string
}

// loadRobots fetches /robots.txt of the seed's origin. A missing or broken
// robots.txt allows everything, following the robots exclusion protocol.
func (s *Spider) loadRobots(ctx context.Context, seed *url.URL) *robotsGate {
	robotsURL := &url.URL{Scheme: seed.Scheme, Host: seed.Host, Path: "/robots.txt"}

	status, body, _, err := s.get(ctx, robotsURL.String())
	if err != nil {
		s.logger.Debug("robots.txt unavailable", "url", robotsURL.String(), "error", err)
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(status, body)
	if err != nil {
		s.warn("failed to parse " + robotsURL.String() + ": " + err.Error())
		return nil
	}
	return &robotsGate{data: data, userAgent: s.userAgent}
}

// allowed reports whether rawURL may be fetched.
func (g *robotsGate) allowed(rawURL string) bool {
	if g == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return g.data.TestAgent(path, g.userAgent)
}

// sitemaps returns the Sitemap: entries of robots.txt.
func (g *robotsGate) sitemaps() []string {
	if g == nil {
		return nil
	}
	return g.data.Sitemaps
}
