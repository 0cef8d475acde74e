package urlutil

import (
	"errors"
	"net"
	"net/url"
	"path/filepath"
	"strings"
)

// ErrNotHTTP is returned for URLs that are not http or https.
var ErrNotHTTP = errors.New("url scheme must be http or https")

// Normalize returns the canonical form of an absolute URL used as the
// page key: fragment removed, scheme and host lower-cased, default ports
// dropped and an empty path replaced by "/".
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrNotHTTP
	}
	if u.Host == "" {
		return "", errors.New("url has no host")
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	if host, port, err := net.SplitHostPort(u.Host); err == nil {
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			u.Host = host
		}
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// ParseSeed validates a seed URL. Seeds without a scheme get https.
func ParseSeed(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return Normalize(raw)
}

// Path returns the path of a URL, "/" when it is empty or unparsable.
func Path(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// Host returns the lower-cased hostname of a URL without port.
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// InScope reports whether target is on the seed's host or on one of the
// allowed domains. An allowed domain also admits its subdomains.
func InScope(seedHost, target string, allowed []string) bool {
	host := Host(target)
	if host == "" {
		return false
	}
	if strings.EqualFold(host, seedHost) {
		return true
	}
	for _, d := range allowed {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "*."))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// MatchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing "/*" to match everything below a prefix
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users/1"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func MatchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Patterns without a slash also match the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}
	return false
}

// MatchAny reports whether path matches at least one pattern.
func MatchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if MatchPattern(p, path) {
			return true
		}
	}
	return false
}
