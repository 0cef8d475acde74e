package config

import (
	"fmt"
	"maps"
	"time"

	"github.com/nao1215/a11yscan/internal/model"
)

// SiteConfig holds per-site crawl settings.
type SiteConfig struct {
	// Cookie is sent with every request to this site ("name=value; ...").
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra request headers.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the crawl depth when non-zero.
	Depth int `yaml:"depth,omitempty"`

	// MaxPages overrides the discovery page limit when non-zero.
	MaxPages int `yaml:"maxPages,omitempty"`

	// ExcludePatterns are URL path globs never crawled.
	ExcludePatterns []string `yaml:"excludePatterns,omitempty"`

	// AllowedDomains are extra domains the crawler may follow.
	AllowedDomains []string `yaml:"allowedDomains,omitempty"`
}

// ClassifierRule overrides the role and/or priority of matching pages.
type ClassifierRule struct {
	// Pattern is a glob matched against the URL path, e.g. "/shop/*".
	Pattern  string `yaml:"pattern"`
	Role     string `yaml:"role,omitempty"`
	Priority string `yaml:"priority,omitempty"`
}

// ClassifierConfig holds page classifier overrides.
type ClassifierConfig struct {
	// Rules are evaluated in order before the built-in rules.
	Rules []ClassifierRule `yaml:"rules,omitempty"`

	// Priorities overrides the role → priority table.
	Priorities map[string]string `yaml:"priorities,omitempty"`
}

// AdapterConfig defines an external analyzer run as a command.
// Arguments may contain the placeholders {url} and {timeout_ms}.
type AdapterConfig struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args,omitempty"`
	Format  string            `yaml:"format,omitempty"`
	Timeout time.Duration     `yaml:"timeout,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	Enabled *bool             `yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the adapter is enabled; adapters are enabled
// unless explicitly disabled.
func (a AdapterConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// EventsConfig configures external event sinks.
type EventsConfig struct {
	RedisURL string `yaml:"redisUrl,omitempty"`
}

// File represents the structure of the .a11yscan configuration file.
type File struct {
	// Defaults applies to every site unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps host names to their configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	Classifier ClassifierConfig `yaml:"classifier,omitempty"`
	Adapters   []AdapterConfig  `yaml:"adapters,omitempty"`

	// CriticalPaths are page sequences that are always sampled as a unit.
	CriticalPaths [][]string `yaml:"criticalPaths,omitempty"`

	// Journeys are the page sequences used by the user_journey strategy.
	Journeys [][]string `yaml:"journeys,omitempty"`

	Events EventsConfig `yaml:"events,omitempty"`
}

// GetSiteConfig returns the configuration for host merged over Defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	siteConfig, ok := cf.Sites[host]
	if !ok {
		return result
	}
	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.Depth != 0 {
		result.Depth = siteConfig.Depth
	}
	if siteConfig.MaxPages != 0 {
		result.MaxPages = siteConfig.MaxPages
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}
	if len(siteConfig.ExcludePatterns) > 0 {
		result.ExcludePatterns = siteConfig.ExcludePatterns
	}
	if len(siteConfig.AllowedDomains) > 0 {
		result.AllowedDomains = siteConfig.AllowedDomains
	}
	return result
}

// Validate checks classifier rules and adapter definitions.
func (cf *File) Validate() error {
	for i, r := range cf.Classifier.Rules {
		if r.Pattern == "" {
			return fmt.Errorf("classifier rule %d: empty pattern", i+1)
		}
		if r.Role != "" {
			if _, ok := model.ParseRole(r.Role); !ok {
				return fmt.Errorf("classifier rule %d: unknown role %q", i+1, r.Role)
			}
		}
		if r.Priority != "" {
			if _, ok := model.ParsePriority(r.Priority); !ok {
				return fmt.Errorf("classifier rule %d: unknown priority %q", i+1, r.Priority)
			}
		}
	}
	for role, p := range cf.Classifier.Priorities {
		if _, ok := model.ParseRole(role); !ok {
			return fmt.Errorf("classifier priorities: unknown role %q", role)
		}
		if _, ok := model.ParsePriority(p); !ok {
			return fmt.Errorf("classifier priorities: unknown priority %q", p)
		}
	}
	for _, a := range cf.Adapters {
		if a.Name == "" || a.Command == "" {
			return ErrInvalidAdapter
		}
	}
	return nil
}

// EnabledAdapters returns the names of enabled adapters in file order.
func (cf *File) EnabledAdapters() []string {
	var names []string
	for _, a := range cf.Adapters {
		if a.IsEnabled() {
			names = append(names, a.Name)
		}
	}
	return names
}

// ApplySite merges the site configuration for host into c. Values given on
// the command line (non-default) win over the file.
func (c *Config) ApplySite(host string) {
	if c.File == nil {
		return
	}
	site := c.File.GetSiteConfig(host)
	if c.Cookie == "" {
		c.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		merged := maps.Clone(site.Headers)
		maps.Copy(merged, c.Headers)
		c.Headers = merged
	}
	if site.Depth != 0 && c.MaxDepth == DefaultMaxDepth {
		c.MaxDepth = site.Depth
	}
	if site.MaxPages != 0 && c.MaxPages == DefaultMaxPages {
		c.MaxPages = site.MaxPages
	}
	c.ExcludePatterns = append(c.ExcludePatterns, site.ExcludePatterns...)
	c.AllowedDomains = append(c.AllowedDomains, site.AllowedDomains...)
	if len(c.Adapters) == 0 {
		c.Adapters = c.File.EnabledAdapters()
	}
	if c.RedisURL == "" {
		c.RedisURL = c.File.Events.RedisURL
	}
}
