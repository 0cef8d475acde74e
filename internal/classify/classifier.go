package classify

import (
	"log/slog"
	"slices"

	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/urlutil"
)

// UserRule is an explicit override loaded from configuration. Pattern is a
// glob matched against the URL path. Role and Priority are optional; an
// empty value leaves that part to the built-in rules.
type UserRule struct {
	Pattern  string
	Role     model.Role
	Priority model.Priority
}

// Classifier assigns roles, priorities and tags.
// A Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	rules      []Rule
	taggers    []Tagger
	priorities map[model.Role]model.Priority
	userRules  []UserRule
	logger     *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithUserRules sets user override rules. They are evaluated in order
// before the built-in rules; the first matching rule wins.
func WithUserRules(rules []UserRule) Option {
	return func(c *Classifier) {
		c.userRules = slices.Clone(rules)
	}
}

// WithPriorityOverrides replaces entries of the role → priority table.
func WithPriorityOverrides(overrides map[model.Role]model.Priority) Option {
	return func(c *Classifier) {
		for role, p := range overrides {
			c.priorities[role] = p
		}
	}
}

// WithRules replaces the built-in rule list.
func WithRules(rules []Rule) Option {
	return func(c *Classifier) {
		c.rules = slices.Clone(rules)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// New creates a Classifier with the built-in rules.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		rules:      DefaultRules,
		taggers:    DefaultTaggers,
		priorities: make(map[model.Role]model.Priority, len(DefaultPriorities)),
		logger:     slog.Default(),
	}
	for role, p := range DefaultPriorities {
		c.priorities[role] = p
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the role and priority of a page.
func (c *Classifier) Classify(p *model.DiscoveredPage) (model.Role, model.Priority) {
	role, priority, _ := c.classify(p)
	return role, priority
}

// Tags returns the tags of a page in DefaultTaggers order.
func (c *Classifier) Tags(p *model.DiscoveredPage) []string {
	s := NewSignals(p)
	var tags []string
	for _, t := range c.taggers {
		if t.Match(s) {
			tags = append(tags, t.Tag)
		}
	}
	return tags
}

// Apply classifies p in place, setting Role, Priority and Tags.
func (c *Classifier) Apply(p *model.DiscoveredPage) {
	role, priority, rule := c.classify(p)
	p.Role = role
	p.Priority = priority
	p.Tags = c.Tags(p)
	c.logger.Debug("page classified", "page_url", p.URL, "role", role, "priority", priority, "rule", rule)
}

func (c *Classifier) classify(p *model.DiscoveredPage) (model.Role, model.Priority, string) {
	var (
		role         model.Role
		priority     model.Priority
		matchedRule  string
		userPriority model.Priority
	)

	path := urlutil.Path(p.URL)
	for _, ur := range c.userRules {
		if !urlutil.MatchPattern(ur.Pattern, path) {
			continue
		}
		if ur.Role != "" {
			role = ur.Role
			matchedRule = "user:" + ur.Pattern
		}
		userPriority = ur.Priority
		break
	}

	if role == "" {
		role = model.RoleOther
		matchedRule = "default"
		s := NewSignals(p)
		for _, r := range c.rules {
			if r.Match(s) {
				role = r.Role
				matchedRule = r.Name
				break
			}
		}
	}

	priority = c.priorities[role]
	if priority == "" {
		priority = model.PriorityOptional
	}
	if userPriority != "" {
		priority = userPriority
	}
	return role, priority, matchedRule
}
