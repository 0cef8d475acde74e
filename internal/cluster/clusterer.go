package cluster

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/nao1215/a11yscan/internal/model"
)

// DefaultThreshold is the minimum similarity for joining a group.
const DefaultThreshold = 0.85

// group is the mutable state behind a model.TemplateGroup.
type group struct {
	id                string
	members           []string
	representativeSig string
}

// Clusterer assigns pages to template groups as they arrive.
// It is safe for concurrent use.
type Clusterer struct {
	threshold  float64
	similarity SimilarityFunc
	logger     *slog.Logger

	mu     sync.Mutex
	groups []*group
	byURL  map[string]*group
}

// Option configures a Clusterer.
type Option func(*Clusterer)

// WithThreshold sets the similarity threshold (inclusive).
func WithThreshold(threshold float64) Option {
	return func(c *Clusterer) {
		c.threshold = threshold
	}
}

// WithSimilarity replaces the similarity function.
func WithSimilarity(fn SimilarityFunc) Option {
	return func(c *Clusterer) {
		c.similarity = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Clusterer) {
		c.logger = logger
	}
}

// New creates a Clusterer with shingle similarity and DefaultThreshold.
func New(opts ...Option) *Clusterer {
	c := &Clusterer{
		threshold:  DefaultThreshold,
		similarity: ShingleSimilarity,
		logger:     slog.Default(),
		byURL:      make(map[string]*group),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Threshold returns the configured threshold.
func (c *Clusterer) Threshold() float64 {
	return c.threshold
}

// Add assigns a page to a group and returns the group id and the similarity
// to the group's representative (1 for a newly opened group). Adding a URL
// twice returns its existing assignment.
func (c *Clusterer) Add(url, signature string) (string, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if g, ok := c.byURL[url]; ok {
		return g.id, c.similarity(signature, g.representativeSig)
	}

	var (
		best      *group
		bestScore float64
	)
	for _, g := range c.groups {
		score := c.similarity(signature, g.representativeSig)
		if score < c.threshold {
			continue
		}
		// Highest similarity wins; ties go to the larger group, then the
		// older one.
		if best == nil || score > bestScore || (score == bestScore && len(g.members) > len(best.members)) {
			best, bestScore = g, score
		}
	}

	if best == nil {
		best = &group{
			id:                fmt.Sprintf("tg-%03d", len(c.groups)+1),
			representativeSig: signature,
		}
		bestScore = 1
		c.groups = append(c.groups, best)
		c.logger.Debug("template group opened", "group_id", best.id, "page_url", url)
	}

	best.members = append(best.members, url)
	c.byURL[url] = best
	return best.id, bestScore
}

// GroupOf returns the group id of a page.
func (c *Clusterer) GroupOf(url string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.byURL[url]
	if !ok {
		return "", false
	}
	return g.id, true
}

// Len returns the number of groups.
func (c *Clusterer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.groups)
}

// Groups returns a snapshot of all groups in creation order.
func (c *Clusterer) Groups() []model.TemplateGroup {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.TemplateGroup, 0, len(c.groups))
	for _, g := range c.groups {
		out = append(out, model.TemplateGroup{
			ID:                  g.id,
			MemberURLs:          slices.Clone(g.members),
			RepresentativeURL:   g.members[0],
			SimilarityThreshold: c.threshold,
		})
	}
	return out
}

// Recluster builds groups from scratch for the given pages, visiting them in
// order of descending group size of a first pass so that large templates
// elect their representative before outliers can. Page TemplateGroupID
// fields are updated in place and the new groups returned.
func Recluster(pages []*model.DiscoveredPage, opts ...Option) []model.TemplateGroup {
	first := New(opts...)
	for _, p := range pages {
		first.Add(p.URL, p.ContentSignature)
	}
	size := make(map[string]int)
	for _, g := range first.Groups() {
		for _, u := range g.MemberURLs {
			size[u] = g.Size()
		}
	}

	ordered := slices.Clone(pages)
	slices.SortStableFunc(ordered, func(a, b *model.DiscoveredPage) int {
		return size[b.URL] - size[a.URL]
	})

	second := New(opts...)
	for _, p := range ordered {
		p.TemplateGroupID, _ = second.Add(p.URL, p.ContentSignature)
	}
	return second.Groups()
}
