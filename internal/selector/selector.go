package selector

import (
	"cmp"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/urlutil"
)

var (
	// ErrUnknownStrategy is returned for a strategy name that is not supported.
	ErrUnknownStrategy = errors.New("unknown selection strategy")

	// ErrNoPages is returned when there is nothing to select from.
	ErrNoPages = errors.New("no discovered pages to select from")

	// ErrInvalidMaxPages is returned when MaxPages is not positive.
	ErrInvalidMaxPages = errors.New("max pages must be positive")

	// ErrUnknownURL is returned when a manual selection names an undiscovered page.
	ErrUnknownURL = errors.New("url was not discovered")

	// ErrEmptySelection is returned when a manual selection is empty.
	ErrEmptySelection = errors.New("selection is empty")
)

// Options configures one selection run.
type Options struct {
	Strategy model.Strategy
	MaxPages int

	// Seed drives the random choices of the strategy.
	Seed uint64

	// ManualURLs is the selection of the manual strategy.
	ManualURLs []string

	// CriticalPaths are page sequences always sampled as a whole.
	CriticalPaths [][]string

	// Journeys are the page sequences of the user_journey strategy.
	Journeys [][]string
}

// Select runs the configured strategy over pages and their template groups.
func Select(pages []*model.DiscoveredPage, groups []model.TemplateGroup, opts Options) (*model.SelectionResult, error) {
	if opts.Strategy == "" {
		opts.Strategy = model.StrategyWCAGEM
	}
	if !opts.Strategy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, opts.Strategy)
	}
	if opts.MaxPages <= 0 {
		return nil, ErrInvalidMaxPages
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	s := newSampler(pages, groups, opts)
	switch opts.Strategy {
	case model.StrategyWCAGEM:
		s.fill(s.wcagEMUnits())
	case model.StrategyRiskBased:
		s.riskBased()
	case model.StrategyCoverageOptimal:
		s.coverageOptimal()
	case model.StrategyUserJourney:
		s.fill(append(s.journeyUnits(), s.wcagEMUnits()...))
	case model.StrategyManual:
		if err := s.manual(opts.ManualURLs); err != nil {
			return nil, err
		}
	}

	return &model.SelectionResult{
		SelectedURLs: slices.Clone(s.selected),
		Strategy:     opts.Strategy,
		Seed:         opts.Seed,
		MaxPages:     opts.MaxPages,
		Coverage:     ComputeCoverage(pages, groups, s.selected),
		Rationale:    s.rationale,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Apply returns copies of pages with Selected set according to result.
func Apply(pages []*model.DiscoveredPage, result *model.SelectionResult) []*model.DiscoveredPage {
	out := make([]*model.DiscoveredPage, 0, len(pages))
	for _, p := range pages {
		c := p.Clone()
		c.Selected = result != nil && result.Contains(p.URL)
		out = append(out, c)
	}
	return out
}

// unit is a set of pages that is selected as a whole or not at all.
type unit struct {
	urls   []string
	reason string

	// rank orders units; lower goes first. Pinned units use -1.
	rank int
}

const pinnedRank = -1

// sampler holds the state of one selection run.
type sampler struct {
	pages    []*model.DiscoveredPage
	byURL    map[string]*model.DiscoveredPage
	groups   []model.TemplateGroup
	opts     Options
	rng      *rand.Rand
	selected []string
	chosen   map[string]bool

	rationale []model.PageRationale
}

func newSampler(pages []*model.DiscoveredPage, groups []model.TemplateGroup, opts Options) *sampler {
	s := &sampler{
		pages:  pages,
		byURL:  make(map[string]*model.DiscoveredPage, len(pages)),
		groups: groups,
		opts:   opts,
		rng:    rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)), //nolint:gosec // reproducible sampling, not security
		chosen: make(map[string]bool),
	}
	for _, p := range pages {
		s.byURL[p.URL] = p
	}
	return s
}

// full reports whether the page budget is used up.
func (s *sampler) full() bool {
	return len(s.selected) >= s.opts.MaxPages
}

// add selects url with the given reason and score.
func (s *sampler) add(url, reason string, score float64) {
	if s.chosen[url] {
		return
	}
	s.chosen[url] = true
	s.selected = append(s.selected, url)
	s.rationale = append(s.rationale, model.PageRationale{URL: url, Reason: reason, Score: score})
}

// fill adds units in rank order, skipping units that no longer fit.
func (s *sampler) fill(units []unit) {
	slices.SortStableFunc(units, func(a, b unit) int {
		return cmp.Compare(a.rank, b.rank)
	})
	for _, u := range units {
		if s.full() {
			return
		}
		var fresh []string
		for _, url := range u.urls {
			if _, ok := s.byURL[url]; !ok {
				continue
			}
			if !s.chosen[url] && !slices.Contains(fresh, url) {
				fresh = append(fresh, url)
			}
		}
		if len(fresh) == 0 || len(s.selected)+len(fresh) > s.opts.MaxPages {
			continue
		}
		for _, url := range fresh {
			s.add(url, u.reason, s.weight(url))
		}
	}
}

// weight returns the priority weight of a page.
func (s *sampler) weight(url string) float64 {
	if p, ok := s.byURL[url]; ok {
		return p.Priority.Weight()
	}
	return 0
}

// rankOf returns the best priority rank among urls.
func (s *sampler) rankOf(urls ...string) int {
	best := model.Priority("").Rank()
	for _, url := range urls {
		if p, ok := s.byURL[url]; ok {
			best = min(best, p.Priority.Rank())
		}
	}
	return best
}

// known returns the normalized urls that were discovered, in order.
func (s *sampler) known(urls []string) []string {
	var out []string
	for _, raw := range urls {
		url := raw
		if n, err := urlutil.Normalize(raw); err == nil {
			url = n
		}
		if _, ok := s.byURL[url]; ok && !slices.Contains(out, url) {
			out = append(out, url)
		}
	}
	return out
}

// groupOf returns the template group containing url.
func (s *sampler) groupOf(url string) (model.TemplateGroup, bool) {
	if p, ok := s.byURL[url]; ok && p.TemplateGroupID != "" {
		for _, g := range s.groups {
			if g.ID == p.TemplateGroupID {
				return g, true
			}
		}
	}
	for _, g := range s.groups {
		if slices.Contains(g.MemberURLs, url) {
			return g, true
		}
	}
	return model.TemplateGroup{}, false
}
