package selector

import (
	"fmt"

	"github.com/nao1215/a11yscan/internal/model"
)

// largeGroupSize is the member count above which a template group
// contributes a random member besides its representative.
const largeGroupSize = 5

// wcagEMUnits builds the WCAG-EM style sample:
//  1. the home page representative, accessibility statements and sitemaps
//  2. one page per template group, plus a seeded random member for groups
//     with more than five members
//  3. critical paths as atomic units
//  4. the first contact form page and the first login page
func (s *sampler) wcagEMUnits() []unit {
	var units []unit

	if home := s.homeRepresentative(); home != "" {
		units = append(units, unit{urls: []string{home}, reason: "home page", rank: pinnedRank})
	}
	for _, p := range s.pages {
		switch {
		case p.HasTag(model.TagAccessibilityStatement):
			units = append(units, unit{urls: []string{p.URL}, reason: "accessibility statement", rank: pinnedRank})
		case p.HasTag(model.TagSitemap):
			units = append(units, unit{urls: []string{p.URL}, reason: "sitemap page", rank: pinnedRank})
		}
	}

	for _, g := range s.groups {
		if g.Size() == 0 {
			continue
		}
		rep := g.RepresentativeURL
		if rep == "" {
			rep = g.MemberURLs[0]
		}
		if g.Size() > largeGroupSize {
			units = append(units, unit{
				urls:   []string{rep},
				reason: fmt.Sprintf("representative of %s (%d members)", g.ID, g.Size()),
				rank:   s.rankOf(rep),
			})
			others := make([]string, 0, g.Size()-1)
			for _, m := range g.MemberURLs {
				if m != rep {
					others = append(others, m)
				}
			}
			pick := others[s.rng.IntN(len(others))]
			units = append(units, unit{
				urls:   []string{pick},
				reason: fmt.Sprintf("random member of %s", g.ID),
				rank:   s.rankOf(pick),
			})
			continue
		}
		first := g.MemberURLs[0]
		units = append(units, unit{
			urls:   []string{first},
			reason: fmt.Sprintf("first member of %s", g.ID),
			rank:   s.rankOf(first),
		})
	}

	units = append(units, s.criticalPathUnits()...)

	if p := s.first(func(p *model.DiscoveredPage) bool {
		return p.HasTag(model.TagContact) && (p.Role == model.RoleForm || p.Metadata.FormCount > 0)
	}); p != nil {
		units = append(units, unit{urls: []string{p.URL}, reason: "contact form", rank: s.rankOf(p.URL)})
	}
	if p := s.first(func(p *model.DiscoveredPage) bool {
		return p.HasTag(model.TagLogin)
	}); p != nil {
		units = append(units, unit{urls: []string{p.URL}, reason: "login page", rank: s.rankOf(p.URL)})
	}

	return units
}

// criticalPathUnits returns the configured critical paths and the checkout
// flow, each as one atomic unit.
func (s *sampler) criticalPathUnits() []unit {
	var units []unit
	for i, path := range s.opts.CriticalPaths {
		if urls := s.known(path); len(urls) > 0 {
			units = append(units, unit{
				urls:   urls,
				reason: fmt.Sprintf("critical path %d", i+1),
				rank:   s.rankOf(urls...),
			})
		}
	}

	var checkout []string
	for _, p := range s.pages {
		if p.Role == model.RoleCheckout {
			checkout = append(checkout, p.URL)
		}
	}
	if len(checkout) > 0 {
		units = append(units, unit{urls: checkout, reason: "checkout flow", rank: s.rankOf(checkout...)})
	}
	return units
}

// homeRepresentative returns the representative of the home page's template
// group. Without a home-role page the shallowest page stands in.
func (s *sampler) homeRepresentative() string {
	home := s.first(func(p *model.DiscoveredPage) bool { return p.Role == model.RoleHome })
	if home == nil {
		for _, p := range s.pages {
			if home == nil || p.Depth < home.Depth {
				home = p
			}
		}
	}
	if g, ok := s.groupOf(home.URL); ok && g.RepresentativeURL != "" {
		return g.RepresentativeURL
	}
	return home.URL
}

// first returns the first page in discovery order matching fn.
func (s *sampler) first(fn func(*model.DiscoveredPage) bool) *model.DiscoveredPage {
	for _, p := range s.pages {
		if fn(p) {
			return p
		}
	}
	return nil
}
