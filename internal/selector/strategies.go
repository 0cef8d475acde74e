package selector

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/nao1215/a11yscan/internal/model"
)

// Risk score weights.
const (
	formBonus       = 0.3
	mediaBonus      = 0.2
	inputBonus      = 0.02
	maxInputBonus   = 10
	passwordBonus   = 0.1
	depthPenalty    = 0.05
	templatePenalty = 0.5
)

// riskScore estimates how likely a page is to hold severe barriers.
func riskScore(p *model.DiscoveredPage) float64 {
	score := p.Priority.Weight()
	if p.Metadata.FormCount > 0 {
		score += formBonus
	}
	if p.Metadata.MediaCount > 0 {
		score += mediaBonus
	}
	score += float64(min(p.Metadata.InputCount, maxInputBonus)) * inputBonus
	if p.Metadata.HasPasswordField {
		score += passwordBonus
	}
	return score - float64(p.Depth)*depthPenalty
}

// riskBased greedily takes the highest scoring page. Pages sharing a
// template with already selected pages are penalized so one template cannot
// fill the whole sample.
func (s *sampler) riskBased() {
	base := make(map[string]float64, len(s.pages))
	for _, p := range s.pages {
		base[p.URL] = riskScore(p)
	}
	perGroup := make(map[string]int)

	for !s.full() {
		var best *model.DiscoveredPage
		bestScore := 0.0
		for _, p := range s.pages {
			if s.chosen[p.URL] {
				continue
			}
			score := base[p.URL] - float64(perGroup[p.TemplateGroupID])*templatePenalty
			if best == nil || score > bestScore {
				best, bestScore = p, score
			}
		}
		if best == nil {
			return
		}
		s.add(best.URL, fmt.Sprintf("risk score %.2f", base[best.URL]), base[best.URL])
		if best.TemplateGroupID != "" {
			perGroup[best.TemplateGroupID]++
		}
	}
}

// coverageOptimal takes representatives of the largest templates, then the
// first page of every still uncovered role, then the rest by priority.
func (s *sampler) coverageOptimal() {
	groups := slices.Clone(s.groups)
	slices.SortStableFunc(groups, func(a, b model.TemplateGroup) int {
		return cmp.Compare(b.Size(), a.Size())
	})
	for _, g := range groups {
		if s.full() {
			return
		}
		if g.Size() == 0 {
			continue
		}
		rep := g.RepresentativeURL
		if rep == "" {
			rep = g.MemberURLs[0]
		}
		if _, ok := s.byURL[rep]; !ok {
			continue
		}
		s.add(rep, fmt.Sprintf("representative of %s (%d members)", g.ID, g.Size()), s.weight(rep))
	}

	covered := make(map[model.Role]bool)
	for _, url := range s.selected {
		covered[s.byURL[url].Role] = true
	}
	for _, p := range s.pages {
		if s.full() {
			return
		}
		if !covered[p.Role] {
			covered[p.Role] = true
			s.add(p.URL, fmt.Sprintf("first %s page", p.Role), p.Priority.Weight())
		}
	}

	rest := slices.Clone(s.pages)
	slices.SortStableFunc(rest, func(a, b *model.DiscoveredPage) int {
		return cmp.Compare(a.Priority.Rank(), b.Priority.Rank())
	})
	for _, p := range rest {
		if s.full() {
			return
		}
		s.add(p.URL, "remaining by priority", p.Priority.Weight())
	}
}

// journeyUnits returns the configured journeys as pinned atomic units.
func (s *sampler) journeyUnits() []unit {
	var units []unit
	for i, j := range s.opts.Journeys {
		if urls := s.known(j); len(urls) > 0 {
			units = append(units, unit{urls: urls, reason: fmt.Sprintf("user journey %d", i+1), rank: pinnedRank})
		}
	}
	return units
}

// manual selects the given URLs in order, capped at MaxPages.
func (s *sampler) manual(urls []string) error {
	if len(urls) == 0 {
		return ErrEmptySelection
	}
	for _, raw := range urls {
		known := s.known([]string{raw})
		if len(known) == 0 {
			return fmt.Errorf("%w: %s", ErrUnknownURL, raw)
		}
	}
	for _, url := range s.known(urls) {
		if s.full() {
			break
		}
		s.add(url, "manual selection", s.weight(url))
	}
	return nil
}
