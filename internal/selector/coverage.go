package selector

import (
	"math"
	"slices"

	"github.com/nao1215/a11yscan/internal/model"
)

// ComputeCoverage returns role and template coverage of selected over the
// discovered pages.
func ComputeCoverage(pages []*model.DiscoveredPage, groups []model.TemplateGroup, selected []string) model.Coverage {
	discovered := make(map[model.Role]bool)
	covered := make(map[model.Role]bool)
	for _, p := range pages {
		discovered[p.Role] = true
		if slices.Contains(selected, p.URL) {
			covered[p.Role] = true
		}
	}

	cov := model.Coverage{
		RolesDiscovered: len(discovered),
		RolesCovered:    len(covered),
		GroupsTotal:     len(groups),
	}
	for _, role := range model.AllRoles {
		if discovered[role] && !covered[role] {
			cov.UncoveredRoles = append(cov.UncoveredRoles, role)
		}
	}
	for _, g := range groups {
		if slices.ContainsFunc(g.MemberURLs, func(u string) bool { return slices.Contains(selected, u) }) {
			cov.GroupsCovered++
		}
	}
	cov.RolePercent = percent(cov.RolesCovered, cov.RolesDiscovered)
	cov.TemplatePercent = percent(cov.GroupsCovered, cov.GroupsTotal)
	return cov
}

// percent returns part/whole in percent with one decimal; 0 for an empty whole.
func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)*1000/float64(whole)) / 10
}
