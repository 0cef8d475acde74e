package classify

import (
	"github.com/nao1215/a11yscan/internal/config"
	"github.com/nao1215/a11yscan/internal/model"
)

// FromConfig returns the options for the classifier section of a config
// file. Entries with an unknown role or priority are skipped; File.Validate
// reports them.
func FromConfig(cc config.ClassifierConfig) []Option {
	rules := make([]UserRule, 0, len(cc.Rules))
	for _, r := range cc.Rules {
		ur := UserRule{Pattern: r.Pattern}
		if role, ok := model.ParseRole(r.Role); ok {
			ur.Role = role
		}
		if p, ok := model.ParsePriority(r.Priority); ok {
			ur.Priority = p
		}
		rules = append(rules, ur)
	}

	overrides := make(map[model.Role]model.Priority, len(cc.Priorities))
	for name, prio := range cc.Priorities {
		role, ok := model.ParseRole(name)
		if !ok {
			continue
		}
		if p, ok := model.ParsePriority(prio); ok {
			overrides[role] = p
		}
	}

	var opts []Option
	if len(rules) > 0 {
		opts = append(opts, WithUserRules(rules))
	}
	if len(overrides) > 0 {
		opts = append(opts, WithPriorityOverrides(overrides))
	}
	return opts
}
