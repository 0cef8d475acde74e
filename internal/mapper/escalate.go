package mapper

import (
	"slices"

	"github.com/nao1215/a11yscan/internal/model"
)

// EscalationContext is what escalation rules may look at.
type EscalationContext struct {
	Criterion string
	Level     model.Level
	Impacts   []model.Impact
	Priority  model.Priority
	Role      model.Role
}

// EscalationRule returns a severity floor for a finding. When ok is false
// the rule does not apply.
type EscalationRule struct {
	Name  string
	Floor func(ctx EscalationContext) (floor model.Severity, ok bool)
}

// DefaultEscalations are applied by New unless replaced with WithEscalations.
var DefaultEscalations = []EscalationRule{
	{
		Name: "level-a-on-critical-page",
		Floor: func(ctx EscalationContext) (model.Severity, bool) {
			return model.SeverityHigh, ctx.Level == model.LevelA && ctx.Priority == model.PriorityCritical
		},
	},
	{
		Name: "keyboard-blocker-on-checkout",
		Floor: func(ctx EscalationContext) (model.Severity, bool) {
			keyboard := ctx.Criterion == "2.1.1" || ctx.Criterion == "2.1.2"
			return model.SeverityCritical, keyboard && ctx.Role == model.RoleCheckout
		},
	},
	{
		Name: "unlabelled-control-in-form",
		Floor: func(ctx EscalationContext) (model.Severity, bool) {
			if ctx.Role != model.RoleForm && ctx.Role != model.RoleCheckout {
				return model.SeverityLow, false
			}
			labelled := ctx.Criterion == "3.3.2" || ctx.Criterion == "4.1.2"
			return model.SeverityHigh, labelled && slices.Contains(ctx.Impacts, model.ImpactBlind)
		},
	},
}

// Escalate applies rules to s and returns the result. The result is never
// lower than s.
func Escalate(s model.Severity, ctx EscalationContext, rules []EscalationRule) model.Severity {
	out := s
	for _, r := range rules {
		if floor, ok := r.Floor(ctx); ok {
			out = model.MaxSeverity(out, floor)
		}
	}
	return out
}
