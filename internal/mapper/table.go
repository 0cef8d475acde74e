package mapper

import "github.com/nao1215/a11yscan/internal/model"

// TableVersion identifies the revision of the built-in mapping tables.
// It is recorded with scan results so findings can be re-audited later.
const TableVersion = "2025.10"

// Adapter families. Several tools share rule identifiers; lighthouse, for
// example, reports axe-core rule ids.
const (
	FamilyAxe       = "axe"
	FamilyPa11y     = "pa11y"
	FamilyHTMLCheck = "htmlcheck"
)

// familyAliases maps adapter names to the family whose table they use.
var familyAliases = map[string]string{
	"axe":        FamilyAxe,
	"axe-core":   FamilyAxe,
	"lighthouse": FamilyAxe,
	"pa11y":      FamilyPa11y,
	"htmlcs":     FamilyPa11y,
	"htmlcheck":  FamilyHTMLCheck,
}

// Rule is one mapping table entry.
type Rule struct {
	// Criterion is the WCAG success criterion id, empty for best-practice rules.
	Criterion string

	// Principle is only needed when Criterion is empty.
	Principle model.Principle

	// Impacts overrides the criterion's default impact set when non-empty.
	Impacts []model.Impact

	// Severity is the base severity before escalation.
	Severity model.Severity

	// Description is used when the tool did not send a message.
	Description string
}

// Table maps adapter family → rule id → rule.
type Table map[string]map[string]Rule

// criterionDefaults holds impacts and base severity per success criterion.
// Table entries that only name a criterion inherit these values.
var criterionDefaults = map[string]Rule{
	"1.1.1":  {Impacts: []model.Impact{model.ImpactBlind, model.ImpactLowVision}, Severity: model.SeverityHigh},
	"1.2.1":  {Impacts: []model.Impact{model.ImpactBlind, model.ImpactDeaf}, Severity: model.SeverityHigh},
	"1.2.2":  {Impacts: []model.Impact{model.ImpactDeaf}, Severity: model.SeverityHigh},
	"1.2.3":  {Impacts: []model.Impact{model.ImpactBlind}, Severity: model.SeverityMedium},
	"1.2.5":  {Impacts: []model.Impact{model.ImpactBlind}, Severity: model.SeverityMedium},
	"1.3.1":  {Impacts: []model.Impact{model.ImpactBlind}, Severity: model.SeverityMedium},
	"1.3.2":  {Impacts: []model.Impact{model.ImpactBlind}, Severity: model.SeverityMedium},
	"1.3.4":  {Impacts: []model.Impact{model.ImpactMotor, model.ImpactLowVision}, Severity: model.SeverityMedium},
	"1.3.5":  {Impacts: []model.Impact{model.ImpactCognitive, model.ImpactMotor}, Severity: model.SeverityMedium},
	"1.4.1":  {Impacts: []model.Impact{model.ImpactColorBlind}, Severity: model.SeverityMedium},
	"1.4.2":  {Impacts: []model.Impact{model.ImpactBlind, model.ImpactCognitive}, Severity: model.SeverityMedium},
	"1.4.3":  {Impacts: []model.Impact{model.ImpactLowVision, model.ImpactColorBlind}, Severity: model.SeverityMedium},
	"1.4.4":  {Impacts: []model.Impact{model.ImpactLowVision}, Severity: model.SeverityMedium},
	"1.4.10": {Impacts: []model.Impact{model.ImpactLowVision}, Severity: model.SeverityMedium},
	"1.4.11": {Impacts: []model.Impact{model.ImpactLowVision}, Severity: model.SeverityMedium},
	"1.4.12": {Impacts: []model.Impact{model.ImpactLowVision, model.ImpactCognitive}, Severity: model.SeverityLow},
	"2.1.1":  {Impacts: []model.Impact{model.ImpactBlind, model.ImpactMotor}, Severity: model.SeverityCritical},
	"2.1.2":  {Impacts: []model.Impact{model.ImpactBlind, model.ImpactMotor}, Severity: model.SeverityCritical},
	"2.2.1":  {Impacts: []model.Impact{model.ImpactCognitive, model.ImpactMotor}, Severity: model.SeverityHigh},
	"2.2.2":  {Impacts: []model.Impact{model.ImpactCognitive}, Severity: model.SeverityMedium},
	"2.4.1":  {Impacts: []model.Impact{model.ImpactBlind, model.ImpactMotor}, Severity: model.SeverityMedium},
	"2.4.2":  {Impacts: []model.Impact{model.ImpactBlind, model.ImpactCognitive}, Severity: model.SeverityMedium},
	"2.4.3":  {Impacts: []model.Impact{model.ImpactBlind, model.ImpactMotor}, Severity: model.SeverityMedium},
	"2.4.4":  {Impacts: []model.Impact{model.ImpactBlind, model.ImpactCognitive}, Severity: model.SeverityMedium},
	"2.4.6":  {Impacts: []model.Impact{model.ImpactBlind, model.ImpactCognitive}, Severity: model.SeverityLow},
	"2.4.7":  {Impacts: []model.Impact{model.ImpactLowVision, model.ImpactMotor}, Severity: model.SeverityHigh},
	"2.5.3":  {Impacts: []model.Impact{model.ImpactSpeech, model.ImpactBlind}, Severity: model.SeverityMedium},
	"2.5.8":  {Impacts: []model.Impact{model.ImpactMotor}, Severity: model.SeverityLow},
	"3.1.1":  {Impacts: []model.Impact{model.ImpactBlind, model.ImpactCognitive}, Severity: model.SeverityMedium},
	"3.1.2":  {Impacts: []model.Impact{model.ImpactBlind}, Severity: model.SeverityLow},
	"3.2.1":  {Impacts: []model.Impact{model.ImpactCognitive, model.ImpactBlind}, Severity: model.SeverityMedium},
	"3.2.2":  {Impacts: []model.Impact{model.ImpactCognitive, model.ImpactBlind}, Severity: model.SeverityMedium},
	"3.3.1":  {Impacts: []model.Impact{model.ImpactBlind, model.ImpactCognitive}, Severity: model.SeverityHigh},
	"3.3.2":  {Impacts: []model.Impact{model.ImpactBlind, model.ImpactCognitive}, Severity: model.SeverityHigh},
	"4.1.1":  {Impacts: []model.Impact{model.ImpactBlind}, Severity: model.SeverityLow},
	"4.1.2":  {Impacts: []model.Impact{model.ImpactBlind, model.ImpactMotor, model.ImpactSpeech}, Severity: model.SeverityHigh},
	"4.1.3":  {Impacts: []model.Impact{model.ImpactBlind}, Severity: model.SeverityMedium},
}

// axeRules covers axe-core rule ids (also reported by lighthouse).
var axeRules = map[string]Rule{
	"area-alt":                     crit("1.1.1"),
	"image-alt":                    crit("1.1.1").withSeverity(model.SeverityCritical),
	"input-image-alt":              crit("1.1.1").withSeverity(model.SeverityCritical),
	"object-alt":                   crit("1.1.1"),
	"role-img-alt":                 crit("1.1.1"),
	"svg-img-alt":                  crit("1.1.1"),
	"audio-caption":                crit("1.2.1"),
	"video-caption":                crit("1.2.2").withSeverity(model.SeverityCritical),
	"definition-list":              crit("1.3.1"),
	"dlitem":                       crit("1.3.1"),
	"list":                         crit("1.3.1"),
	"listitem":                     crit("1.3.1"),
	"th-has-data-cells":            crit("1.3.1"),
	"td-headers-attr":              crit("1.3.1"),
	"td-has-header":                crit("1.3.1").withSeverity(model.SeverityHigh),
	"p-as-heading":                 crit("1.3.1"),
	"aria-required-children":       crit("1.3.1").withSeverity(model.SeverityCritical),
	"aria-required-parent":         crit("1.3.1").withSeverity(model.SeverityCritical),
	"css-orientation-lock":         crit("1.3.4"),
	"autocomplete-valid":           crit("1.3.5"),
	"link-in-text-block":           crit("1.4.1"),
	"no-autoplay-audio":            crit("1.4.2"),
	"color-contrast":               crit("1.4.3").withSeverity(model.SeverityHigh),
	"meta-viewport":                crit("1.4.4").withSeverity(model.SeverityHigh),
	"avoid-inline-spacing":         crit("1.4.12"),
	"scrollable-region-focusable":  crit("2.1.1").withSeverity(model.SeverityHigh),
	"server-side-image-map":        crit("2.1.1").withSeverity(model.SeverityMedium),
	"frame-focusable-content":      crit("2.1.1").withSeverity(model.SeverityHigh),
	"meta-refresh":                 crit("2.2.1").withSeverity(model.SeverityCritical),
	"blink":                        crit("2.2.2").withSeverity(model.SeverityHigh),
	"marquee":                      crit("2.2.2").withSeverity(model.SeverityHigh),
	"bypass":                       crit("2.4.1"),
	"document-title":               crit("2.4.2"),
	"link-name":                    crit("2.4.4").withSeverity(model.SeverityHigh),
	"label-content-name-mismatch":  crit("2.5.3"),
	"target-size":                  crit("2.5.8").withSeverity(model.SeverityMedium),
	"html-has-lang":                crit("3.1.1"),
	"html-lang-valid":              crit("3.1.1"),
	"html-xml-lang-mismatch":       crit("3.1.1"),
	"valid-lang":                   crit("3.1.2"),
	"duplicate-id":                 crit("4.1.1"),
	"duplicate-id-active":          crit("4.1.1").withSeverity(model.SeverityMedium),
	"duplicate-id-aria":            crit("4.1.1").withSeverity(model.SeverityHigh),
	"label":                        crit("4.1.2").withSeverity(model.SeverityCritical),
	"select-name":                  crit("4.1.2").withSeverity(model.SeverityCritical),
	"button-name":                  crit("4.1.2").withSeverity(model.SeverityCritical),
	"input-button-name":            crit("4.1.2").withSeverity(model.SeverityCritical),
	"frame-title":                  crit("4.1.2"),
	"aria-allowed-attr":            crit("4.1.2"),
	"aria-command-name":            crit("4.1.2"),
	"aria-hidden-body":             crit("4.1.2").withSeverity(model.SeverityCritical),
	"aria-hidden-focus":            crit("4.1.2"),
	"aria-input-field-name":        crit("4.1.2"),
	"aria-required-attr":           crit("4.1.2").withSeverity(model.SeverityCritical),
	"aria-roles":                   crit("4.1.2").withSeverity(model.SeverityCritical),
	"aria-toggle-field-name":       crit("4.1.2"),
	"aria-valid-attr":              crit("4.1.2").withSeverity(model.SeverityCritical),
	"aria-valid-attr-value":        crit("4.1.2").withSeverity(model.SeverityCritical),
	"nested-interactive":           crit("4.1.2"),
	"region":                       {Principle: model.PrincipleOperable, Impacts: []model.Impact{model.ImpactBlind}, Severity: model.SeverityMedium, Description: "Page content should be contained by landmarks"},
	"landmark-one-main":            {Principle: model.PrincipleOperable, Impacts: []model.Impact{model.ImpactBlind}, Severity: model.SeverityMedium, Description: "Document should have one main landmark"},
	"landmark-unique":              {Principle: model.PrincipleOperable, Impacts: []model.Impact{model.ImpactBlind}, Severity: model.SeverityLow, Description: "Landmarks should have a unique role or label"},
	"heading-order":                {Principle: model.PrinciplePerceivable, Impacts: []model.Impact{model.ImpactBlind}, Severity: model.SeverityMedium, Description: "Heading levels should only increase by one"},
	"page-has-heading-one":         {Principle: model.PrinciplePerceivable, Impacts: []model.Impact{model.ImpactBlind}, Severity: model.SeverityMedium, Description: "Page should contain a level-one heading"},
	"empty-heading":                {Principle: model.PrinciplePerceivable, Impacts: []model.Impact{model.ImpactBlind}, Severity: model.SeverityLow, Description: "Headings should not be empty"},
	"tabindex":                     {Principle: model.PrincipleOperable, Impacts: []model.Impact{model.ImpactBlind, model.ImpactMotor}, Severity: model.SeverityMedium, Description: "Elements should not have tabindex greater than zero"},
	"skip-link":                    {Principle: model.PrincipleOperable, Impacts: []model.Impact{model.ImpactBlind, model.ImpactMotor}, Severity: model.SeverityMedium, Description: "The skip-link target should exist and be focusable"},
	"focus-order-semantics":        {Principle: model.PrincipleOperable, Impacts: []model.Impact{model.ImpactBlind}, Severity: model.SeverityLow, Description: "Elements in the focus order should have an appropriate role"},
	"presentation-role-conflict":   {Principle: model.PrincipleRobust, Impacts: []model.Impact{model.ImpactBlind}, Severity: model.SeverityLow, Description: "Elements marked as presentational should be consistently ignored"},
	"identical-links-same-purpose": crit("2.4.4").withSeverity(model.SeverityLow),
}

// htmlcheckRules covers the rules of the built-in HTML checker.
var htmlcheckRules = map[string]Rule{
	"img-missing-alt":        crit("1.1.1").withSeverity(model.SeverityCritical).describe("Image has no alt attribute"),
	"media-missing-captions": crit("1.2.2").describe("Video has no captions track"),
	"html-missing-lang":      crit("3.1.1").describe("The <html> element has no lang attribute"),
	"document-missing-title": crit("2.4.2").describe("Document has no title"),
	"input-missing-label":    crit("4.1.2").withSeverity(model.SeverityCritical).describe("Form field has no accessible label"),
	"link-missing-name":      crit("2.4.4").withSeverity(model.SeverityHigh).describe("Link has no discernible text"),
	"button-missing-name":    crit("4.1.2").withSeverity(model.SeverityCritical).describe("Button has no discernible text"),
	"frame-missing-title":    crit("4.1.2").describe("Frame has no title attribute"),
	"heading-level-skipped":  {Principle: model.PrinciplePerceivable, Impacts: []model.Impact{model.ImpactBlind}, Severity: model.SeverityMedium, Description: "Heading levels should only increase by one"},
	"meta-refresh":           crit("2.2.1").withSeverity(model.SeverityCritical).describe("Page refreshes or redirects automatically"),
	"positive-tabindex":      {Principle: model.PrincipleOperable, Impacts: []model.Impact{model.ImpactBlind, model.ImpactMotor}, Severity: model.SeverityMedium, Description: "Element has a tabindex greater than zero"},
}

// DefaultTable returns a copy of the built-in mapping table.
// pa11y codes are not listed; they carry their criterion in the code itself
// and are resolved through criterionDefaults.
func DefaultTable() Table {
	t := Table{
		FamilyAxe:       make(map[string]Rule, len(axeRules)),
		FamilyHTMLCheck: make(map[string]Rule, len(htmlcheckRules)),
		FamilyPa11y:     make(map[string]Rule),
	}
	for id, r := range axeRules {
		t[FamilyAxe][id] = r
	}
	for id, r := range htmlcheckRules {
		t[FamilyHTMLCheck][id] = r
	}
	return t
}

// Family returns the table family for an adapter name. Unknown adapters are
// their own family and therefore always fall back to the heuristic.
func Family(adapterName string) string {
	if f, ok := familyAliases[adapterName]; ok {
		return f
	}
	return adapterName
}

// crit builds a table entry that inherits impacts and severity from the
// criterion defaults.
func crit(id string) Rule {
	def := criterionDefaults[id]
	return Rule{Criterion: id, Impacts: def.Impacts, Severity: def.Severity}
}

func (r Rule) withSeverity(s model.Severity) Rule {
	r.Severity = s
	return r
}

func (r Rule) describe(desc string) Rule {
	r.Description = desc
	return r
}
