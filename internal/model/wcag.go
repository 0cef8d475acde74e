package model

import "strings"

// Principle is one of the four WCAG principles (POUR).
type Principle string

const (
	// PrinciplePerceivable covers criteria under guideline group 1.
	PrinciplePerceivable Principle = "perceivable"
	// PrincipleOperable covers criteria under guideline group 2.
	PrincipleOperable Principle = "operable"
	// PrincipleUnderstandable covers criteria under guideline group 3.
	PrincipleUnderstandable Principle = "understandable"
	// PrincipleRobust covers criteria under guideline group 4.
	PrincipleRobust Principle = "robust"
	// PrincipleUnknown is used for findings that cannot be tied to a criterion.
	PrincipleUnknown Principle = "unknown"
)

// Impact names a group of users affected by an issue.
type Impact string

// Disability impact groups.
const (
	ImpactBlind      Impact = "blind"
	ImpactLowVision  Impact = "low_vision"
	ImpactColorBlind Impact = "color_blind"
	ImpactDeaf       Impact = "deaf"
	ImpactMotor      Impact = "motor"
	ImpactCognitive  Impact = "cognitive"
	ImpactSpeech     Impact = "speech"
)

// Level is a WCAG conformance level.
type Level string

// WCAG conformance levels.
const (
	LevelA   Level = "A"
	LevelAA  Level = "AA"
	LevelAAA Level = "AAA"
)

// Criterion describes a WCAG 2.2 success criterion.
type Criterion struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Level Level  `json:"level"`
}

// Principle returns the POUR principle of the criterion, derived from the
// leading digit of its identifier.
func (c Criterion) Principle() Principle {
	return PrincipleOf(c.ID)
}

// PrincipleOf returns the POUR principle for a criterion identifier such as
// "1.4.3". Identifiers that do not start with 1-4 map to PrincipleUnknown.
func PrincipleOf(criterionID string) Principle {
	switch {
	case strings.HasPrefix(criterionID, "1."):
		return PrinciplePerceivable
	case strings.HasPrefix(criterionID, "2."):
		return PrincipleOperable
	case strings.HasPrefix(criterionID, "3."):
		return PrincipleUnderstandable
	case strings.HasPrefix(criterionID, "4."):
		return PrincipleRobust
	default:
		return PrincipleUnknown
	}
}

// criteria is the WCAG 2.2 success criteria catalog.
// 4.1.1 Parsing is kept because older tool versions still report it.
var criteria = map[string]Criterion{
	"1.1.1":  {ID: "1.1.1", Title: "Non-text Content", Level: LevelA},
	"1.2.1":  {ID: "1.2.1", Title: "Audio-only and Video-only (Prerecorded)", Level: LevelA},
	"1.2.2":  {ID: "1.2.2", Title: "Captions (Prerecorded)", Level: LevelA},
	"1.2.3":  {ID: "1.2.3", Title: "Audio Description or Media Alternative (Prerecorded)", Level: LevelA},
	"1.2.4":  {ID: "1.2.4", Title: "Captions (Live)", Level: LevelAA},
	"1.2.5":  {ID: "1.2.5", Title: "Audio Description (Prerecorded)", Level: LevelAA},
	"1.3.1":  {ID: "1.3.1", Title: "Info and Relationships", Level: LevelA},
	"1.3.2":  {ID: "1.3.2", Title: "Meaningful Sequence", Level: LevelA},
	"1.3.3":  {ID: "1.3.3", Title: "Sensory Characteristics", Level: LevelA},
	"1.3.4":  {ID: "1.3.4", Title: "Orientation", Level: LevelAA},
	"1.3.5":  {ID: "1.3.5", Title: "Identify Input Purpose", Level: LevelAA},
	"1.4.1":  {ID: "1.4.1", Title: "Use of Color", Level: LevelA},
	"1.4.2":  {ID: "1.4.2", Title: "Audio Control", Level: LevelA},
	"1.4.3":  {ID: "1.4.3", Title: "Contrast (Minimum)", Level: LevelAA},
	"1.4.4":  {ID: "1.4.4", Title: "Resize Text", Level: LevelAA},
	"1.4.5":  {ID: "1.4.5", Title: "Images of Text", Level: LevelAA},
	"1.4.6":  {ID: "1.4.6", Title: "Contrast (Enhanced)", Level: LevelAAA},
	"1.4.10": {ID: "1.4.10", Title: "Reflow", Level: LevelAA},
	"1.4.11": {ID: "1.4.11", Title: "Non-text Contrast", Level: LevelAA},
	"1.4.12": {ID: "1.4.12", Title: "Text Spacing", Level: LevelAA},
	"1.4.13": {ID: "1.4.13", Title: "Content on Hover or Focus", Level: LevelAA},
	"2.1.1":  {ID: "2.1.1", Title: "Keyboard", Level: LevelA},
	"2.1.2":  {ID: "2.1.2", Title: "No Keyboard Trap", Level: LevelA},
	"2.1.4":  {ID: "2.1.4", Title: "Character Key Shortcuts", Level: LevelA},
	"2.2.1":  {ID: "2.2.1", Title: "Timing Adjustable", Level: LevelA},
	"2.2.2":  {ID: "2.2.2", Title: "Pause, Stop, Hide", Level: LevelA},
	"2.3.1":  {ID: "2.3.1", Title: "Three Flashes or Below Threshold", Level: LevelA},
	"2.4.1":  {ID: "2.4.1", Title: "Bypass Blocks", Level: LevelA},
	"2.4.2":  {ID: "2.4.2", Title: "Page Titled", Level: LevelA},
	"2.4.3":  {ID: "2.4.3", Title: "Focus Order", Level: LevelA},
	"2.4.4":  {ID: "2.4.4", Title: "Link Purpose (In Context)", Level: LevelA},
	"2.4.5":  {ID: "2.4.5", Title: "Multiple Ways", Level: LevelAA},
	"2.4.6":  {ID: "2.4.6", Title: "Headings and Labels", Level: LevelAA},
	"2.4.7":  {ID: "2.4.7", Title: "Focus Visible", Level: LevelAA},
	"2.4.11": {ID: "2.4.11", Title: "Focus Not Obscured (Minimum)", Level: LevelAA},
	"2.5.1":  {ID: "2.5.1", Title: "Pointer Gestures", Level: LevelA},
	"2.5.2":  {ID: "2.5.2", Title: "Pointer Cancellation", Level: LevelA},
	"2.5.3":  {ID: "2.5.3", Title: "Label in Name", Level: LevelA},
	"2.5.4":  {ID: "2.5.4", Title: "Motion Actuation", Level: LevelA},
	"2.5.7":  {ID: "2.5.7", Title: "Dragging Movements", Level: LevelAA},
	"2.5.8":  {ID: "2.5.8", Title: "Target Size (Minimum)", Level: LevelAA},
	"3.1.1":  {ID: "3.1.1", Title: "Language of Page", Level: LevelA},
	"3.1.2":  {ID: "3.1.2", Title: "Language of Parts", Level: LevelAA},
	"3.2.1":  {ID: "3.2.1", Title: "On Focus", Level: LevelA},
	"3.2.2":  {ID: "3.2.2", Title: "On Input", Level: LevelA},
	"3.2.3":  {ID: "3.2.3", Title: "Consistent Navigation", Level: LevelAA},
	"3.2.4":  {ID: "3.2.4", Title: "Consistent Identification", Level: LevelAA},
	"3.2.6":  {ID: "3.2.6", Title: "Consistent Help", Level: LevelA},
	"3.3.1":  {ID: "3.3.1", Title: "Error Identification", Level: LevelA},
	"3.3.2":  {ID: "3.3.2", Title: "Labels or Instructions", Level: LevelA},
	"3.3.3":  {ID: "3.3.3", Title: "Error Suggestion", Level: LevelAA},
	"3.3.4":  {ID: "3.3.4", Title: "Error Prevention (Legal, Financial, Data)", Level: LevelAA},
	"3.3.7":  {ID: "3.3.7", Title: "Redundant Entry", Level: LevelA},
	"3.3.8":  {ID: "3.3.8", Title: "Accessible Authentication (Minimum)", Level: LevelAA},
	"4.1.1":  {ID: "4.1.1", Title: "Parsing", Level: LevelA},
	"4.1.2":  {ID: "4.1.2", Title: "Name, Role, Value", Level: LevelA},
	"4.1.3":  {ID: "4.1.3", Title: "Status Messages", Level: LevelAA},
}

// LookupCriterion returns the catalog entry for a criterion identifier.
func LookupCriterion(id string) (Criterion, bool) {
	c, ok := criteria[id]
	return c, ok
}

// DefaultImpacts returns the impact groups usually affected by issues under
// the given principle. It is used when a finding cannot be mapped precisely.
func DefaultImpacts(p Principle) []Impact {
	switch p {
	case PrinciplePerceivable:
		return []Impact{ImpactBlind, ImpactLowVision}
	case PrincipleOperable:
		return []Impact{ImpactMotor, ImpactBlind}
	case PrincipleUnderstandable:
		return []Impact{ImpactCognitive}
	case PrincipleRobust:
		return []Impact{ImpactBlind}
	default:
		return nil
	}
}
