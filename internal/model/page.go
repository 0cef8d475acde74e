package model

import (
	"net/url"
	"slices"
	"strings"
)

// Role is the page type assigned by the classifier.
type Role string

// Page roles. The set is closed; unknown pages get RoleOther.
const (
	RoleHome     Role = "home"
	RoleCategory Role = "category"
	RoleProduct  Role = "product"
	RoleContent  Role = "content"
	RoleForm     Role = "form"
	RoleCheckout Role = "checkout"
	RoleMedia    Role = "media"
	RoleDocument Role = "document"
	RoleLegal    Role = "legal"
	RoleOther    Role = "other"
)

// AllRoles lists every role in a stable order.
var AllRoles = []Role{
	RoleHome, RoleCategory, RoleProduct, RoleContent, RoleForm,
	RoleCheckout, RoleMedia, RoleDocument, RoleLegal, RoleOther,
}

// ParseRole returns the role with the given name.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(AllRoles, r) {
		return r, true
	}
	return RoleOther, false
}

// Priority is the sampling priority tier of a page.
type Priority string

// Priority tiers, from most to least important.
const (
	PriorityCritical       Priority = "critical"
	PriorityImportant      Priority = "important"
	PriorityRepresentative Priority = "representative"
	PriorityOptional       Priority = "optional"
)

// Rank returns a sort key where a lower value means a higher priority.
// Unknown priorities sort after optional.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityImportant:
		return 1
	case PriorityRepresentative:
		return 2
	case PriorityOptional:
		return 3
	default:
		return 4
	}
}

// Weight returns a 0..1 score used in selection rationale.
func (p Priority) Weight() float64 {
	switch p {
	case PriorityCritical:
		return 1.0
	case PriorityImportant:
		return 0.75
	case PriorityRepresentative:
		return 0.5
	case PriorityOptional:
		return 0.25
	default:
		return 0
	}
}

// ParsePriority returns the priority with the given name.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if p.Rank() > 3 {
		return "", false
	}
	return p, true
}

// Page tags mark pages that WCAG-EM sampling treats specially regardless of role.
const (
	TagContact                = "contact"
	TagLogin                  = "login"
	TagSearch                 = "search"
	TagAccessibilityStatement = "accessibility_statement"
	TagSitemap                = "sitemap"
)

// PageMetadata holds the content counters extracted while crawling.
type PageMetadata struct {
	WordCount        int  `json:"wordCount"`
	ImageCount       int  `json:"imageCount"`
	FormCount        int  `json:"formCount"`
	LinkCount        int  `json:"linkCount"`
	MediaCount       int  `json:"mediaCount"`
	InputCount       int  `json:"inputCount"`
	HasPasswordField bool `json:"hasPasswordField,omitempty"`
	HasSearchForm    bool `json:"hasSearchForm,omitempty"`
}

// DiscoveredPage is a page found by the discovery crawler.
// The crawler creates it, the classifier fills Role, Priority and Tags,
// the clusterer fills TemplateGroupID, and only the selector (or an explicit
// user override) touches Selected.
type DiscoveredPage struct {
	// URL is the normalized absolute URL; it is unique within a session.
	URL string `json:"url"`

	// Title is the text of the <title> element.
	Title string `json:"title,omitempty"`

	// Depth is the crawl distance from the seed URL.
	Depth int `json:"depth"`

	// Role is the page type assigned by the classifier.
	Role Role `json:"role"`

	// Priority is the sampling priority tier.
	Priority Priority `json:"priority"`

	// Tags are extra classifier signals (contact, login, ...).
	Tags []string `json:"tags,omitempty"`

	// TemplateGroupID is empty until the clusterer has assigned the page.
	TemplateGroupID string `json:"templateGroupId,omitempty"`

	// ContentSignature is the normalized DOM tag skeleton.
	ContentSignature string `json:"contentSignature,omitempty"`

	// LinkText is the anchor text of the first link that led to this page.
	LinkText string `json:"linkText,omitempty"`

	// ContentType is the media type from the response header.
	ContentType string `json:"contentType,omitempty"`

	// Lang is the value of <html lang>.
	Lang string `json:"lang,omitempty"`

	// Metadata holds word/image/form/link counters.
	Metadata PageMetadata `json:"metadata"`

	// Selected is true when the page is part of the current selection.
	Selected bool `json:"selected"`
}

// Path returns the URL path of the page, "/" when empty or unparsable.
func (p *DiscoveredPage) Path() string {
	u, err := url.Parse(p.URL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// HasTag reports whether the page carries the given tag.
func (p *DiscoveredPage) HasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}

// Clone returns a deep copy of the page.
func (p *DiscoveredPage) Clone() *DiscoveredPage {
	c := *p
	c.Tags = slices.Clone(p.Tags)
	return &c
}

// TemplateGroup is a cluster of pages with near-identical DOM structure.
type TemplateGroup struct {
	// ID is the stable group identifier (tg-001, tg-002, ...).
	ID string `json:"id"`

	// MemberURLs lists members in the order they joined the group.
	// The first member is always the representative.
	MemberURLs []string `json:"memberUrls"`

	// RepresentativeURL is the page that opened the group.
	RepresentativeURL string `json:"representativeUrl"`

	// SimilarityThreshold is the threshold used when the group was built.
	SimilarityThreshold float64 `json:"similarityThreshold"`
}

// Size returns the number of members.
func (g *TemplateGroup) Size() int {
	return len(g.MemberURLs)
}

// Clone returns a deep copy of the group.
func (g *TemplateGroup) Clone() TemplateGroup {
	c := *g
	c.MemberURLs = slices.Clone(g.MemberURLs)
	return c
}
