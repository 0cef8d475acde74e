package classify

import (
	"slices"
	"strings"

	"github.com/nao1215/a11yscan/internal/model"
	"golang.org/x/text/cases"
)

// RulesVersion identifies the revision of the built-in rule list.
const RulesVersion = "2025.10"

// Signals is the normalized view of a page that rules look at.
type Signals struct {
	// Segments are the case-folded, non-empty path segments.
	Segments []string
	// Path is the case-folded URL path.
	Path string
	// LinkText is the case-folded anchor text.
	LinkText string
	// Extension is the lower-case file extension of the last segment.
	Extension   string
	ContentType string
	Depth       int
	Metadata    model.PageMetadata
}

// fold case-folds s. A Caser keeps state, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// NewSignals extracts Signals from a page.
func NewSignals(p *model.DiscoveredPage) Signals {
	path := fold(p.Path())
	var segments []string
	for seg := range strings.SplitSeq(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	ext := ""
	if n := len(segments); n > 0 {
		if i := strings.LastIndex(segments[n-1], "."); i >= 0 {
			ext = segments[n-1][i+1:]
		}
	}

	return Signals{
		Segments:    segments,
		Path:        path,
		LinkText:    strings.Join(strings.Fields(fold(p.LinkText)), " "),
		Extension:   ext,
		ContentType: strings.ToLower(p.ContentType),
		Depth:       p.Depth,
		Metadata:    p.Metadata,
	}
}

// HasSegment reports whether any path segment, with its extension removed,
// equals one of words or starts with one of words followed by '-' or '_'.
func (s Signals) HasSegment(words ...string) bool {
	for _, seg := range s.Segments {
		if i := strings.LastIndex(seg, "."); i > 0 {
			seg = seg[:i]
		}
		for _, w := range words {
			if seg == w || strings.HasPrefix(seg, w+"-") || strings.HasPrefix(seg, w+"_") {
				return true
			}
		}
	}
	return false
}

// LinkTextContains reports whether the anchor text contains one of words.
func (s Signals) LinkTextContains(words ...string) bool {
	if s.LinkText == "" {
		return false
	}
	for _, w := range words {
		if strings.Contains(s.LinkText, w) {
			return true
		}
	}
	return false
}

// Rule assigns Role when Match returns true.
type Rule struct {
	Name  string
	Role  model.Role
	Match func(s Signals) bool
}

var documentExtensions = []string{"pdf", "doc", "docx", "odt", "ppt", "pptx", "xls", "xlsx", "rtf", "epub"}

var documentTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats",
	"application/vnd.oasis.opendocument",
	"application/vnd.ms-",
	"application/epub",
}

// DefaultRules is the built-in ordered rule list.
var DefaultRules = []Rule{
	{
		Name: "home",
		Role: model.RoleHome,
		Match: func(s Signals) bool {
			if len(s.Segments) == 0 {
				return true
			}
			return len(s.Segments) == 1 && s.HasSegment("index", "home", "default")
		},
	},
	{
		Name: "checkout",
		Role: model.RoleCheckout,
		Match: func(s Signals) bool {
			return s.HasSegment("cart", "checkout", "basket", "payment", "billing", "shipping", "order")
		},
	},
	{
		Name: "document",
		Role: model.RoleDocument,
		Match: func(s Signals) bool {
			if slices.Contains(documentExtensions, s.Extension) {
				return true
			}
			for _, t := range documentTypes {
				if strings.HasPrefix(s.ContentType, t) {
					return true
				}
			}
			return false
		},
	},
	{
		Name: "form",
		Role: model.RoleForm,
		Match: func(s Signals) bool {
			if s.HasSegment("contact", "login", "signin", "sign-in", "register", "signup", "sign-up",
				"subscribe", "apply", "feedback", "booking", "reservation", "quote", "enquiry", "inquiry") {
				return true
			}
			if s.Metadata.HasPasswordField {
				return true
			}
			if s.LinkTextContains("contact", "log in", "login", "sign in", "register", "sign up") {
				return true
			}
			// Pages dominated by a form with several fields.
			return s.Metadata.FormCount > 0 && s.Metadata.InputCount >= 3 && !s.Metadata.HasSearchForm
		},
	},
	{
		Name: "legal",
		Role: model.RoleLegal,
		Match: func(s Signals) bool {
			return s.HasSegment("privacy", "terms", "legal", "cookies", "cookie-policy", "imprint",
				"impressum", "disclaimer", "tos", "gdpr") ||
				s.LinkTextContains("privacy", "terms of", "legal notice", "cookie policy", "imprint")
		},
	},
	{
		Name: "product",
		Role: model.RoleProduct,
		Match: func(s Signals) bool {
			return s.HasSegment("product", "products", "item", "items", "p", "dp", "sku")
		},
	},
	{
		Name: "category",
		Role: model.RoleCategory,
		Match: func(s Signals) bool {
			return s.HasSegment("category", "categories", "collection", "collections", "catalog",
				"catalogue", "shop", "store", "department", "tag", "tags", "archive", "archives", "topics")
		},
	},
	{
		Name: "media",
		Role: model.RoleMedia,
		Match: func(s Signals) bool {
			if s.HasSegment("video", "videos", "gallery", "galleries", "podcast", "podcasts", "media", "watch", "photos") {
				return true
			}
			return s.Metadata.MediaCount > 0 && s.Metadata.WordCount < 150
		},
	},
	{
		Name: "content",
		Role: model.RoleContent,
		Match: func(s Signals) bool {
			if s.HasSegment("about", "about-us", "blog", "news", "article", "articles", "post", "posts",
				"faq", "help", "support", "docs", "guide", "guides", "accessibility", "press", "careers", "team") {
				return true
			}
			return s.Metadata.WordCount >= 300
		},
	},
}

// Tagger adds a tag when Match returns true. Tags are independent of roles.
type Tagger struct {
	Tag   string
	Match func(s Signals) bool
}

// DefaultTaggers is the built-in tag list.
var DefaultTaggers = []Tagger{
	{
		Tag: model.TagContact,
		Match: func(s Signals) bool {
			return s.HasSegment("contact", "contact-us", "kontakt", "enquiry", "inquiry") || s.LinkTextContains("contact")
		},
	},
	{
		Tag: model.TagLogin,
		Match: func(s Signals) bool {
			return s.HasSegment("login", "log-in", "signin", "sign-in", "account") ||
				s.Metadata.HasPasswordField || s.LinkTextContains("log in", "login", "sign in")
		},
	},
	{
		Tag: model.TagSearch,
		Match: func(s Signals) bool {
			return s.HasSegment("search") || s.Metadata.HasSearchForm
		},
	},
	{
		Tag: model.TagAccessibilityStatement,
		Match: func(s Signals) bool {
			return s.HasSegment("accessibility", "accessibility-statement", "a11y") ||
				s.LinkTextContains("accessibility")
		},
	},
	{
		Tag: model.TagSitemap,
		Match: func(s Signals) bool {
			return s.Extension != "xml" && (s.HasSegment("sitemap", "site-map") || s.LinkTextContains("sitemap", "site map"))
		},
	},
}

// DefaultPriorities is the fixed role → priority table.
var DefaultPriorities = map[model.Role]model.Priority{
	model.RoleHome:     model.PriorityCritical,
	model.RoleCheckout: model.PriorityCritical,
	model.RoleForm:     model.PriorityCritical,
	model.RoleProduct:  model.PriorityImportant,
	model.RoleCategory: model.PriorityImportant,
	model.RoleContent:  model.PriorityRepresentative,
	model.RoleMedia:    model.PriorityRepresentative,
	model.RoleDocument: model.PriorityRepresentative,
	model.RoleLegal:    model.PriorityOptional,
	model.RoleOther:    model.PriorityOptional,
}
