package crawler

import (
	"io"
	"net/url"
	"strings"

	"github.com/nao1215/a11yscan/internal/model"
	"golang.org/x/net/html"
)

// HTML element name constants for form field detection.
const (
	htmlElementInput    = "input"
	htmlElementSelect   = "select"
	htmlElementTextarea = "textarea"
)

// skippedElements are left out of the skeleton and the word count.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// mediaElements are counted as embedded media.
var mediaElements = map[string]bool{
	"video":  true,
	"audio":  true,
	"iframe": true,
	"object": true,
	"embed":  true,
}

// Parser extracts information from HTML content.
// It collects links with their anchor text, forms, media and the DOM
// skeleton used for template clustering.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL
}

// Link is an outgoing hyperlink.
type Link struct {
	// URL is the resolved absolute URL.
	URL string

	// Text is the collapsed anchor text.
	Text string
}

// ParseResult contains all information extracted from an HTML page.
type ParseResult struct {
	// Title is the page title from <title> tag.
	Title string

	// Lang is the lang attribute of the <html> element.
	Lang string

	// Links contains all discovered hyperlinks in document order.
	Links []Link

	// Forms contains information about HTML forms.
	Forms []FormInfo

	// Images contains image sources.
	Images []string

	// MediaCount is the number of video, audio, iframe, object and embed elements.
	MediaCount int

	// InputCount is the number of visible form controls.
	InputCount int

	// HasPasswordField is true when the page contains a password input.
	HasPasswordField bool

	// WordCount is the number of words of visible text.
	WordCount int

	// Skeleton is the element name sequence of the body in document order.
	Skeleton []string
}

// FormInfo contains information about an HTML form.
type FormInfo struct {
	// Action is the form action URL.
	Action string

	// Method is the HTTP method (GET, POST).
	Method string

	// Role is the ARIA role attribute of the form, if any.
	Role string

	// Fields contains form field names and types.
	Fields []FormField
}

// FormField represents a form input field.
type FormField struct {
	// Name is the field name attribute.
	Name string

	// Type is the input type (text, password, hidden, etc.).
	Type string
}

// IsSearch reports whether the form looks like a site search.
func (f FormInfo) IsSearch() bool {
	if strings.EqualFold(f.Role, "search") || strings.Contains(strings.ToLower(f.Action), "search") {
		return true
	}
	for _, field := range f.Fields {
		if field.Type == "search" {
			return true
		}
		switch strings.ToLower(field.Name) {
		case "q", "query", "search", "s":
			return true
		}
	}
	return false
}

// Signature returns the skeleton as a space-separated tag sequence.
func (r *ParseResult) Signature() string {
	return strings.Join(r.Skeleton, " ")
}

// Metadata returns the content counters of the page.
func (r *ParseResult) Metadata() model.PageMetadata {
	md := model.PageMetadata{
		WordCount:        r.WordCount,
		ImageCount:       len(r.Images),
		FormCount:        len(r.Forms),
		LinkCount:        len(r.Links),
		MediaCount:       r.MediaCount,
		InputCount:       r.InputCount,
		HasPasswordField: r.HasPasswordField,
	}
	for _, f := range r.Forms {
		if f.IsSearch() {
			md.HasSearchForm = true
			break
		}
	}
	return md
}

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content and extracts all relevant information.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Links:    make([]Link, 0),
		Forms:    make([]FormInfo, 0),
		Images:   make([]string, 0),
		Skeleton: make([]string, 0),
	}

	var walk func(n *html.Node, inBody bool)
	walk = func(n *html.Node, inBody bool) {
		switch n.Type {
		case html.ElementNode:
			if n.Data == "title" && result.Title == "" {
				result.Title = collapse(textOf(n))
			}
			if n.Data == "html" {
				result.Lang = strings.TrimSpace(getAttr(n, "lang"))
			}
			if skippedElements[n.Data] {
				return
			}
			if n.Data == "body" {
				inBody = true
			}
			if inBody {
				result.Skeleton = append(result.Skeleton, n.Data)
			}
			p.processElement(n, result)
			if n.Data == "svg" {
				// Inline SVG internals vary per icon and are not layout.
				return
			}
		case html.TextNode:
			if inBody {
				result.WordCount += len(strings.Fields(n.Data))
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inBody)
		}
	}

	walk(doc, false)
	return result, nil
}

// processElement handles HTML element nodes.
func (p *Parser) processElement(n *html.Node, result *ParseResult) {
	switch n.Data {
	case "a", "area":
		if href := getAttr(n, "href"); href != "" {
			if resolved := p.resolveURL(href); resolved != "" {
				text := collapse(textOf(n))
				if text == "" {
					text = strings.TrimSpace(getAttr(n, "aria-label"))
				}
				result.Links = append(result.Links, Link{URL: resolved, Text: text})
			}
		}

	case "form":
		form := FormInfo{
			Action: p.resolveURL(getAttr(n, "action")),
			Method: strings.ToUpper(getAttr(n, "method")),
			Role:   getAttr(n, "role"),
			Fields: make([]FormField, 0),
		}
		if form.Method == "" {
			form.Method = "GET"
		}
		p.extractFormFields(n, &form)
		result.Forms = append(result.Forms, form)

	case htmlElementInput, htmlElementSelect, htmlElementTextarea:
		typ := strings.ToLower(getAttr(n, "type"))
		if typ == "password" {
			result.HasPasswordField = true
		}
		if typ != "hidden" && typ != "submit" && typ != "button" && typ != "reset" && typ != "image" {
			result.InputCount++
		}

	case "img":
		if src := getAttr(n, "src"); src != "" {
			result.Images = append(result.Images, p.resolveURL(src))
		}

	default:
		if mediaElements[n.Data] {
			result.MediaCount++
		}
	}
}

// extractFormFields recursively extracts form fields from a form element.
func (p *Parser) extractFormFields(n *html.Node, form *FormInfo) {
	if n.Type == html.ElementNode && (n.Data == htmlElementInput || n.Data == htmlElementSelect || n.Data == htmlElementTextarea) {
		field := FormField{
			Name: getAttr(n, "name"),
			Type: strings.ToLower(getAttr(n, "type")),
		}
		if field.Type == "" {
			switch n.Data {
			case htmlElementTextarea:
				field.Type = htmlElementTextarea
			case htmlElementSelect:
				field.Type = htmlElementSelect
			default:
				field.Type = "text"
			}
		}
		form.Fields = append(form.Fields, field)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.extractFormFields(c, form)
	}
}

// resolveURL resolves a relative URL against the base URL.
// Non-navigational schemes and bare fragments resolve to "".
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.baseURL.ResolveReference(u).String()
}

// textOf returns the concatenated text below n, skipping scripts and styles.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		if n.Type == html.ElementNode && n.Data == "img" {
			b.WriteString(getAttr(n, "alt"))
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// collapse trims s and folds internal whitespace runs into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
