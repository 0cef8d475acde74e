package adapter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/retry"
	"golang.org/x/net/html"
)

// HTMLCheckName is the name of the built-in HTML checker.
const HTMLCheckName = "htmlcheck"

// maxSnippet bounds the HTML context kept per finding.
const maxSnippet = 200

// HTMLCheck is a built-in adapter that fetches a page and checks its static
// markup. It covers the markup-level subset of WCAG that needs no browser:
// text alternatives, document language and title, form labels, link and
// button names, frame titles, heading order, meta refresh and tabindex.
type HTMLCheck struct {
	client      *http.Client
	userAgent   string
	headers     map[string]string
	cookie      string
	maxBodySize int64
}

// HTMLCheckOption configures HTMLCheck.
type HTMLCheckOption func(*HTMLCheck)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) HTMLCheckOption {
	return func(h *HTMLCheck) {
		h.client = client
	}
}

// WithRequestHeaders sets extra request headers and the Cookie header.
func WithRequestHeaders(headers map[string]string, cookie string) HTMLCheckOption {
	return func(h *HTMLCheck) {
		h.headers = headers
		h.cookie = cookie
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTMLCheckOption {
	return func(h *HTMLCheck) {
		h.userAgent = ua
	}
}

// WithMaxBodySize limits the response body read.
func WithMaxBodySize(size int64) HTMLCheckOption {
	return func(h *HTMLCheck) {
		h.maxBodySize = size
	}
}

// NewHTMLCheck creates the built-in HTML checker.
func NewHTMLCheck(opts ...HTMLCheckOption) *HTMLCheck {
	h := &HTMLCheck{
		client:      http.DefaultClient,
		userAgent:   "a11yscan/1.0",
		maxBodySize: 5 * 1024 * 1024, // 5MB
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name returns the adapter name.
func (h *HTMLCheck) Name() string { return HTMLCheckName }

// Run fetches pageURL and checks its markup. Client errors (4xx) are
// permanent; server and network errors may be retried.
func (h *HTMLCheck) Run(ctx context.Context, pageURL string, _ time.Duration) (*Output, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	if h.cookie != "" {
		req.Header.Set("Cookie", h.cookie)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("failed to fetch %s: HTTP %d", pageURL, resp.StatusCode)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", pageURL, err)
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if ct != "" && !strings.Contains(ct, "html") {
		// Not markup; nothing to check.
		return &Output{Findings: make([]model.RawFinding, 0)}, nil
	}

	findings, err := CheckHTML(bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(err)
	}
	return &Output{Findings: findings}, nil
}

// CheckHTML runs every markup check over an HTML document.
func CheckHTML(r io.Reader) ([]model.RawFinding, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	c := &checker{findings: make([]model.RawFinding, 0), labelled: labelTargets(doc)}
	c.walk(doc)
	c.document()
	return c.findings, nil
}

// checker accumulates findings during one document walk.
type checker struct {
	findings []model.RawFinding

	// labelled holds ids referenced by <label for>.
	labelled map[string]bool

	htmlNode     *html.Node
	title        string
	titleSeen    bool
	lastHeading  int
	insideLabels int
}

func (c *checker) report(ruleID string, n *html.Node, message string) {
	f := model.RawFinding{RuleID: ruleID, Message: message}
	if n != nil {
		f.Selector = selectorOf(n)
		f.Context = snippet(n)
	}
	c.findings = append(c.findings, f)
}

func (c *checker) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		if n.Data == "script" || n.Data == "style" || n.Data == "template" {
			return
		}
		c.element(n)
		if n.Data == "label" {
			c.insideLabels++
			defer func() { c.insideLabels-- }()
		}
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.walk(ch)
	}
}

// element applies the per-element checks.
func (c *checker) element(n *html.Node) {
	if ti, ok := attr(n, "tabindex"); ok {
		if v, err := strconv.Atoi(strings.TrimSpace(ti)); err == nil && v > 0 {
			c.report("positive-tabindex", n, "Element has tabindex "+ti)
		}
	}

	switch n.Data {
	case "html":
		c.htmlNode = n
	case "title":
		if !c.titleSeen {
			c.titleSeen = true
			c.title = strings.TrimSpace(textContent(n))
		}
	case "img":
		if _, ok := attr(n, "alt"); !ok && !hidden(n) && !hasAccessibleName(n) {
			c.report("img-missing-alt", n, "Image has no alt attribute")
		}
	case "video":
		if !hasCaptions(n) {
			c.report("media-missing-captions", n, "Video has no captions track")
		}
	case "input", "select", "textarea":
		c.formControl(n)
	case "a":
		if _, ok := attr(n, "href"); ok && !hidden(n) && accessibleText(n) == "" && !hasAccessibleName(n) {
			c.report("link-missing-name", n, "Link has no discernible text")
		}
	case "button":
		if !hidden(n) && accessibleText(n) == "" && !hasAccessibleName(n) {
			c.report("button-missing-name", n, "Button has no discernible text")
		}
	case "iframe", "frame":
		if t, _ := attr(n, "title"); strings.TrimSpace(t) == "" && !hidden(n) && !hasAccessibleName(n) {
			c.report("frame-missing-title", n, "Frame has no title attribute")
		}
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(n.Data[1] - '0')
		if c.lastHeading > 0 && level > c.lastHeading+1 {
			c.report("heading-level-skipped", n, fmt.Sprintf("Heading level jumps from h%d to h%d", c.lastHeading, level))
		}
		c.lastHeading = level
	case "meta":
		if equiv, _ := attr(n, "http-equiv"); strings.EqualFold(equiv, "refresh") {
			content, _ := attr(n, "content")
			delay := strings.TrimSpace(strings.SplitN(content, ";", 2)[0])
			if d, err := strconv.ParseFloat(delay, 64); err == nil && d > 0 {
				c.report("meta-refresh", n, "Page refreshes after "+delay+" seconds")
			}
		}
	}
}

// formControl checks that a form field has a label.
func (c *checker) formControl(n *html.Node) {
	typ, _ := attr(n, "type")
	typ = strings.ToLower(typ)
	switch typ {
	case "hidden", "submit", "reset", "image":
		return
	case "button":
		if v, _ := attr(n, "value"); strings.TrimSpace(v) == "" && !hasAccessibleName(n) {
			c.report("button-missing-name", n, "Button has no discernible text")
		}
		return
	}
	if hidden(n) || c.insideLabels > 0 || hasAccessibleName(n) {
		return
	}
	if id, ok := attr(n, "id"); ok && c.labelled[id] {
		return
	}
	c.report("input-missing-label", n, "Form field has no accessible label")
}

// document applies the whole-document checks.
func (c *checker) document() {
	if lang, _ := attr(c.htmlNode, "lang"); strings.TrimSpace(lang) == "" {
		c.report("html-missing-lang", c.htmlNode, "The <html> element has no lang attribute")
	}
	if c.title == "" {
		c.report("document-missing-title", nil, "Document has no title")
	}
}

// labelTargets collects the ids referenced by <label for>.
func labelTargets(doc *html.Node) map[string]bool {
	ids := make(map[string]bool)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "label" {
			if f, ok := attr(n, "for"); ok && f != "" {
				ids[f] = true
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)
	return ids
}

func hasCaptions(video *html.Node) bool {
	for ch := video.FirstChild; ch != nil; ch = ch.NextSibling {
		if ch.Type == html.ElementNode && ch.Data == "track" {
			kind, _ := attr(ch, "kind")
			if strings.EqualFold(kind, "captions") || strings.EqualFold(kind, "subtitles") {
				return true
			}
		}
	}
	return false
}

// hidden reports whether n is removed from the accessibility tree.
func hidden(n *html.Node) bool {
	if v, _ := attr(n, "aria-hidden"); v == "true" {
		return true
	}
	role, _ := attr(n, "role")
	return role == "presentation" || role == "none"
}

// hasAccessibleName reports whether n is named through ARIA or title.
func hasAccessibleName(n *html.Node) bool {
	for _, key := range []string{"aria-label", "aria-labelledby", "title"} {
		if v, _ := attr(n, key); strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// accessibleText returns the text content of n including image alternatives.
func accessibleText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "img":
			alt, _ := attr(n, "alt")
			b.WriteString(alt)
		case n.Type == html.ElementNode && hasAccessibleName(n):
			b.WriteString("named")
			return
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		walk(ch)
	}
	return strings.TrimSpace(b.String())
}

func textContent(n *html.Node) string {
	var b strings.Builder
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if ch.Type == html.TextNode {
			b.WriteString(ch.Data)
		}
	}
	return b.String()
}

// selectorOf builds a CSS selector for n, anchored at the nearest id.
func selectorOf(n *html.Node) string {
	var parts []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		if id, ok := attr(cur, "id"); ok && id != "" {
			parts = append(parts, "#"+id)
			break
		}
		part := cur.Data
		if idx, total := nthOfType(cur); total > 1 {
			part += fmt.Sprintf(":nth-of-type(%d)", idx)
		}
		parts = append(parts, part)
		if cur.Data == "html" {
			break
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

// nthOfType returns the 1-based index of n among siblings of the same tag
// and the number of such siblings.
func nthOfType(n *html.Node) (idx, total int) {
	if n.Parent == nil {
		return 1, 1
	}
	for s := n.Parent.FirstChild; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode && s.Data == n.Data {
			total++
			if s == n {
				idx = total
			}
		}
	}
	return idx, total
}

// snippet renders the start tag of n.
func snippet(n *html.Node) string {
	shallow := &html.Node{Type: n.Type, Data: n.Data, DataAtom: n.DataAtom, Attr: n.Attr}
	var b bytes.Buffer
	if err := html.Render(&b, shallow); err != nil {
		return "<" + n.Data + ">"
	}
	s := b.String()
	if len(s) > maxSnippet {
		s = s[:maxSnippet] + "..."
	}
	return s
}

func attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
