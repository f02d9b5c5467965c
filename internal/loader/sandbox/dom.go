package sandbox

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/markup"
)

var tagName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*$`)

// Document is a document substitute scoped to one wrapper element. Lookups
// only ever see the wrapper's descendants, never the wrapper itself or
// anything outside it.
type Document struct {
	root *html.Node
	top  *html.Node
}

// NewDocument scopes a document to root.
func NewDocument(root *html.Node) *Document {
	return &Document{root: root, top: topOf(root)}
}

// Root returns the scope element.
func (d *Document) Root() *html.Node { return d.root }

// GetElementByID returns the first descendant whose id equals id.
func (d *Document) GetElementByID(id string) *html.Node {
	if d.root == nil || id == "" {
		return nil
	}
	n, err := htmlquery.Query(d.root, ".//*[@id="+xpathLiteral(id)+"]")
	if err != nil {
		return nil
	}
	return n
}

// QuerySelector returns the first descendant matching sel.
func (d *Document) QuerySelector(sel string) (*html.Node, error) {
	return queryFirst(d.root, sel)
}

// QuerySelectorAll returns every descendant matching sel in document order.
func (d *Document) QuerySelectorAll(sel string) ([]*html.Node, error) {
	return queryAll(d.root, sel)
}

// CreateElement returns a new detached element.
func (d *Document) CreateElement(tag string) (*html.Node, error) {
	if !tagName.MatchString(tag) {
		return nil, fmt.Errorf("invalid tag name %q", tag)
	}
	return markup.NewElement(tag), nil
}

// Exposable reports whether a script may hold a reference to n: any
// descendant of the scope element, or a node that was never attached to the
// host document.
func (d *Document) Exposable(n *html.Node) bool {
	if n == nil || n == d.root {
		return false
	}
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
		if p.Parent == nil {
			return p != d.top
		}
	}
	return false
}

func queryFirst(scope *html.Node, sel string) (*html.Node, error) {
	s, err := compile(sel)
	if err != nil || scope == nil {
		return nil, err
	}
	for c := scope.FirstChild; c != nil; c = c.NextSibling {
		if n := s.MatchFirst(c); n != nil {
			return n, nil
		}
	}
	return nil, nil
}

func queryAll(scope *html.Node, sel string) ([]*html.Node, error) {
	s, err := compile(sel)
	if err != nil || scope == nil {
		return nil, err
	}
	out := []*html.Node{}
	for c := scope.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, s.MatchAll(c)...)
	}
	return out, nil
}

func compile(sel string) (cascadia.Selector, error) {
	s, err := cascadia.Compile(strings.TrimSpace(sel))
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", sel, err)
	}
	return s, nil
}

// xpathLiteral quotes s for use in an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ",") + ")"
}

func topOf(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

func contains(ancestor, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}
