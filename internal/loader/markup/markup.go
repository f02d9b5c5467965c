// Package markup turns bundle HTML into fragments that can be mounted
// inside a host element.
package markup

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrParseFailed marks markup that could not be parsed or serialised. The
// raw text is used instead.
var ErrParseFailed = errors.New("markup parse failed")

// ParseDocument parses raw as a complete HTML document.
func ParseDocument(raw string) (*html.Node, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	return doc, nil
}

// Normalize drops doctype, html and head wrappers and returns what would be
// rendered inside body. On failure it returns raw together with an
// ErrParseFailed error so the caller can still insert something.
func Normalize(raw string) (string, error) {
	doc, err := ParseDocument(raw)
	if err != nil {
		return raw, err
	}
	body := Body(doc)
	if body == nil {
		return raw, fmt.Errorf("%w: no body", ErrParseFailed)
	}
	out, err := RenderChildren(body)
	if err != nil {
		return raw, err
	}
	return out, nil
}

// Body finds the body element of a parsed document.
func Body(doc *html.Node) *html.Node {
	var walk func(*html.Node) *html.Node
	walk = func(n *html.Node) *html.Node {
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			return n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if found := walk(c); found != nil {
				return found
			}
		}
		return nil
	}
	if doc == nil {
		return nil
	}
	return walk(doc)
}

// Fragment parses markup as the children of context. A nil context parses in
// a div.
func Fragment(raw string, context *html.Node) ([]*html.Node, error) {
	if context == nil {
		context = NewElement("div")
	}
	nodes, err := html.ParseFragment(strings.NewReader(raw), context)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	return nodes, nil
}

// SetInner replaces the children of n with the parsed markup.
func SetInner(n *html.Node, raw string) error {
	nodes, err := Fragment(raw, n)
	if err != nil {
		return err
	}
	RemoveChildren(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return nil
}

// Render serialises nodes back to HTML.
func Render(nodes ...*html.Node) (string, error) {
	var sb strings.Builder
	for _, n := range nodes {
		if err := html.Render(&sb, n); err != nil {
			return "", fmt.Errorf("%w: %v", ErrParseFailed, err)
		}
	}
	return sb.String(), nil
}

// RenderChildren serialises the children of n.
func RenderChildren(n *html.Node) (string, error) {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return "", fmt.Errorf("%w: %v", ErrParseFailed, err)
		}
	}
	return sb.String(), nil
}

// RemoveChildren detaches every child of n.
func RemoveChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// NewElement creates a detached element node.
func NewElement(tag string, attrs ...html.Attribute) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

// NewText creates a detached text node.
func NewText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces attribute key on n.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes attribute key from n.
func RemoveAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

// StripElements removes every element with one of the given tags from nodes
// and their descendants. Top-level matches are dropped from the result.
func StripElements(nodes []*html.Node, tags ...atom.Atom) []*html.Node {
	match := func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, t := range tags {
			if n.DataAtom == t {
				return true
			}
		}
		return false
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			if match(c) {
				n.RemoveChild(c)
			} else {
				walk(c)
			}
			c = next
		}
	}

	out := nodes[:0]
	for _, n := range nodes {
		if match(n) {
			continue
		}
		walk(n)
		out = append(out, n)
	}
	return out
}
