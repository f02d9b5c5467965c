package render

import (
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/fetch"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/markup"
)

// Attributes and markup the renderer writes into every boundary.
const (
	ShadowRootAttr = "shadowrootmode"
	WrapperAttr    = "data-subapp"
	Placeholder    = `<div style="padding:12px;color:#a3a3a3;">Nothing to display</div>`
)

var closeStyle = regexp.MustCompile(`(?i)</style`)

// ErrNoHost is returned when Render is called without a host element.
var ErrNoHost = errors.New("render: host element is nil")

// Renderer mounts resolved bundles into per-host isolation boundaries.
type Renderer struct {
	mu         sync.Mutex
	boundaries map[*html.Node]*Boundary
	sanitizer  *bluemonday.Policy
	logger     *zap.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSanitizer strips unsafe markup before it is mounted.
func WithSanitizer(p *bluemonday.Policy) Option {
	return func(r *Renderer) { r.sanitizer = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l.Named("render")
		}
	}
}

// New creates a renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		boundaries: make(map[*html.Node]*Boundary),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SanitizePolicy allows user-generated content plus inline styles and the
// attributes bundles use to address their own elements.
func SanitizePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("id", "class", "style", "title", "role").Globally()
	p.AllowDataAttributes()
	p.AllowElements("section", "header", "footer", "main", "nav", "article", "aside", "button", "canvas", "label")
	p.AllowAttrs("type", "value", "placeholder", "name", "disabled", "checked").OnElements("input", "button", "textarea", "select", "option")
	p.AllowElements("input", "textarea", "select", "option")
	return p
}

// Render clears the host's boundary and mounts res into it: the style block
// first, then a wrapper holding the normalised markup, or a placeholder when
// there is none. The returned boundary's Wrapper is the only node scripts
// may touch.
func (r *Renderer) Render(host *html.Node, res fetch.Resolved) (*Boundary, error) {
	if host == nil {
		return nil, ErrNoHost
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.attach(host)
	b.clear()

	if res.Style != "" {
		style := markup.NewElement("style")
		style.AppendChild(markup.NewText(closeStyle.ReplaceAllString(res.Style, `<\/style`)))
		b.root.AppendChild(style)
		b.style = style
	}

	wrapper := markup.NewElement("div", html.Attribute{Key: WrapperAttr, Val: "true"})
	b.root.AppendChild(wrapper)
	b.wrapper = wrapper

	content := r.prepare(res.Markup)
	if strings.TrimSpace(content) == "" {
		content = Placeholder
	}

	nodes, err := markup.Fragment(content, wrapper)
	if err != nil {
		r.logger.Warn("Markup not parseable, inserting as text", zap.Error(err))
		wrapper.AppendChild(markup.NewText(content))
		return b, nil
	}
	// Serialised script elements would run unsandboxed once the boundary
	// reaches a browser.
	for _, n := range markup.StripElements(nodes, atom.Script) {
		wrapper.AppendChild(n)
	}
	return b, nil
}

// prepare strips document wrappers and sanitises when configured.
func (r *Renderer) prepare(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	content, err := markup.Normalize(raw)
	if err != nil {
		r.logger.Warn("Markup normalisation failed, using raw text", zap.Error(err))
	}
	if r.sanitizer != nil {
		content = r.sanitizer.Sanitize(content)
	}
	return content
}

// Boundary returns the host's current boundary, if any.
func (r *Renderer) Boundary(host *html.Node) (*Boundary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.boundaries[host]
	return b, ok
}

// Detach removes the host's boundary and everything rendered in it.
func (r *Renderer) Detach(host *html.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.boundaries[host]
	if !ok {
		return
	}
	b.clear()
	if b.root.Parent != nil {
		b.root.Parent.RemoveChild(b.root)
	}
	delete(r.boundaries, host)
}

// Len returns the number of hosts with a boundary.
func (r *Renderer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.boundaries)
}

// attach returns the host's boundary, creating it on first use. A
// declarative shadow root already present on the host is adopted.
func (r *Renderer) attach(host *html.Node) *Boundary {
	if b, ok := r.boundaries[host]; ok {
		return b
	}

	var root *html.Node
	for c := host.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Template {
			if _, ok := markup.Attr(c, ShadowRootAttr); ok {
				root = c
				break
			}
		}
	}
	if root == nil {
		root = markup.NewElement("template", html.Attribute{Key: ShadowRootAttr, Val: "open"})
		if host.FirstChild != nil {
			host.InsertBefore(root, host.FirstChild)
		} else {
			host.AppendChild(root)
		}
	}

	b := &Boundary{host: host, root: root}
	r.boundaries[host] = b
	return b
}
