package render

import (
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/markup"
)

// Boundary is the isolation scope attached to one host element. It is
// modelled as a declarative shadow root, a <template shadowrootmode="open">
// first child of the host, so the serialised host can be attached verbatim
// by a browser.
type Boundary struct {
	host    *html.Node
	root    *html.Node
	style   *html.Node
	wrapper *html.Node
}

// Host returns the element the boundary is attached to.
func (b *Boundary) Host() *html.Node { return b.host }

// Root returns the shadow root node.
func (b *Boundary) Root() *html.Node { return b.root }

// Style returns the injected style element, or nil when the bundle had none.
func (b *Boundary) Style() *html.Node { return b.style }

// Wrapper returns the bundle's content root.
func (b *Boundary) Wrapper() *html.Node { return b.wrapper }

// HTML serialises the shadow root and its content.
func (b *Boundary) HTML() (string, error) {
	return markup.Render(b.root)
}

// ContentHTML serialises only what is inside the shadow root.
func (b *Boundary) ContentHTML() (string, error) {
	return markup.RenderChildren(b.root)
}

func (b *Boundary) clear() {
	markup.RemoveChildren(b.root)
	b.style = nil
	b.wrapper = nil
}
