package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/fetch"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/markup"
)

func newHost(t *testing.T) (*html.Node, *html.Node) {
	t.Helper()
	doc, err := markup.ParseDocument(`<html><head><style>.host{}</style></head><body><nav>menu</nav><div id="viewer"></div></body></html>`)
	require.NoError(t, err)

	var host *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if v, ok := markup.Attr(n, "id"); ok && v == "viewer" {
			host = n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	require.NotNil(t, host)
	return doc, host
}

func TestRenderMountsStyleThenWrapper(t *testing.T) {
	_, host := newHost(t)
	r := New()

	b, err := r.Render(host, fetch.Resolved{Markup: `<p id="x">hello</p>`, Style: "p{color:red}"})
	require.NoError(t, err)

	assert.Same(t, host, b.Host())
	assert.Same(t, host.FirstChild, b.Root())

	out, err := b.HTML()
	require.NoError(t, err)
	assert.Equal(t,
		`<template shadowrootmode="open"><style>p{color:red}</style><div data-subapp="true"><p id="x">hello</p></div></template>`,
		out)

	require.NotNil(t, b.Style())
	assert.Same(t, b.Root().FirstChild, b.Style())
	assert.Same(t, b.Root().LastChild, b.Wrapper())
}

func TestRenderWithoutStyle(t *testing.T) {
	_, host := newHost(t)
	b, err := New().Render(host, fetch.Resolved{Markup: "<b>x</b>"})
	require.NoError(t, err)

	assert.Nil(t, b.Style())
	out, err := b.ContentHTML()
	require.NoError(t, err)
	assert.Equal(t, `<div data-subapp="true"><b>x</b></div>`, out)
}

func TestRenderPlaceholder(t *testing.T) {
	_, host := newHost(t)
	r := New()

	for _, m := range []string{"", "   \n", "<!DOCTYPE html><html><head><title>t</title></head><body></body></html>"} {
		b, err := r.Render(host, fetch.Resolved{Markup: m})
		require.NoError(t, err)
		out, err := markup.RenderChildren(b.Wrapper())
		require.NoError(t, err)
		assert.Equal(t, Placeholder, out, "markup %q", m)
	}
}

func TestRenderNormalizesFullDocument(t *testing.T) {
	_, host := newHost(t)
	b, err := New().Render(host, fetch.Resolved{
		Markup: "<!DOCTYPE html><html><head><title>T</title></head><body><main>m</main></body></html>",
	})
	require.NoError(t, err)

	out, err := markup.RenderChildren(b.Wrapper())
	require.NoError(t, err)
	assert.Equal(t, "<main>m</main>", out)
}

func TestRerenderLeavesNoResidue(t *testing.T) {
	doc, host := newHost(t)
	r := New()

	_, err := r.Render(host, fetch.Resolved{Markup: `<div class="bundle-a">A</div>`, Style: ".bundle-a{}"})
	require.NoError(t, err)

	b, err := r.Render(host, fetch.Resolved{Markup: `<div class="bundle-b">B</div>`})
	require.NoError(t, err)

	page, err := markup.Render(doc)
	require.NoError(t, err)
	assert.NotContains(t, page, "bundle-a")
	assert.Contains(t, page, "bundle-b")
	assert.Equal(t, 1, strings.Count(page, "<template"))
	assert.Equal(t, 1, r.Len())

	// The host document is untouched outside the boundary.
	assert.Contains(t, page, "<style>.host{}</style>")
	assert.Contains(t, page, "<nav>menu</nav>")

	same, ok := r.Boundary(host)
	require.True(t, ok)
	assert.Same(t, b, same)
}

func TestRenderAdoptsDeclarativeRoot(t *testing.T) {
	doc, err := markup.ParseDocument(`<div id="h"><template shadowrootmode="open"><p>old</p></template></div>`)
	require.NoError(t, err)
	host := markup.Body(doc).FirstChild

	b, err := New().Render(host, fetch.Resolved{Markup: "<p>new</p>"})
	require.NoError(t, err)

	page, err := markup.Render(host)
	require.NoError(t, err)
	assert.Equal(t, `<div id="h"><template shadowrootmode="open"><div data-subapp="true"><p>new</p></div></template></div>`, page)
	assert.Same(t, host.FirstChild, b.Root())
}

func TestDetach(t *testing.T) {
	_, host := newHost(t)
	r := New()

	_, err := r.Render(host, fetch.Resolved{Markup: "<p>x</p>"})
	require.NoError(t, err)

	r.Detach(host)
	assert.Nil(t, host.FirstChild)
	assert.Equal(t, 0, r.Len())

	_, ok := r.Boundary(host)
	assert.False(t, ok)

	// Detaching twice is harmless.
	r.Detach(host)
}

func TestRenderNilHost(t *testing.T) {
	_, err := New().Render(nil, fetch.Resolved{})
	assert.ErrorIs(t, err, ErrNoHost)
}

func TestSanitizer(t *testing.T) {
	_, host := newHost(t)
	r := New(WithSanitizer(SanitizePolicy()))

	b, err := r.Render(host, fetch.Resolved{
		Markup: `<div id="app" class="c" style="color:red" data-role="x" onclick="steal()"><iframe src="https://evil"></iframe>ok</div>`,
	})
	require.NoError(t, err)

	out, err := markup.RenderChildren(b.Wrapper())
	require.NoError(t, err)
	assert.Contains(t, out, `id="app"`)
	assert.Contains(t, out, `class="c"`)
	assert.Contains(t, out, `data-role="x"`)
	assert.Contains(t, out, "ok")
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "iframe")
}

func TestRenderDropsScriptElements(t *testing.T) {
	_, host := newHost(t)
	b, err := New().Render(host, fetch.Resolved{
		Markup: `<p>a</p><script>alert(1)</script>`,
		Style:  `p{}</style><script>alert(2)</script>`,
	})
	require.NoError(t, err)

	out, err := b.HTML()
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "</style>"))
	assert.NotContains(t, out, "<script>alert(1)")

	content, err := markup.RenderChildren(b.Wrapper())
	require.NoError(t, err)
	assert.Equal(t, "<p>a</p>", content)
}
