package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentScope(t *testing.T) {
	_, wrapper := mount(t, `<div id="a"><p class="x">1</p></div><p class="x" id="it's">2</p>`)
	doc := NewDocument(wrapper)

	assert.NotNil(t, doc.GetElementByID("a"))
	assert.NotNil(t, doc.GetElementByID("it's"))
	assert.Nil(t, doc.GetElementByID("outside"))
	assert.Nil(t, doc.GetElementByID(""))

	all, err := doc.QuerySelectorAll("p.x")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := doc.QuerySelectorAll("table")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = doc.QuerySelector("p[")
	assert.Error(t, err)

	// The wrapper itself never matches.
	n, err := doc.QuerySelector("div[data-subapp]")
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestDocumentExposable(t *testing.T) {
	host, wrapper := mount(t, `<span id="in"></span>`)
	doc := NewDocument(wrapper)

	assert.True(t, doc.Exposable(doc.GetElementByID("in")))
	assert.False(t, doc.Exposable(wrapper))
	assert.False(t, doc.Exposable(host))
	assert.False(t, doc.Exposable(wrapper.Parent))

	created, err := doc.CreateElement("SECTION")
	require.NoError(t, err)
	assert.Equal(t, "section", created.Data)
	assert.True(t, doc.Exposable(created))

	_, err = doc.CreateElement("a b")
	assert.Error(t, err)
}

func TestXPathLiteral(t *testing.T) {
	assert.Equal(t, `'plain'`, xpathLiteral("plain"))
	assert.Equal(t, `"it's"`, xpathLiteral("it's"))
	assert.Equal(t, `concat('a',"'",'b"c')`, xpathLiteral(`a'b"c`))
}
