package loader

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/bundle/files"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/fetch"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/sandbox"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type gatedSource struct {
	started chan struct{}
	release chan struct{}
	res     *fetch.Result
}

func newGatedSource(markup string) *gatedSource {
	return &gatedSource{
		started: make(chan struct{}),
		release: make(chan struct{}),
		res:     fetch.Inline(markup, "", ""),
	}
}

func (g *gatedSource) Resolve(ctx context.Context) (*fetch.Result, error) {
	close(g.started)
	select {
	case <-g.release:
		return g.res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type countingRecorder struct {
	mu       sync.Mutex
	opens    map[string]int
	warnings int
	failed   int
	ran      int
}

func (r *countingRecorder) RecordOpen(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opens == nil {
		r.opens = make(map[string]int)
	}
	r.opens[outcome]++
}

func (r *countingRecorder) RecordFetchWarnings(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings += n
}

func (r *countingRecorder) RecordScript(failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if failed {
		r.failed++
	} else {
		r.ran++
	}
}

func newDeps(t *testing.T, bundle map[string]string) Deps {
	t.Helper()
	pool, err := sandbox.NewPool(sandbox.DefaultConfig(), 2, nil)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	var list []*files.File
	for rel, text := range bundle {
		list = append(list, files.FromBytes("", rel, []byte(text)))
	}

	return Deps{
		Fetcher:  fetch.NewFromFS(fetch.NewIndexFS(files.Build(list)), nil),
		Executor: sandbox.NewExecutor(pool, nil),
	}
}

func TestOpenEntry(t *testing.T) {
	deps := newDeps(t, map[string]string{
		"notes/index.html": `<link rel="stylesheet" href="a.css"><div id="root">Hi</div><script src="a.js"></script>`,
		"notes/a.css":      `#root{color:red}`,
		"notes/a.js":       `document.getElementById("root").textContent = "Loaded"`,
	})
	v := NewViewer("win_1", deps)

	view, err := v.Open(context.Background(), Request{Title: "Notes", EntryPath: "notes/index.html"})
	require.NoError(t, err)

	assert.Equal(t, "win_1", view.ViewerID)
	assert.Equal(t, "Notes", view.Title)
	assert.Equal(t, uint64(1), view.Generation)
	assert.False(t, view.Notice)
	assert.Empty(t, view.Warnings)
	assert.Equal(t,
		`<template shadowrootmode="open"><style>#root{color:red}</style><div data-subapp="true"><div id="root">Loaded</div></div></template>`,
		view.HTML)
	assert.Same(t, view, v.Current())

	doc, err := v.Document()
	require.NoError(t, err)
	assert.Contains(t, doc, `<div data-viewer="win_1"><template shadowrootmode="open">`)
}

func TestOpenInline(t *testing.T) {
	v := NewViewer("win_1", newDeps(t, nil))

	view, err := v.Open(context.Background(), Request{Inline: &fetch.Resolved{
		Markup: `<p id="p">x</p>`,
		Script: `console.log(document.getElementById("p").textContent)`,
	}})
	require.NoError(t, err)

	require.Len(t, view.Console, 1)
	assert.Equal(t, "x", view.Console[0].Message)
}

func TestOpenScriptFailureStillShowsMarkup(t *testing.T) {
	rec := &countingRecorder{}
	deps := newDeps(t, nil)
	deps.Recorder = rec
	v := NewViewer("win_1", deps)

	view, err := v.Open(context.Background(), Request{Inline: &fetch.Resolved{
		Markup: `<p>kept</p>`,
		Script: `throw new Error("boom")`,
	}})
	require.NoError(t, err)

	assert.True(t, view.Notice)
	assert.Contains(t, view.HTML, `<p>kept</p><div data-subapp-notice="true"`)
	assert.Equal(t, 1, strings.Count(view.HTML, "data-subapp-notice"))
	assert.Equal(t, 1, rec.failed)
	assert.Equal(t, 1, rec.opens[OutcomeOK])
}

func TestOpenMissingResourceWarns(t *testing.T) {
	rec := &countingRecorder{}
	deps := newDeps(t, map[string]string{
		"index.html": `<link rel="stylesheet" href="gone.css"><p>x</p>`,
	})
	deps.Recorder = rec
	v := NewViewer("win_1", deps)

	view, err := v.Open(context.Background(), Request{EntryPath: "index.html"})
	require.NoError(t, err)

	require.Len(t, view.Warnings, 1)
	assert.ErrorIs(t, view.Warnings[0], ErrResourceReadFailed)
	assert.Equal(t, 1, rec.warnings)
}

func TestOpenUnreadableEntry(t *testing.T) {
	rec := &countingRecorder{}
	deps := newDeps(t, nil)
	deps.Recorder = rec
	v := NewViewer("win_1", deps)

	_, err := v.Open(context.Background(), Request{EntryPath: "missing.html"})
	require.Error(t, err)
	assert.Nil(t, v.Current())
	assert.Equal(t, 1, rec.opens[OutcomeError])
}

func TestOpenNothing(t *testing.T) {
	v := NewViewer("win_1", newDeps(t, nil))
	_, err := v.Open(context.Background(), Request{Title: "empty"})
	assert.ErrorIs(t, err, ErrNothingToOpen)
}

func TestStaleOpenIsDiscarded(t *testing.T) {
	rec := &countingRecorder{}
	deps := newDeps(t, nil)
	deps.Recorder = rec
	v := NewViewer("win_1", deps)

	slow := newGatedSource(`<p>A</p>`)
	type result struct {
		view *View
		err  error
	}
	done := make(chan result, 1)
	go func() {
		view, err := v.Open(context.Background(), Request{Title: "A", Source: slow})
		done <- result{view, err}
	}()
	<-slow.started

	viewB, err := v.Open(context.Background(), Request{Title: "B", Inline: &fetch.Resolved{Markup: `<p>B</p>`}})
	require.NoError(t, err)

	close(slow.release)
	a := <-done

	assert.ErrorIs(t, a.err, ErrStale)
	assert.Nil(t, a.view)
	assert.Same(t, viewB, v.Current())
	assert.Equal(t, uint64(2), viewB.Generation)

	doc, err := v.Document()
	require.NoError(t, err)
	assert.Contains(t, doc, "<p>B</p>")
	assert.NotContains(t, doc, "<p>A</p>")
	assert.Equal(t, 1, rec.opens[OutcomeStale])
}

func TestCloseDiscardsInFlightOpen(t *testing.T) {
	v := NewViewer("win_1", newDeps(t, nil))

	slow := newGatedSource(`<p>A</p>`)
	done := make(chan error, 1)
	go func() {
		_, err := v.Open(context.Background(), Request{Source: slow})
		done <- err
	}()
	<-slow.started

	v.Close()
	close(slow.release)

	assert.ErrorIs(t, <-done, ErrStale)
	assert.Nil(t, v.Current())

	doc, err := v.Document()
	require.NoError(t, err)
	assert.NotContains(t, doc, "template")
}

func TestReopenLeavesNoResidue(t *testing.T) {
	v := NewViewer("win_1", newDeps(t, nil))
	ctx := context.Background()

	_, err := v.Open(ctx, Request{Inline: &fetch.Resolved{Markup: `<p>A</p>`, Style: `p{}`, Script: `throw 1`}})
	require.NoError(t, err)
	_, err = v.Open(ctx, Request{Inline: &fetch.Resolved{Markup: `<p>B</p>`}})
	require.NoError(t, err)

	doc, err := v.Document()
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(doc, "<template"))
	assert.NotContains(t, doc, "<p>A</p>")
	assert.NotContains(t, doc, "<style>")
	assert.NotContains(t, doc, "data-subapp-notice")
	assert.Contains(t, doc, "<p>B</p>")
}

func TestViewerEvents(t *testing.T) {
	v := NewViewer("win_1", newDeps(t, nil))
	events, cancel := v.Subscribe()
	defer cancel()

	_, err := v.Open(context.Background(), Request{Inline: &fetch.Resolved{Markup: `x`}})
	require.NoError(t, err)
	v.Close()

	opened := <-events
	assert.Equal(t, EventOpened, opened.Type)
	require.NotNil(t, opened.View)
	closed := <-events
	assert.Equal(t, EventClosed, closed.Type)
	assert.Equal(t, uint64(2), closed.Generation)
}

func TestViewers(t *testing.T) {
	set := NewViewers(newDeps(t, nil))

	a, created := set.GetOrCreate("win_b")
	assert.True(t, created)
	again, created := set.GetOrCreate("win_b")
	assert.False(t, created)
	assert.Same(t, a, again)
	set.GetOrCreate("win_a")

	assert.Equal(t, []string{"win_a", "win_b"}, set.IDs())

	events, cancel := a.Subscribe()
	defer cancel()

	require.NoError(t, set.Remove("win_b"))
	assert.ErrorIs(t, set.Remove("win_b"), ErrViewerNotFound)
	_, ok := set.Get("win_b")
	assert.False(t, ok)

	ev, ok := <-events
	require.True(t, ok)
	assert.Equal(t, EventClosed, ev.Type)
	_, ok = <-events
	assert.False(t, ok)

	set.CloseAll()
	assert.Equal(t, 0, set.Len())
}
