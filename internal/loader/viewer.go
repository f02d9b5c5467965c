package loader

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/fetch"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/markup"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/render"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/sandbox"
)

// Open outcomes reported to a Recorder.
const (
	OutcomeOK    = "ok"
	OutcomeStale = "stale"
	OutcomeError = "error"
)

// Source resolves a bundle on demand. Imported bundles implement it so
// their files are re-read on every open.
type Source interface {
	Resolve(ctx context.Context) (*fetch.Result, error)
}

// Request names what to open. Source wins over Inline, Inline over
// EntryPath.
type Request struct {
	Title     string
	EntryPath string
	Inline    *fetch.Resolved
	Source    Source
}

// View is the outcome of one successful open.
type View struct {
	ViewerID   string             `json:"viewer_id"`
	Title      string             `json:"title"`
	Generation uint64             `json:"generation"`
	HTML       string             `json:"html"`
	Console    []sandbox.LogEntry `json:"console,omitempty"`
	Notice     bool               `json:"notice"`
	Error      string             `json:"error,omitempty"`
	Warnings   []fetch.Warning    `json:"warnings,omitempty"`
	Script     sandbox.Report     `json:"script"`
	Duration   time.Duration      `json:"duration"`
}

// Recorder receives pipeline measurements.
type Recorder interface {
	RecordOpen(outcome string, d time.Duration)
	RecordFetchWarnings(n int)
	RecordScript(failed bool)
}

// Deps are the pipeline stages a viewer drives.
type Deps struct {
	Fetcher  *fetch.Fetcher
	Renderer *render.Renderer
	Executor *sandbox.Executor
	Recorder Recorder
	Logger   *zap.Logger
}

// Viewer owns one host element and shows at most one bundle in it. Opens
// may overlap; each takes a generation and only the latest one renders.
type Viewer struct {
	id   string
	doc  *html.Node
	host *html.Node
	deps Deps
	gen  atomic.Uint64
	mu   sync.Mutex
	view *View
	hub  *hub
}

// NewViewer creates a viewer with its own host document.
func NewViewer(id string, deps Deps) *Viewer {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	deps.Logger = deps.Logger.Named("viewer").With(zap.String("viewer_id", id))
	if deps.Renderer == nil {
		deps.Renderer = render.New(render.WithLogger(deps.Logger))
	}

	doc, host := newHostDocument(id)
	return &Viewer{
		id:   id,
		doc:  doc,
		host: host,
		deps: deps,
		hub:  newHub(),
	}
}

func newHostDocument(id string) (*html.Node, *html.Node) {
	doc := &html.Node{Type: html.DocumentNode}
	htmlEl := markup.NewElement("html")
	body := markup.NewElement("body")
	host := markup.NewElement("div", html.Attribute{Key: "data-viewer", Val: id})
	doc.AppendChild(htmlEl)
	htmlEl.AppendChild(body)
	body.AppendChild(host)
	return doc, host
}

// ID returns the viewer ID.
func (v *Viewer) ID() string { return v.id }

// Host returns the element bundles are rendered into.
func (v *Viewer) Host() *html.Node { return v.host }

// Document serialises the whole host document, boundary included.
func (v *Viewer) Document() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return markup.Render(v.doc)
}

// Generation returns the current generation.
func (v *Viewer) Generation() uint64 { return v.gen.Load() }

// Current returns the last view, or nil when nothing is open.
func (v *Viewer) Current() *View {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.view
}

// Open resolves, renders and runs a bundle. When another Open or a Close
// happens before resolution finishes, the result is discarded and ErrStale
// returned.
func (v *Viewer) Open(ctx context.Context, req Request) (*View, error) {
	gen := v.gen.Add(1)
	start := time.Now()
	log := v.deps.Logger.With(zap.Uint64("generation", gen), zap.String("title", req.Title))

	res, err := v.resolve(ctx, req)
	if err != nil {
		if v.gen.Load() != gen {
			v.record(OutcomeStale, start)
			return nil, fmt.Errorf("%w: generation %d: %v", ErrStale, gen, err)
		}
		v.record(OutcomeError, start)
		log.Warn("Failed to resolve bundle", zap.Error(err))
		return nil, err
	}
	if n := len(res.Warnings); n > 0 && v.deps.Recorder != nil {
		v.deps.Recorder.RecordFetchWarnings(n)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.gen.Load() != gen {
		v.record(OutcomeStale, start)
		log.Debug("Discarding stale bundle")
		return nil, fmt.Errorf("%w: generation %d", ErrStale, gen)
	}

	boundary, err := v.deps.Renderer.Render(v.host, res.Resolved)
	if err != nil {
		v.record(OutcomeError, start)
		return nil, fmt.Errorf("render: %w", err)
	}

	var rep sandbox.Report
	if v.deps.Executor != nil {
		rep = v.deps.Executor.Execute(ctx, boundary.Wrapper(), res.Script)
	} else if strings.TrimSpace(res.Script) != "" {
		sandbox.AppendNotice(boundary.Wrapper())
		rep = sandbox.Report{Notice: true, Error: "no script executor configured"}
	}
	if v.deps.Recorder != nil && (rep.Ran || rep.Notice) {
		v.deps.Recorder.RecordScript(rep.Notice)
	}

	out, err := boundary.HTML()
	if err != nil {
		log.Warn("Failed to serialise boundary", zap.Error(err))
	}

	view := &View{
		ViewerID:   v.id,
		Title:      req.Title,
		Generation: gen,
		HTML:       out,
		Console:    rep.Console,
		Notice:     rep.Notice,
		Error:      rep.Error,
		Warnings:   res.Warnings,
		Script:     rep,
		Duration:   time.Since(start),
	}
	v.view = view
	v.record(OutcomeOK, start)
	v.hub.publish(Event{Type: EventOpened, ViewerID: v.id, Generation: gen, View: view})

	log.Info("Bundle opened",
		zap.Int("warnings", len(res.Warnings)),
		zap.Bool("notice", view.Notice),
		zap.Duration("duration", view.Duration))
	return view, nil
}

func (v *Viewer) resolve(ctx context.Context, req Request) (*fetch.Result, error) {
	switch {
	case req.Source != nil:
		return req.Source.Resolve(ctx)
	case req.Inline != nil:
		return fetch.Inline(req.Inline.Markup, req.Inline.Style, req.Inline.Script), nil
	case strings.TrimSpace(req.EntryPath) != "":
		if v.deps.Fetcher == nil {
			return nil, fmt.Errorf("%w: no fetcher for %s", ErrNothingToOpen, req.EntryPath)
		}
		return v.deps.Fetcher.Entry(ctx, req.EntryPath)
	default:
		return nil, ErrNothingToOpen
	}
}

// Close discards whatever is shown and invalidates in-flight opens.
func (v *Viewer) Close() {
	gen := v.gen.Add(1)

	v.mu.Lock()
	defer v.mu.Unlock()

	v.deps.Renderer.Detach(v.host)
	v.view = nil
	v.hub.publish(Event{Type: EventClosed, ViewerID: v.id, Generation: gen})
	v.deps.Logger.Debug("Viewer closed", zap.Uint64("generation", gen))
}

// Subscribe streams viewer events until cancel is called.
func (v *Viewer) Subscribe() (<-chan Event, func()) {
	return v.hub.subscribe()
}

func (v *Viewer) record(outcome string, start time.Time) {
	if v.deps.Recorder != nil {
		v.deps.Recorder.RecordOpen(outcome, time.Since(start))
	}
}
