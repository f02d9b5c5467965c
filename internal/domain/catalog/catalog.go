package catalog

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/bundle/files"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/bundle/importer"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/bundle/manifest"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader"
)

var (
	// ErrDuplicateID is returned when an app with the same ID is already listed.
	ErrDuplicateID = errors.New("app id already exists")
	ErrNotFound    = errors.New("app not found")
	ErrBuiltin     = errors.New("built-in apps cannot be removed")
)

// Kind tells where an app came from.
type Kind string

const (
	KindBuiltin  Kind = "builtin"
	KindImported Kind = "imported"
)

// App is one catalog entry.
type App struct {
	manifest.Manifest
	Kind      Kind      `json:"kind"`
	EntryPath string    `json:"entry_path,omitempty"`
	AddedAt   time.Time `json:"added_at"`

	bundle *importer.Bundle
	folder string
}

// Bundle returns the imported bundle, nil for built-ins.
func (a App) Bundle() *importer.Bundle { return a.bundle }

func (a App) clone() App {
	a.Tags = append([]string(nil), a.Tags...)
	a.HTML.Paths = append([]string(nil), a.HTML.Paths...)
	a.CSS.Paths = append([]string(nil), a.CSS.Paths...)
	a.JS.Paths = append([]string(nil), a.JS.Paths...)
	return a
}

// Options configures a Catalog.
type Options struct {
	Dir    string // directory holding one sub-directory per built-in app
	Logger *zap.Logger
	Now    func() time.Time
}

// Catalog lists built-in and imported apps. Built-ins come first, each group
// in the order it was added.
type Catalog struct {
	mu     sync.RWMutex
	apps   map[string]*App // Protected by mu
	order  []string        // Protected by mu
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// New creates an empty catalog.
func New(opts Options) *Catalog {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	dir := opts.Dir
	if dir == "" {
		dir = "apps"
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return &Catalog{
		apps:   make(map[string]*App),
		dir:    dir,
		logger: opts.Logger.Named("catalog"),
		now:    opts.Now,
	}
}

// Dir returns the absolute built-in apps directory.
func (c *Catalog) Dir() string { return c.dir }

// Root returns the directory built-in entry paths are relative to.
func (c *Catalog) Root() string { return filepath.Dir(c.dir) }

// SeedBuiltins registers the shipped apps.
func (c *Catalog) SeedBuiltins() {
	for _, m := range Builtins() {
		if err := c.PutBuiltin(m, m.ID); err != nil {
			c.logger.Warn("Built-in app not registered", zap.String("app_id", m.ID), zap.Error(err))
		}
	}
}

// PutBuiltin adds or replaces a built-in app whose files live in
// <dir>/<folder>. An imported app with the same ID is never replaced.
func (c *Catalog) PutBuiltin(m manifest.Manifest, folder string) error {
	m.ApplyDefaults()
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}

	app := &App{
		Manifest:  m,
		Kind:      KindBuiltin,
		EntryPath: path.Join(filepath.Base(c.dir), folder, entryName(&m)),
		AddedAt:   c.now(),
		folder:    folder,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.apps[m.ID]; ok {
		if prev.Kind != KindBuiltin {
			return fmt.Errorf("%w: %s", ErrDuplicateID, m.ID)
		}
		app.AddedAt = prev.AddedAt
		c.apps[m.ID] = app
		return nil
	}

	// Built-ins stay ahead of imported apps.
	at := 0
	for at < len(c.order) && c.apps[c.order[at]].Kind == KindBuiltin {
		at++
	}
	c.order = append(c.order, "")
	copy(c.order[at+1:], c.order[at:])
	c.order[at] = m.ID
	c.apps[m.ID] = app
	return nil
}

// Add lists an imported bundle. Duplicate IDs are rejected.
func (c *Catalog) Add(b *importer.Bundle) (App, error) {
	if b == nil || b.Manifest == nil {
		return App{}, errors.New("bundle is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := b.ID()
	if _, ok := c.apps[id]; ok {
		return App{}, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	added := b.ImportedAt
	if added.IsZero() {
		added = c.now()
	}
	app := &App{
		Manifest: *b.Manifest,
		Kind:     KindImported,
		AddedAt:  added,
		bundle:   b,
	}
	c.apps[id] = app
	c.order = append(c.order, id)

	c.logger.Info("App added", zap.String("app_id", id), zap.String("name", app.Name))
	return app.clone(), nil
}

// Get returns a copy of one app.
func (c *Catalog) Get(id string) (App, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	app, ok := c.apps[id]
	if !ok {
		return App{}, false
	}
	return app.clone(), true
}

// List returns copies of all apps.
func (c *Catalog) List() []App {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]App, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.apps[id].clone())
	}
	return out
}

// Len returns the number of listed apps.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Remove drops an imported app.
func (c *Catalog) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	app, ok := c.apps[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if app.Kind == KindBuiltin {
		return fmt.Errorf("%w: %s", ErrBuiltin, id)
	}

	delete(c.apps, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Request builds the viewer request that opens an app. Built-ins open by
// entry path; imported apps resolve from their bundle on every open.
func (c *Catalog) Request(id string) (loader.Request, error) {
	app, ok := c.Get(id)
	if !ok {
		return loader.Request{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	req := loader.Request{Title: app.Name}
	if app.bundle != nil {
		req.Source = app.bundle
	} else {
		req.EntryPath = app.EntryPath
	}
	return req, nil
}

// File returns one file of an app by bundle-relative path.
func (c *Catalog) File(_ context.Context, id, rel string) (*files.File, error) {
	app, ok := c.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if rel = files.CleanPath(rel); rel == "" || rel == ".." || strings.HasPrefix(rel, "../") {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, id, rel)
	}

	if app.bundle != nil {
		f, ok := app.bundle.Index.Resolve(rel)
		if !ok {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, id, rel)
		}
		return f, nil
	}

	full := filepath.Join(c.dir, app.folder, filepath.FromSlash(rel))
	f, err := files.FromDisk(full, rel)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %w", ErrNotFound, id, rel, err)
	}
	return f, nil
}

func entryName(m *manifest.Manifest) string {
	switch {
	case m.Entry != "":
		return files.CleanPath(m.Entry)
	case m.HTML.First() != "":
		return files.CleanPath(m.HTML.First())
	}
	return manifest.DefaultEntry
}
