package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/bundle/files"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/bundle/manifest"
)

var (
	// ErrImportAborted means nothing was imported: the manifest or the entry
	// file is missing, or the upload could not be read at all.
	ErrImportAborted = errors.New("import aborted")

	// ErrTooLarge is wrapped in ErrImportAborted when an upload or its
	// decompressed content exceeds Options.MaxBytes.
	ErrTooLarge = errors.New("bundle exceeds size limit")
)

// DefaultIgnore are skipped by every import.
var DefaultIgnore = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/.DS_Store",
	"**/Thumbs.db",
}

// Options configures an Importer.
type Options struct {
	Ignore   []string // doublestar patterns matched against relative paths
	MaxBytes int64    // limit on archive size and total content, 0 for none
	Logger   *zap.Logger
	Now      func() time.Time
}

// Importer turns a flat set of files into a Bundle.
type Importer struct {
	ignore   []string
	maxBytes int64
	logger   *zap.Logger
	now      func() time.Time
}

// New creates an importer.
func New(opts Options) *Importer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ignore := append([]string{}, DefaultIgnore...)
	for _, p := range opts.Ignore {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			opts.Logger.Warn("Ignoring invalid ignore pattern", zap.String("pattern", p))
			continue
		}
		ignore = append(ignore, p)
	}
	return &Importer{
		ignore:   ignore,
		maxBytes: opts.MaxBytes,
		logger:   opts.Logger.Named("importer"),
		now:      opts.Now,
	}
}

// Import builds a bundle from list. Relative paths that all share one top
// directory, as a directory picker reports them, are re-rooted below it.
// Missing manifest or entry aborts the import and no bundle is returned.
func (im *Importer) Import(ctx context.Context, list []*files.File) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kept := make([]*files.File, 0, len(list))
	for _, f := range list {
		if f == nil || im.ignored(f.Key()) {
			continue
		}
		kept = append(kept, f)
	}
	kept = stripRoot(kept)

	ix := files.Build(kept)
	cfg, ok := manifest.FindConfig(ix)
	if !ok {
		return nil, im.abort("no manifest", nil, len(kept))
	}

	data, err := cfg.Bytes(ctx)
	if err != nil {
		return nil, im.abort("manifest unreadable", err, len(kept))
	}
	m, err := manifest.Decode(cfg.Name, data)
	if err != nil {
		return nil, im.abort("manifest invalid", err, len(kept))
	}
	m.ApplyDefaults()
	if err := m.Validate(); err != nil {
		return nil, im.abort("manifest invalid", err, len(kept))
	}

	entry, ok := manifest.ResolveEntryFile(ix, m)
	if !ok {
		return nil, im.abort("no entry file", nil, len(kept))
	}

	b := &Bundle{
		Manifest:   m,
		Index:      ix,
		Entry:      entry,
		ImportedAt: im.now(),
	}
	im.logger.Info("Bundle imported",
		zap.String("app_id", m.ID),
		zap.String("entry", entry.Key()),
		zap.Int("files", ix.Len()))
	return b, nil
}

func (im *Importer) abort(reason string, cause error, n int) error {
	im.logger.Info("Import aborted", zap.String("reason", reason), zap.Int("files", n), zap.Error(cause))
	if cause != nil {
		return fmt.Errorf("%w: %s: %w", ErrImportAborted, reason, cause)
	}
	return fmt.Errorf("%w: %s", ErrImportAborted, reason)
}

func (im *Importer) ignored(rel string) bool {
	rel = files.CleanPath(rel)
	if rel == "" {
		return false
	}
	for _, p := range im.ignore {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		// Let "**/x/**" also match x at the bundle root.
		if trimmed := strings.TrimPrefix(p, "**/"); trimmed != p {
			if ok, _ := doublestar.Match(trimmed, rel); ok {
				return true
			}
		}
	}
	return false
}

// stripRoot removes a top directory shared by every file.
func stripRoot(list []*files.File) []*files.File {
	if len(list) == 0 {
		return list
	}
	root := ""
	for _, f := range list {
		first, rest, ok := strings.Cut(f.RelativePath, "/")
		if !ok || rest == "" {
			return list
		}
		if root == "" {
			root = first
		} else if !strings.EqualFold(root, first) {
			return list
		}
	}

	out := make([]*files.File, len(list))
	for i, f := range list {
		_, rest, _ := strings.Cut(f.RelativePath, "/")
		out[i] = f.WithRelativePath(rest)
	}
	return out
}

func sortFiles(list []*files.File) {
	sort.Slice(list, func(i, j int) bool { return list[i].Key() < list[j].Key() })
}
