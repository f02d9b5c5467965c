package fetch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/bundle/files"
)

// OSFS reads bundle files from a directory on the local filesystem. Paths
// are slash separated and confined to the root.
type OSFS struct {
	root string
}

// NewOSFS creates a reader rooted at dir.
func NewOSFS(dir string) *OSFS {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = filepath.Clean(dir)
	}
	return &OSFS{root: abs}
}

// Root returns the absolute root directory.
func (o *OSFS) Root() string { return o.root }

// ReadText reads a file and decodes it to UTF-8.
func (o *OSFS) ReadText(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(o.Resolve(p))
	if err != nil {
		return "", err
	}
	return files.DecodeText(data), nil
}

// Join joins segments with forward slashes.
func (o *OSFS) Join(_ context.Context, segments ...string) (string, error) {
	return joinSlash(segments...), nil
}

// Exists reports whether p names a regular file.
func (o *OSFS) Exists(_ context.Context, p string) bool {
	info, err := os.Stat(o.Resolve(p))
	return err == nil && info.Mode().IsRegular()
}

// Resolve maps a bundle path to a path on disk below the root.
func (o *OSFS) Resolve(p string) string {
	clean := path.Clean("/" + strings.ReplaceAll(p, `\`, "/"))
	return filepath.Join(o.root, filepath.FromSlash(clean))
}

// IndexFS reads files out of an imported bundle's index.
type IndexFS struct {
	ix *files.Index
}

// NewIndexFS wraps an index.
func NewIndexFS(ix *files.Index) *IndexFS {
	return &IndexFS{ix: ix}
}

// ReadText resolves p in the index and reads it.
func (x *IndexFS) ReadText(ctx context.Context, p string) (string, error) {
	f, ok := x.ix.Resolve(p)
	if !ok {
		return "", fmt.Errorf("open %s: %w", p, fs.ErrNotExist)
	}
	return f.Text(ctx)
}

// Join joins segments with forward slashes.
func (x *IndexFS) Join(_ context.Context, segments ...string) (string, error) {
	return joinSlash(segments...), nil
}

// Exists reports whether p resolves in the index.
func (x *IndexFS) Exists(_ context.Context, p string) bool {
	_, ok := x.ix.Resolve(p)
	return ok
}

func joinSlash(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s = strings.ReplaceAll(s, `\`, "/"); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return path.Join(parts...)
}
