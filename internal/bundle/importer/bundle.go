package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/bundle/files"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/bundle/manifest"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/fetch"
)

// Bundle is an imported app: its manifest, its file index and the resolved
// entry file. It is read-only after import.
type Bundle struct {
	Manifest   *manifest.Manifest `json:"manifest"`
	Index      *files.Index       `json:"-"`
	Entry      *files.File        `json:"entry"`
	ImportedAt time.Time          `json:"imported_at"`
}

// ID returns the manifest ID.
func (b *Bundle) ID() string { return b.Manifest.ID }

// Resolve reads the entry, style and script files. Files are re-read on
// every call so edits show up on the next open. An unreadable entry is an
// error; unreadable style or script files become warnings.
func (b *Bundle) Resolve(ctx context.Context) (*fetch.Result, error) {
	markup, err := b.Entry.Text(ctx)
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", b.Entry.Key(), err)
	}

	res := &fetch.Result{}
	res.Markup = markup

	res.Style, err = readAll(ctx, manifest.ResolveCSSFiles(b.Index, b.Manifest), fetch.StyleSeparator, res)
	if err != nil {
		return nil, err
	}
	res.Script, err = readAll(ctx, manifest.ResolveJSFiles(b.Index, b.Manifest), fetch.ScriptSeparator, res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func readAll(ctx context.Context, list []*files.File, sep string, res *fetch.Result) (string, error) {
	texts := make([]string, 0, len(list))
	for _, f := range list {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := f.Text(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			err = fmt.Errorf("%w: %s: %w", fetch.ErrResourceReadFailed, f.Key(), err)
			res.Warnings = append(res.Warnings, fetch.Warning{
				Kind:    fetch.WarnResource,
				Path:    f.Key(),
				Message: err.Error(),
				Err:     err,
			})
			continue
		}
		texts = append(texts, text)
	}
	return strings.Join(texts, sep), nil
}
