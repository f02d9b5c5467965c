package fetch

import (
	"context"
	"errors"
)

var (
	// ErrResourceReadFailed marks a linked stylesheet or script that could not
	// be read. The resource is skipped and loading continues.
	ErrResourceReadFailed = errors.New("resource read failed")

	// ErrNoEntry is returned when Entry is called without a path.
	ErrNoEntry = errors.New("entry path is empty")
)

// Resolved is the normalised form of a bundle: markup without style or
// script elements, concatenated stylesheet text, and concatenated script
// text. Any field may be empty.
type Resolved struct {
	Markup string `json:"markup"`
	Style  string `json:"style"`
	Script string `json:"script"`
}

// Empty reports whether nothing was resolved.
func (r Resolved) Empty() bool {
	return r.Markup == "" && r.Style == "" && r.Script == ""
}

// Reader reads a text resource by bundle path.
type Reader interface {
	ReadText(ctx context.Context, path string) (string, error)
}

// Joiner joins path segments the way the Reader expects them.
type Joiner interface {
	Join(ctx context.Context, segments ...string) (string, error)
}

// FS is the full capability set a Fetcher needs.
type FS interface {
	Reader
	Joiner
}

// Warning kinds.
const (
	WarnResource = "resource"
	WarnMarkup   = "markup"
)

// Warning records a non-fatal problem met while resolving a bundle.
type Warning struct {
	Kind    string `json:"kind"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (w Warning) Error() string {
	if w.Path == "" {
		return w.Message
	}
	return w.Path + ": " + w.Message
}

func (w Warning) Unwrap() error { return w.Err }

// Result is a Resolved bundle plus the warnings collected on the way.
type Result struct {
	Resolved
	Warnings []Warning `json:"warnings,omitempty"`
}

func (r *Result) warn(kind, path string, err error) {
	r.Warnings = append(r.Warnings, Warning{
		Kind:    kind,
		Path:    path,
		Message: err.Error(),
		Err:     err,
	})
}

// Inline passes already-resolved text through unchanged.
func Inline(markup, style, script string) *Result {
	return &Result{Resolved: Resolved{Markup: markup, Style: style, Script: script}}
}
