package manifest

import (
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Defaults applied to imported manifests that omit descriptive fields.
const (
	DefaultName    = "App"
	DefaultVersion = "0.0.0"
)

// Conventional file names used when a manifest does not name its resources.
const (
	DefaultEntry  = "index.html"
	DefaultStyle  = "index.css"
	DefaultScript = "index.js"
)

// Manifest describes one bundle.
type Manifest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Author      string   `json:"author,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Entry       string   `json:"entry,omitempty"`
	HTML        PathList `json:"html,omitzero"`
	CSS         PathList `json:"css,omitzero"`
	JS          PathList `json:"js,omitzero"`
}

// PathList is a manifest reference that may be written as a single path or
// as an ordered list of paths.
type PathList struct {
	Paths []string
	List  bool
}

// Single returns a single-valued reference. An empty path yields the zero value.
func Single(p string) PathList {
	if p == "" {
		return PathList{}
	}
	return PathList{Paths: []string{p}}
}

// List returns a list-valued reference.
func List(paths ...string) PathList {
	return PathList{Paths: append([]string{}, paths...), List: true}
}

// IsZero reports whether nothing was declared.
func (l PathList) IsZero() bool {
	return !l.List && len(l.Paths) == 0
}

// First returns the first declared path.
func (l PathList) First() string {
	if len(l.Paths) == 0 {
		return ""
	}
	return l.Paths[0]
}

// MarshalJSON writes a single path as a string and a list as an array.
func (l PathList) MarshalJSON() ([]byte, error) {
	if l.List {
		if l.Paths == nil {
			return []byte("[]"), nil
		}
		return sonic.Marshal(l.Paths)
	}
	return sonic.Marshal(l.First())
}

// ApplyDefaults fills descriptive fields left empty by the author.
func (m *Manifest) ApplyDefaults() {
	if strings.TrimSpace(m.Name) == "" {
		m.Name = DefaultName
	}
	if strings.TrimSpace(m.Version) == "" {
		m.Version = DefaultVersion
	}
}

// IDPattern is the shape of an app ID. IDs appear in URL paths, so they
// start with a letter or digit and hold no separators or whitespace.
var IDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// IDRules validate an app ID wherever one is accepted.
func IDRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(1, 128),
		validation.Match(IDPattern),
	}
}

// Validate checks the manifest identity.
func (m *Manifest) Validate() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.ID, IDRules()...),
		validation.Field(&m.Tags, validation.Each(validation.Length(1, 64))),
	)
}
