package files

import (
	"sort"
	"strings"
)

// Index maps a bundle's files by bare name and by relative path. Both keys
// are lower-cased. An Index is immutable once built and safe for concurrent
// readers.
type Index struct {
	byName map[string]*File
	byRel  map[string]*File
	files  []*File
}

// Build indexes a flat file set. Later files with the same key replace
// earlier ones.
func Build(list []*File) *Index {
	ix := &Index{
		byName: make(map[string]*File, len(list)),
		byRel:  make(map[string]*File, len(list)),
		files:  make([]*File, 0, len(list)),
	}
	for _, f := range list {
		if f == nil {
			continue
		}
		ix.files = append(ix.files, f)
		ix.byName[strings.ToLower(f.Name)] = f
		if f.RelativePath != "" {
			ix.byRel[strings.ToLower(f.RelativePath)] = f
		}
	}
	return ix
}

// Resolve looks p up by relative path first and by its trailing segment
// second, so a path-qualified reference wins over a same-named file in
// another directory.
func (ix *Index) Resolve(p string) (*File, bool) {
	if ix == nil || strings.TrimSpace(p) == "" {
		return nil, false
	}
	norm := strings.ToLower(CleanPath(p))
	if f, ok := ix.byRel[norm]; ok {
		return f, true
	}
	base := norm
	if i := strings.LastIndexAny(norm, `/\`); i >= 0 {
		base = norm[i+1:]
	}
	if base == "" {
		return nil, false
	}
	f, ok := ix.byName[base]
	return f, ok
}

// ByName looks up a bare file name.
func (ix *Index) ByName(name string) (*File, bool) {
	if ix == nil {
		return nil, false
	}
	f, ok := ix.byName[strings.ToLower(name)]
	return f, ok
}

// ByRelativePath looks up an exact relative path.
func (ix *Index) ByRelativePath(rel string) (*File, bool) {
	if ix == nil {
		return nil, false
	}
	f, ok := ix.byRel[strings.ToLower(CleanPath(rel))]
	return f, ok
}

// Files returns the indexed files sorted by key.
func (ix *Index) Files() []*File {
	if ix == nil {
		return nil
	}
	out := append([]*File(nil), ix.files...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Key() < out[j].Key()
	})
	return out
}

// Len returns the number of indexed files.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.files)
}
