package manifest

import "github.com/GriffinCanCode/AgentOS/apphost/internal/bundle/files"

// ResolveEntryFile finds the bundle's root markup file: the entry path, then
// the html reference, then index.html by name.
func ResolveEntryFile(ix *files.Index, m *Manifest) (*files.File, bool) {
	if f, ok := ix.Resolve(m.Entry); ok {
		return f, true
	}
	for _, p := range m.HTML.Paths {
		if f, ok := ix.Resolve(p); ok {
			return f, true
		}
	}
	return ix.ByName(DefaultEntry)
}

// ResolveCSSFiles returns the stylesheets in declaration order.
func ResolveCSSFiles(ix *files.Index, m *Manifest) []*files.File {
	return resolveList(ix, m.CSS, DefaultStyle)
}

// ResolveJSFiles returns the scripts in declaration order.
func ResolveJSFiles(ix *files.Index, m *Manifest) []*files.File {
	return resolveList(ix, m.JS, DefaultScript)
}

// resolveList drops unresolvable list members. Only a single-valued or
// absent reference falls back to the conventional name.
func resolveList(ix *files.Index, l PathList, fallback string) []*files.File {
	out := []*files.File{}
	if l.List {
		for _, p := range l.Paths {
			if f, ok := ix.Resolve(p); ok {
				out = append(out, f)
			}
		}
		return out
	}

	if f, ok := ix.Resolve(l.First()); ok {
		return append(out, f)
	}
	if f, ok := ix.ByName(fallback); ok {
		out = append(out, f)
	}
	return out
}
