// Package loader drives the bundle pipeline for one viewer: resolve a
// bundle's markup, style and script (fetch), mount markup and style into an
// isolation boundary on the viewer's host element (render), then run the
// script against the boundary's wrapper (sandbox).
//
// Opens on a viewer may overlap. Each takes a generation token and only the
// latest renders; older ones return ErrStale once their fetch completes.
package loader
