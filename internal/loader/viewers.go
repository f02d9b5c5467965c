package loader

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Viewers tracks live viewers by ID. All viewers share one set of Deps.
type Viewers struct {
	mu     sync.RWMutex
	deps   Deps
	byID   map[string]*Viewer
	logger *zap.Logger
}

// NewViewers creates an empty viewer set.
func NewViewers(deps Deps) *Viewers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Viewers{
		deps:   deps,
		byID:   make(map[string]*Viewer),
		logger: logger,
	}
}

// Get returns a viewer by ID.
func (s *Viewers) Get(id string) (*Viewer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byID[id]
	return v, ok
}

// GetOrCreate returns the viewer with id, creating it if needed. The second
// result reports whether it was created.
func (s *Viewers) GetOrCreate(id string) (*Viewer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.byID[id]; ok {
		return v, false
	}
	v := NewViewer(id, s.deps)
	s.byID[id] = v
	s.logger.Debug("Viewer created", zap.String("viewer_id", id))
	return v, true
}

// Remove closes a viewer, ends its subscriptions and forgets it.
func (s *Viewers) Remove(id string) error {
	s.mu.Lock()
	v, ok := s.byID[id]
	delete(s.byID, id)
	s.mu.Unlock()

	if !ok {
		return ErrViewerNotFound
	}
	v.Close()
	v.hub.closeAll()
	return nil
}

// IDs returns the IDs of all live viewers, sorted.
func (s *Viewers) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live viewers.
func (s *Viewers) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// CloseAll removes every viewer.
func (s *Viewers) CloseAll() {
	for _, id := range s.IDs() {
		_ = s.Remove(id)
	}
}
