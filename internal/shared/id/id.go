// Package id generates prefixed ULIDs for viewers, imports and requests.
//
// IDs sort by creation time and carry a short prefix so logs stay readable:
//
//	win_01J9Z3K4T6N3XQ8V0C7K2M5P8R
//	imp_01J9Z3K4T6N3XQ8V0C7K2M5P8S
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ViewerID identifies a viewer (one host element).
type ViewerID string

// ImportID identifies one bundle import.
type ImportID string

// RequestID identifies an API request.
type RequestID string

const (
	ViewerPrefix  = "win"
	ImportPrefix  = "imp"
	RequestPrefix = "req"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator whose IDs are strictly increasing within
// the same millisecond.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source
// and clock, for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{entropy: entropy, now: now}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewViewerID generates a new viewer ID
func NewViewerID() ViewerID {
	return ViewerID(Default().GenerateWithPrefix(ViewerPrefix))
}

// NewImportID generates a new import ID
func NewImportID() ImportID {
	return ImportID(Default().GenerateWithPrefix(ImportPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id ViewerID) String() string  { return string(id) }
func (id ImportID) String() string  { return string(id) }
func (id RequestID) String() string { return string(id) }

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// Split separates a prefixed ID into prefix and ULID.
func Split(id string) (string, ulid.ULID, error) {
	prefix, raw, ok := strings.Cut(id, "_")
	if !ok {
		return "", ulid.ULID{}, fmt.Errorf("id %q has no prefix", id)
	}
	u, err := ulid.Parse(raw)
	if err != nil {
		return "", ulid.ULID{}, fmt.Errorf("id %q: %w", id, err)
	}
	return prefix, u, nil
}

// HasPrefix reports whether id is a valid ID with the given prefix.
func HasPrefix(id, prefix string) bool {
	p, _, err := Split(id)
	return err == nil && p == prefix
}

// Timestamp extracts the creation time from a prefixed ID or a bare ULID.
func Timestamp(id string) (time.Time, error) {
	raw := id
	if _, rest, ok := strings.Cut(id, "_"); ok {
		raw = rest
	}
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
