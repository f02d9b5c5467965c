package manifest

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/bundle/files"
)

// ConfigNames are the manifest file names recognised in a bundle, in lookup
// order.
var ConfigNames = []string{
	"app.config.json",
	"app.config.yaml",
	"app.config.yml",
	"app.config.toml",
}

// ErrUnsupportedFormat is returned for manifest files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported manifest format")

// FindConfig returns the bundle's manifest file, checking the bare names
// first and the bundle-root relative paths second.
func FindConfig(ix *files.Index) (*files.File, bool) {
	for _, name := range ConfigNames {
		if f, ok := ix.ByName(name); ok {
			return f, true
		}
		if f, ok := ix.ByRelativePath(name); ok {
			return f, true
		}
	}
	return nil, false
}

// Decode parses a manifest document. The format is chosen by the extension
// of name.
func Decode(name string, data []byte) (*Manifest, error) {
	raw := map[string]any{}

	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		if err := sonic.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode json manifest: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode yaml manifest: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode toml manifest: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	return fromMap(raw), nil
}

func fromMap(raw map[string]any) *Manifest {
	return &Manifest{
		ID:          str(raw["id"]),
		Name:        str(raw["name"]),
		Version:     str(raw["version"]),
		Description: str(raw["description"]),
		Author:      str(raw["author"]),
		Tags:        strs(raw["tags"]),
		Icon:        str(raw["icon"]),
		Entry:       str(raw["entry"]),
		HTML:        paths(raw["html"]),
		CSS:         paths(raw["css"]),
		JS:          paths(raw["js"]),
	}
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case uint64:
		return strconv.FormatUint(t, 10)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}

func strs(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := str(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return []string{str(t)}
	}
}

func paths(v any) PathList {
	switch t := v.(type) {
	case nil:
		return PathList{}
	case []any:
		return List(strs(t)...)
	default:
		return Single(str(t))
	}
}
