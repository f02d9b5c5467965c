package files

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

// File is one member of an imported bundle. Content is opened lazily so a
// bundle re-reads its sources every time it is opened.
type File struct {
	Name         string `json:"name"`
	RelativePath string `json:"relative_path,omitempty"`
	Size         int64  `json:"size"`

	open func() (io.ReadCloser, error)

	mimeOnce sync.Once
	mime     string
}

// FromBytes creates an in-memory file. relPath may be empty for flat bundles.
func FromBytes(name, relPath string, data []byte) *File {
	buf := append([]byte(nil), data...)
	return &File{
		Name:         baseName(name, relPath),
		RelativePath: CleanPath(relPath),
		Size:         int64(len(buf)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(buf)), nil
		},
	}
}

// FromDisk creates a file backed by a path on the local filesystem.
func FromDisk(fullPath, relPath string) (*File, error) {
	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", fullPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", fullPath)
	}
	return &File{
		Name:         info.Name(),
		RelativePath: CleanPath(relPath),
		Size:         info.Size(),
		open: func() (io.ReadCloser, error) {
			return os.Open(fullPath)
		},
	}, nil
}

// WithRelativePath returns a copy of f under a different relative path. The
// copy shares f's content.
func (f *File) WithRelativePath(rel string) *File {
	return &File{
		Name:         f.Name,
		RelativePath: CleanPath(rel),
		Size:         f.Size,
		open:         f.open,
	}
}

// Open returns a reader over the file content.
func (f *File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("file %s has no content", f.Name)
	}
	return f.open()
}

// Bytes reads the whole file.
func (f *File) Bytes(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Key(), err)
	}
	return data, nil
}

// Text reads the file and decodes it to UTF-8.
func (f *File) Text(ctx context.Context) (string, error) {
	data, err := f.Bytes(ctx)
	if err != nil {
		return "", err
	}
	return DecodeText(data), nil
}

// ContentType returns the MIME type registered for the file extension, or
// sniffs it from the first bytes of the file.
func (f *File) ContentType() string {
	f.mimeOnce.Do(func() {
		if byExt := mime.TypeByExtension(path.Ext(f.Name)); byExt != "" {
			f.mime = byExt
			return
		}
		f.mime = "application/octet-stream"
		rc, err := f.Open()
		if err != nil {
			return
		}
		defer rc.Close()
		if m, err := mimetype.DetectReader(rc); err == nil {
			f.mime = m.String()
		}
	})
	return f.mime
}

// Key is the relative path when known, else the bare name.
func (f *File) Key() string {
	if f.RelativePath != "" {
		return f.RelativePath
	}
	return f.Name
}

// CleanPath converts a bundle path to forward slashes without a leading "./"
// or "/".
func CleanPath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimLeft(p, "/")
	if p == "." {
		return ""
	}
	return p
}

func baseName(name, relPath string) string {
	if name != "" {
		return name
	}
	return path.Base(CleanPath(relPath))
}
