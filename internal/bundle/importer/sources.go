package importer

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/bundle/files"
)

// Archive formats accepted by ImportArchive.
const (
	FormatZip    = "zip"
	FormatTarGz  = "tar.gz"
	FormatTarZst = "tar.zst"
	FormatTar    = "tar"
)

// ImportDir imports every regular file below dir.
func (im *Importer) ImportDir(ctx context.Context, dir string) (*Bundle, error) {
	list, err := im.walk(ctx, dir)
	if err != nil {
		return nil, err
	}
	return im.Import(ctx, list)
}

// walk collects the files below dir with paths relative to dir.
func (im *Importer) walk(ctx context.Context, dir string) ([]*files.File, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImportAborted, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImportAborted, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrImportAborted, dir)
	}

	var (
		mu   sync.Mutex
		list []*files.File
	)
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, root, func(path string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil
		}

		rel, rerr := filepath.Rel(root, path)
		if rerr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if im.ignored(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || im.ignored(rel) {
			return nil
		}

		f, ferr := files.FromDisk(path, rel)
		if ferr != nil {
			im.logger.Debug("Skipping unreadable file", zap.String("path", rel), zap.Error(ferr))
			return nil
		}
		mu.Lock()
		list = append(list, f)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	sortFiles(list)
	return list, nil
}

// ImportArchive imports a zip, tar, tar.gz or tar.zst archive. The format is
// taken from name and falls back to sniffing the content.
func (im *Importer) ImportArchive(ctx context.Context, name string, r io.Reader) (*Bundle, error) {
	data, err := im.readLimited(r)
	if err != nil {
		return nil, err
	}

	format := ArchiveFormat(name, data)
	var list []*files.File
	switch format {
	case FormatZip:
		list, err = im.unzip(ctx, data)
	case FormatTarGz:
		var zr *gzip.Reader
		if zr, err = gzip.NewReader(bytes.NewReader(data)); err == nil {
			defer zr.Close()
			list, err = im.untar(ctx, zr)
		}
	case FormatTarZst:
		var zr *zstd.Decoder
		if zr, err = zstd.NewReader(bytes.NewReader(data)); err == nil {
			defer zr.Close()
			list, err = im.untar(ctx, zr)
		}
	case FormatTar:
		list, err = im.untar(ctx, bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: unsupported archive %q", ErrImportAborted, name)
	}
	if err != nil {
		if errors.Is(err, ErrImportAborted) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: read %s archive: %w", ErrImportAborted, format, err)
	}

	im.logger.Debug("Archive unpacked", zap.String("name", name), zap.String("format", format), zap.Int("files", len(list)))
	sortFiles(list)
	return im.Import(ctx, list)
}

// ArchiveFormat names the archive format of an upload.
func ArchiveFormat(name string, data []byte) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return FormatTarZst
	case strings.HasSuffix(lower, ".tar"):
		return FormatTar
	}

	switch m := mimetype.Detect(data); {
	case m.Is("application/zip"):
		return FormatZip
	case m.Is("application/gzip"):
		return FormatTarGz
	case m.Is("application/zstd"):
		return FormatTarZst
	case m.Is("application/x-tar"):
		return FormatTar
	}
	return ""
}

func (im *Importer) readLimited(r io.Reader) ([]byte, error) {
	if im.maxBytes <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrImportAborted, err)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, im.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImportAborted, err)
	}
	if int64(len(data)) > im.maxBytes {
		return nil, fmt.Errorf("%w: %w", ErrImportAborted, ErrTooLarge)
	}
	return data, nil
}

// budget tracks decompressed bytes against the import limit.
type budget struct {
	left  int64
	limit bool
}

func (im *Importer) budget() *budget {
	return &budget{left: im.maxBytes, limit: im.maxBytes > 0}
}

func (b *budget) read(r io.Reader) ([]byte, error) {
	if !b.limit {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, b.left+1))
	if err != nil {
		return nil, err
	}
	b.left -= int64(len(data))
	if b.left < 0 {
		return nil, fmt.Errorf("%w: %w", ErrImportAborted, ErrTooLarge)
	}
	return data, nil
}

func (im *Importer) unzip(ctx context.Context, data []byte) ([]*files.File, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	left := im.budget()
	var list []*files.File
	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel, ok := memberPath(zf.Name)
		if !ok || !zf.Mode().IsRegular() || im.ignored(rel) {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, err
		}
		content, err := left.read(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		list = append(list, files.FromBytes("", rel, content))
	}
	return list, nil
}

func (im *Importer) untar(ctx context.Context, r io.Reader) ([]*files.File, error) {
	tr := tar.NewReader(r)
	left := im.budget()
	var list []*files.File
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rel, ok := memberPath(hdr.Name)
		if !ok || hdr.Typeflag != tar.TypeReg || im.ignored(rel) {
			continue
		}
		content, err := left.read(tr)
		if err != nil {
			return nil, err
		}
		list = append(list, files.FromBytes("", rel, content))
	}
	return list, nil
}

// memberPath cleans an archive member name and rejects names that climb out
// of the archive root.
func memberPath(name string) (string, bool) {
	rel := files.CleanPath(name)
	if rel == "" || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}
