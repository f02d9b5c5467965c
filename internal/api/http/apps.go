package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/bundle/files"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/bundle/importer"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/catalog"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/id"
)

// Multipart form fields of an import.
const (
	FieldFiles   = "files"   // one part per bundle file
	FieldPaths   = "paths"   // relative path per file, in the same order
	FieldArchive = "archive" // a single zip or tar archive
)

const multipartMemory = 8 << 20

// ListApps lists built-in then imported apps
func (h *Handlers) ListApps(c *gin.Context) {
	apps := h.catalog.List()

	var builtin, imported int
	for _, app := range apps {
		if app.Kind == catalog.KindBuiltin {
			builtin++
		} else {
			imported++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"apps":  apps,
		"stats": gin.H{"builtin": builtin, "imported": imported},
	})
}

// GetApp returns one app
func (h *Handlers) GetApp(c *gin.Context) {
	appID := c.Param("id")
	if err := validateID(appID, "app_id"); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	app, ok := h.catalog.Get(appID)
	if !ok {
		errorJSON(c, http.StatusNotFound, fmt.Errorf("%w: %s", catalog.ErrNotFound, appID))
		return
	}
	c.JSON(http.StatusOK, app)
}

// ImportApp imports a bundle from a multipart upload. Either one archive
// part or any number of file parts is accepted. Nothing is added when the
// manifest or entry file is missing.
func (h *Handlers) ImportApp(c *gin.Context) {
	importID := id.NewImportID()
	log := h.logger.With(zap.String("import_id", importID.String()))

	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartMemory)
	}
	form, err := c.MultipartForm()
	if err != nil {
		h.importFailed(c, "upload", importID, fmt.Errorf("%w: read upload: %w", importer.ErrImportAborted, err))
		return
	}
	defer form.RemoveAll()

	ctx := c.Request.Context()
	var (
		bundle *importer.Bundle
		source string
	)
	if archives := form.File[FieldArchive]; len(archives) > 0 {
		source = "archive"
		bundle, err = h.importArchive(ctx, archives[0])
	} else {
		source = "upload"
		var list []*files.File
		list, err = readParts(form.File[FieldFiles], form.Value[FieldPaths], h.maxBytes)
		if err == nil {
			bundle, err = h.importer.Import(ctx, list)
		}
	}
	if err != nil {
		h.importFailed(c, source, importID, err)
		return
	}

	app, err := h.catalog.Add(bundle)
	if err != nil {
		h.importFailed(c, source, importID, err)
		return
	}
	if h.recorder != nil {
		h.recorder.RecordImport(source, true)
	}
	h.syncGauges()

	log.Info("App imported", zap.String("app_id", app.ID), zap.String("source", source))
	c.JSON(http.StatusCreated, gin.H{
		"imported":  true,
		"import_id": importID,
		"app":       app,
		"files":     bundle.Index.Len(),
		"entry":     bundle.Entry.Key(),
	})
}

func (h *Handlers) importArchive(ctx context.Context, fh *multipart.FileHeader) (*importer.Bundle, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", importer.ErrImportAborted, err)
	}
	defer f.Close()
	return h.importer.ImportArchive(ctx, fh.Filename, f)
}

func (h *Handlers) importFailed(c *gin.Context, source string, importID id.ImportID, err error) {
	if h.recorder != nil {
		h.recorder.RecordImport(source, false)
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, catalog.ErrDuplicateID):
		status = http.StatusConflict
	case errors.Is(err, importer.ErrTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, importer.ErrImportAborted):
		status = http.StatusUnprocessableEntity
	}
	h.logger.Info("Import rejected",
		zap.String("import_id", importID.String()),
		zap.Int("status", status),
		zap.Error(err))

	c.JSON(status, gin.H{
		"imported":  false,
		"import_id": importID,
		"error":     err.Error(),
	})
}

// readParts turns uploaded parts into bundle files. The relative path comes
// from the parallel paths field, else from the part's file name, which
// browsers fill with the picked directory path.
func readParts(parts []*multipart.FileHeader, paths []string, limit int64) ([]*files.File, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", importer.ErrImportAborted)
	}

	var total int64
	list := make([]*files.File, 0, len(parts))
	for i, fh := range parts {
		rel := fh.Filename
		if i < len(paths) && strings.TrimSpace(paths[i]) != "" {
			rel = paths[i]
		}
		total += fh.Size
		if limit > 0 && total > limit {
			return nil, fmt.Errorf("%w: %w", importer.ErrImportAborted, importer.ErrTooLarge)
		}

		data, err := readPart(fh)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", importer.ErrImportAborted, rel, err)
		}
		list = append(list, files.FromBytes("", rel, data))
	}
	return list, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// DeleteApp removes an imported app
func (h *Handlers) DeleteApp(c *gin.Context) {
	appID := c.Param("id")
	if err := validateID(appID, "app_id"); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	err := h.catalog.Remove(appID)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		errorJSON(c, http.StatusNotFound, err)
		return
	case errors.Is(err, catalog.ErrBuiltin):
		errorJSON(c, http.StatusConflict, err)
		return
	case err != nil:
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	h.syncGauges()

	c.JSON(http.StatusOK, gin.H{"success": true, "app_id": appID})
}

// OpenApp opens an app in a viewer, creating the viewer when needed. The
// viewer is named by the "viewer" query parameter or generated.
func (h *Handlers) OpenApp(c *gin.Context) {
	appID := c.Param("id")
	if err := validateID(appID, "app_id"); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	viewerID := c.Query("viewer")
	if viewerID == "" {
		viewerID = id.NewViewerID().String()
	} else if err := validateID(viewerID, "viewer"); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	req, err := h.catalog.Request(appID)
	if err != nil {
		errorJSON(c, http.StatusNotFound, err)
		return
	}

	h.open(c, viewerID, req)
}

func (h *Handlers) open(c *gin.Context, viewerID string, req loader.Request) {
	v, created := h.viewers.GetOrCreate(viewerID)
	if created {
		h.syncGauges()
	}

	view, err := v.Open(c.Request.Context(), req)
	switch {
	case errors.Is(err, loader.ErrStale):
		c.JSON(http.StatusConflict, gin.H{
			"stale":     true,
			"viewer_id": viewerID,
			"error":     err.Error(),
		})
		return
	case errors.Is(err, loader.ErrNothingToOpen):
		errorJSON(c, http.StatusBadRequest, err)
		return
	case err != nil:
		h.logger.Warn("Open failed", zap.String("viewer_id", viewerID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{
			"viewer_id": viewerID,
			"error":     err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, view)
}

// AppFile serves one raw file of an app with its detected content type
func (h *Handlers) AppFile(c *gin.Context) {
	appID := c.Param("id")
	if err := validateID(appID, "app_id"); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	f, err := h.catalog.File(c.Request.Context(), appID, strings.TrimPrefix(c.Param("path"), "/"))
	if err != nil {
		errorJSON(c, http.StatusNotFound, err)
		return
	}
	rc, err := f.Open()
	if err != nil {
		errorJSON(c, http.StatusNotFound, err)
		return
	}
	defer rc.Close()

	c.Header("X-Content-Type-Options", "nosniff")
	c.DataFromReader(http.StatusOK, f.Size, f.ContentType(), rc, nil)
}
