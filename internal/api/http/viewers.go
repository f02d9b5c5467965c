package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/fetch"
)

// ListViewers lists open viewers
func (h *Handlers) ListViewers(c *gin.Context) {
	ids := h.viewers.IDs()
	out := make([]gin.H, 0, len(ids))
	for _, vid := range ids {
		v, ok := h.viewers.Get(vid)
		if !ok {
			continue
		}
		entry := gin.H{"viewer_id": vid, "generation": v.Generation()}
		if view := v.Current(); view != nil {
			entry["title"] = view.Title
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"viewers": out})
}

// GetViewer returns a viewer's current view
func (h *Handlers) GetViewer(c *gin.Context) {
	v, ok := h.viewer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"viewer_id":  v.ID(),
		"generation": v.Generation(),
		"view":       v.Current(),
	})
}

// ViewerDocument serves the viewer's whole host document as HTML
func (h *Handlers) ViewerDocument(c *gin.Context) {
	v, ok := h.viewer(c)
	if !ok {
		return
	}
	doc, err := v.Document()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc))
}

// OpenViewer opens an entry path or inline text in a viewer
func (h *Handlers) OpenViewer(c *gin.Context) {
	viewerID := c.Param("id")
	if err := validateID(viewerID, "viewer_id"); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	var body openBody
	if err := c.ShouldBindJSON(&body); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	if err := body.Validate(); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	req := loader.Request{Title: body.Title, EntryPath: body.EntryPath}
	if body.inline() {
		req.Inline = &fetch.Resolved{Markup: body.Markup, Style: body.Style, Script: body.Script}
	}
	h.open(c, viewerID, req)
}

// CloseViewer closes a viewer and ends its event streams
func (h *Handlers) CloseViewer(c *gin.Context) {
	viewerID := c.Param("id")
	if err := validateID(viewerID, "viewer_id"); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	if err := h.viewers.Remove(viewerID); err != nil {
		if errors.Is(err, loader.ErrViewerNotFound) {
			errorJSON(c, http.StatusNotFound, fmt.Errorf("%w: %s", err, viewerID))
			return
		}
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	h.syncGauges()

	c.JSON(http.StatusOK, gin.H{"success": true, "viewer_id": viewerID})
}

func (h *Handlers) viewer(c *gin.Context) (*loader.Viewer, bool) {
	viewerID := c.Param("id")
	if err := validateID(viewerID, "viewer_id"); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return nil, false
	}
	v, ok := h.viewers.Get(viewerID)
	if !ok {
		errorJSON(c, http.StatusNotFound, fmt.Errorf("%w: %s", loader.ErrViewerNotFound, viewerID))
		return nil, false
	}
	return v, true
}
