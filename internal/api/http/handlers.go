package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/bundle/importer"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/catalog"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader"
)

// Recorder receives handler-level measurements.
type Recorder interface {
	RecordImport(source string, ok bool)
	SetViewersActive(count int)
	SetCatalogApps(count int)
}

// StatsProvider reports component state for the health endpoint.
type StatsProvider interface {
	Stats() map[string]interface{}
}

// Handlers contains all HTTP handlers
type Handlers struct {
	catalog  *catalog.Catalog
	importer *importer.Importer
	viewers  *loader.Viewers
	sandbox  StatsProvider
	recorder Recorder
	logger   *zap.Logger
	maxBytes int64
}

// Options wires a handler set.
type Options struct {
	Catalog  *catalog.Catalog
	Importer *importer.Importer
	Viewers  *loader.Viewers
	Sandbox  StatsProvider
	Recorder Recorder
	Logger   *zap.Logger
	MaxBytes int64 // upload body limit, 0 for none
}

// NewHandlers creates a new handler set
func NewHandlers(opts Options) *Handlers {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	h := &Handlers{
		catalog:  opts.Catalog,
		importer: opts.Importer,
		viewers:  opts.Viewers,
		sandbox:  opts.Sandbox,
		recorder: opts.Recorder,
		logger:   opts.Logger.Named("http"),
		maxBytes: opts.MaxBytes,
	}
	h.syncGauges()
	return h
}

// Register mounts every route on r.
func (h *Handlers) Register(r gin.IRoutes) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	r.GET("/apps", h.ListApps)
	r.POST("/apps/import", h.ImportApp)
	r.GET("/apps/:id", h.GetApp)
	r.DELETE("/apps/:id", h.DeleteApp)
	r.POST("/apps/:id/open", h.OpenApp)
	r.GET("/apps/:id/files/*path", h.AppFile)

	r.GET("/viewers", h.ListViewers)
	r.GET("/viewers/:id", h.GetViewer)
	r.GET("/viewers/:id/document", h.ViewerDocument)
	r.POST("/viewers/:id/open", h.OpenViewer)
	r.DELETE("/viewers/:id", h.CloseViewer)
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "AgentOS App Host (Go)",
		"version": "0.3.0",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"catalog": gin.H{"apps": h.catalog.Len()},
		"viewers": gin.H{"open": h.viewers.Len()},
	}
	if h.sandbox != nil {
		body["sandbox"] = h.sandbox.Stats()
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handlers) syncGauges() {
	if h.recorder == nil {
		return
	}
	if h.catalog != nil {
		h.recorder.SetCatalogApps(h.catalog.Len())
	}
	if h.viewers != nil {
		h.recorder.SetViewersActive(h.viewers.Len())
	}
}

func errorJSON(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}
