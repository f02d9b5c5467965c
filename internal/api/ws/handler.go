package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Metrics receives connection counts.
type Metrics interface {
	IncWSConnections()
	DecWSConnections()
	RecordWSMessage(direction, msgType string)
}

// Message is a client frame.
type Message struct {
	Type string `json:"type"`
}

// Handler streams viewer events over WebSocket
type Handler struct {
	viewers  *loader.Viewers
	metrics  Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. checkOrigin may be nil to
// accept any origin.
func NewHandler(viewers *loader.Viewers, metrics Metrics, logger *zap.Logger, checkOrigin func(*http.Request) bool) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		viewers:  viewers,
		metrics:  metrics,
		logger:   logger.Named("ws"),
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
	}
}

// HandleStream upgrades the request and forwards the viewer's events until
// either side goes away or the viewer is removed. The current view is sent
// first when one is open.
func (h *Handler) HandleStream(c *gin.Context) {
	viewerID := c.Param("id")
	v, ok := h.viewers.Get(viewerID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": loader.ErrViewerNotFound.Error()})
		return
	}

	events, cancel := v.Subscribe()
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}
	log := h.logger.With(zap.String("viewer_id", viewerID))
	log.Debug("Stream opened")

	if err := h.send(conn, gin.H{"type": "system", "viewer_id": viewerID, "generation": v.Generation()}); err != nil {
		return
	}
	if view := v.Current(); view != nil {
		if err := h.send(conn, loader.Event{Type: loader.EventOpened, ViewerID: viewerID, Generation: view.Generation, View: view}); err != nil {
			return
		}
	}

	pongs := make(chan struct{}, 1)
	done := make(chan struct{})
	go h.readLoop(conn, pongs, done)
	defer func() {
		conn.Close()
		<-done
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				h.close(conn, "viewer removed")
				return
			}
			if err := h.send(conn, ev); err != nil {
				log.Debug("Stream write failed", zap.Error(err))
				return
			}
		case <-pongs:
			if err := h.send(conn, gin.H{"type": "pong"}); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			log.Debug("Stream closed by client")
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

// readLoop answers "ping" frames and reports when the client goes away.
// Writes stay on the HandleStream goroutine.
func (h *Handler) readLoop(conn *websocket.Conn, pongs chan<- struct{}, done chan<- struct{}) {
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", msg.Type)
		}
		if msg.Type == "ping" {
			select {
			case pongs <- struct{}{}:
			default:
			}
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(v); err != nil {
		return err
	}
	if h.metrics != nil {
		msgType := "system"
		switch e := v.(type) {
		case loader.Event:
			msgType = e.Type
		case gin.H:
			if t, ok := e["type"].(string); ok {
				msgType = t
			}
		}
		h.metrics.RecordWSMessage("out", msgType)
	}
	return nil
}

func (h *Handler) close(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
