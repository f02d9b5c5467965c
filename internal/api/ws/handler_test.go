package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/fetch"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingMetrics struct {
	mu    sync.Mutex
	conns int
	out   map[string]int
}

func (m *countingMetrics) IncWSConnections() { m.mu.Lock(); m.conns++; m.mu.Unlock() }
func (m *countingMetrics) DecWSConnections() { m.mu.Lock(); m.conns--; m.mu.Unlock() }
func (m *countingMetrics) RecordWSMessage(direction, msgType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.out == nil {
		m.out = map[string]int{}
	}
	m.out[direction+":"+msgType]++
}

func (m *countingMetrics) connections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conns
}

func setup(t *testing.T) (*loader.Viewers, *countingMetrics, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	viewers := loader.NewViewers(loader.Deps{})
	metrics := &countingMetrics{}
	h := NewHandler(viewers, metrics, nil, nil)

	router := gin.New()
	router.GET("/viewers/:id/stream", h.HandleStream)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return viewers, metrics, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	frame := map[string]any{}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestStreamForwardsEvents(t *testing.T) {
	viewers, metrics, base := setup(t)
	v, _ := viewers.GetOrCreate("win_1")
	_, err := v.Open(context.Background(), loader.Request{Title: "first", Inline: &fetch.Resolved{Markup: "<p>1</p>"}})
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(base+"/viewers/win_1/stream", nil)
	require.NoError(t, err)
	defer conn.Close()

	hello := readFrame(t, conn)
	assert.Equal(t, "system", hello["type"])
	assert.Equal(t, "win_1", hello["viewer_id"])

	current := readFrame(t, conn)
	assert.Equal(t, loader.EventOpened, current["type"])
	assert.Equal(t, float64(1), current["generation"])

	_, err = v.Open(context.Background(), loader.Request{Title: "second", Inline: &fetch.Resolved{Markup: "<p>2</p>"}})
	require.NoError(t, err)
	opened := readFrame(t, conn)
	assert.Equal(t, loader.EventOpened, opened["type"])
	assert.Equal(t, "second", opened["view"].(map[string]any)["title"])

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	assert.Equal(t, "pong", readFrame(t, conn)["type"])

	require.NoError(t, viewers.Remove("win_1"))
	closed := readFrame(t, conn)
	assert.Equal(t, loader.EventClosed, closed["type"])

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	assert.Eventually(t, func() bool { return metrics.connections() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamUnknownViewer(t *testing.T) {
	_, _, base := setup(t)

	_, resp, err := websocket.DefaultDialer.Dial(base+"/viewers/nope/stream", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)
}

func TestStreamClientDisconnect(t *testing.T) {
	viewers, metrics, base := setup(t)
	viewers.GetOrCreate("win_1")

	conn, _, err := websocket.DefaultDialer.Dial(base+"/viewers/win_1/stream", nil)
	require.NoError(t, err)
	readFrame(t, conn)
	assert.Eventually(t, func() bool { return metrics.connections() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return metrics.connections() == 0 }, 2*time.Second, 10*time.Millisecond)
}
