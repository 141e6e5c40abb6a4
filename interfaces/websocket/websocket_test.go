package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"treeview-ai/application/ports"
	"treeview-ai/application/reconcile"
	"treeview-ai/domain/core/entities"
	"treeview-ai/domain/core/valueobjects"
	pkgerrors "treeview-ai/pkg/errors"
)

type fakeController struct {
	mu        sync.Mutex
	sessionID string
	moves     map[valueobjects.NodeID]valueobjects.Position
	viewport  [2]float64
}

func newFakeController(sessionID string) *fakeController {
	return &fakeController{sessionID: sessionID, moves: map[valueobjects.NodeID]valueobjects.Position{}}
}

func (f *fakeController) Frame(ctx context.Context) (ports.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ports.Frame{
		SessionID: f.sessionID,
		Version:   3,
		Graph:     entities.Snapshot{Nodes: []entities.Node{{ID: "1", Label: "5"}}, Edges: []entities.Edge{}},
	}, nil
}

func (f *fakeController) Status(ctx context.Context) (reconcile.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return reconcile.Status{SessionID: f.sessionID}, nil
}

func (f *fakeController) MoveNode(ctx context.Context, id valueobjects.NodeID, pos valueobjects.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != "1" {
		return pkgerrors.NewNotFound("node " + string(id) + " not found")
	}
	f.moves[id] = pos
	return nil
}

func (f *fakeController) SetViewport(ctx context.Context, width, height float64) error {
	if width <= 0 || height <= 0 {
		return pkgerrors.NewValidation("viewport must have a positive size")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewport = [2]float64{width, height}
	return nil
}

func (f *fakeController) moved(id valueobjects.NodeID) (valueobjects.Position, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.moves[id]
	return p, ok
}

type testServer struct {
	hub  *Hub
	ctrl *fakeController
	url  string
}

func newTestServer(t *testing.T, config *ServerConfig) *testServer {
	t.Helper()
	hub := NewHub(zap.NewNop())
	go hub.Run()
	t.Cleanup(hub.Stop)

	ctrl := newFakeController("s1")
	srv := httptest.NewServer(http.HandlerFunc(NewServer(hub, ctrl, config, zap.NewNop()).HandleWebSocket))
	t.Cleanup(srv.Close)

	return &testServer{hub: hub, ctrl: ctrl, url: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

func (ts *testServer) dial(t *testing.T, session string) *websocket.Conn {
	t.Helper()
	u := ts.url
	if session != "" {
		u += "?session=" + session
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) BroadcastMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg BroadcastMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func readUntil(t *testing.T, conn *websocket.Conn, messageType string) BroadcastMessage {
	t.Helper()
	for {
		msg := readMessage(t, conn)
		if msg.Type == messageType {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, messageType string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(InboundMessage{Type: messageType, Data: raw}))
}

func TestServer_ConnectSendsCurrentFrame(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := ts.dial(t, "s1")

	established := readMessage(t, conn)
	assert.Equal(t, TypeConnectionEstablished, established.Type)

	msg := readMessage(t, conn)
	require.Equal(t, TypeFrame, msg.Type)
	var frame ports.Frame
	require.NoError(t, json.Unmarshal(msg.Data, &frame))
	assert.Equal(t, "s1", frame.SessionID)
	assert.Equal(t, 3, frame.Version)
	assert.Len(t, frame.Graph.Nodes, 1)
}

func TestServer_MoveNode(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := ts.dial(t, "s1")
	readUntil(t, conn, TypeFrame)

	send(t, conn, TypeMoveNode, map[string]any{"id": "1", "position": map[string]float64{"x": 40, "y": -20}})

	require.Eventually(t, func() bool {
		_, ok := ts.ctrl.moved("1")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	pos, _ := ts.ctrl.moved("1")
	assert.Equal(t, valueobjects.Position{X: 40, Y: -20}, pos)
}

func TestServer_InboundErrors(t *testing.T) {
	tests := []struct {
		name     string
		session  string
		msgType  string
		data     any
		wantType pkgerrors.ErrorType
	}{
		{
			name:     "unknown node",
			session:  "s1",
			msgType:  TypeMoveNode,
			data:     map[string]any{"id": "9", "position": map[string]float64{"x": 1, "y": 1}},
			wantType: pkgerrors.ErrorTypeNotFound,
		},
		{
			name:     "missing id",
			session:  "s1",
			msgType:  TypeMoveNode,
			data:     map[string]any{"position": map[string]float64{"x": 1, "y": 1}},
			wantType: pkgerrors.ErrorTypeValidation,
		},
		{
			name:     "stale session",
			session:  "old",
			msgType:  TypeMoveNode,
			data:     map[string]any{"id": "1", "position": map[string]float64{"x": 1, "y": 1}},
			wantType: pkgerrors.ErrorTypeConflict,
		},
		{
			name:     "bad viewport",
			session:  "",
			msgType:  TypeViewport,
			data:     map[string]float64{"width": 0, "height": 600},
			wantType: pkgerrors.ErrorTypeValidation,
		},
		{
			name:     "malformed payload",
			session:  "s1",
			msgType:  TypeViewport,
			data:     "wide",
			wantType: pkgerrors.ErrorTypeMalformed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			conn := ts.dial(t, tt.session)
			readMessage(t, conn)

			send(t, conn, tt.msgType, tt.data)

			msg := readUntil(t, conn, TypeError)
			var body map[string]string
			require.NoError(t, json.Unmarshal(msg.Data, &body))
			assert.Equal(t, tt.msgType, body["request"])
			assert.Equal(t, string(tt.wantType), body["type"])
		})
	}
}

func TestServer_Viewport(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := ts.dial(t, "")
	readUntil(t, conn, TypeFrame)

	send(t, conn, TypeViewport, map[string]float64{"width": 1200, "height": 800})

	require.Eventually(t, func() bool {
		ts.ctrl.mu.Lock()
		defer ts.ctrl.mu.Unlock()
		return ts.ctrl.viewport == [2]float64{1200, 800}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_RejectsForeignOrigin(t *testing.T) {
	config := DefaultServerConfig()
	config.AllowedOrigins = []string{"http://localhost:3000"}
	ts := newTestServer(t, config)

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(ts.url, header)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://localhost:3000")
	conn, _, err := websocket.DefaultDialer.Dial(ts.url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestServer_ConnectionLimit(t *testing.T) {
	config := DefaultServerConfig()
	config.MaxConnections = 1
	ts := newTestServer(t, config)
	ts.dial(t, "s1")
	require.Eventually(t, func() bool { return ts.hub.ConnectionCount("s1") == 1 }, 2*time.Second, 10*time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial(ts.url+"?session=s1", nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestHub_RoutesBySession(t *testing.T) {
	ts := newTestServer(t, nil)
	mine := ts.dial(t, "s1")
	other := ts.dial(t, "s2")
	follower := ts.dial(t, "")
	require.Eventually(t, func() bool {
		return ts.hub.ConnectionCount("s1") == 1 && ts.hub.ConnectionCount("s2") == 1 && ts.hub.ConnectionCount("") == 1
	}, 2*time.Second, 10*time.Millisecond)
	readUntil(t, mine, TypeFrame)
	readUntil(t, follower, TypeFrame)
	readMessage(t, other)

	ts.hub.Notify("s1", ports.Notification{Level: ports.LevelSuccess, Message: "Inserted 5"})
	ts.hub.FitView("s2")

	got := readUntil(t, mine, TypeNotification)
	var n ports.Notification
	require.NoError(t, json.Unmarshal(got.Data, &n))
	assert.Equal(t, "Inserted 5", n.Message)
	assert.Equal(t, "s1", got.SessionID)

	assert.Equal(t, TypeFitView, readMessage(t, other).Type)

	assert.Equal(t, TypeNotification, readMessage(t, follower).Type)
	assert.Equal(t, TypeFitView, readMessage(t, follower).Type)
}

func TestHub_StopClosesConnections(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := ts.dial(t, "s1")
	require.Eventually(t, func() bool { return ts.hub.ConnectionCount("s1") == 1 }, 2*time.Second, 10*time.Millisecond)

	ts.hub.Stop()

	require.Eventually(t, func() bool { return ts.hub.ConnectionCount("s1") == 0 }, 2*time.Second, 10*time.Millisecond)
	active, _, _ := ts.hub.Metrics()
	assert.Zero(t, active)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
