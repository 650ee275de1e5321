package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// recordingSink captures transport callbacks for assertions.
type recordingSink struct {
	mu          sync.Mutex
	messages    []string
	disconnects []string
}

func (r *recordingSink) HandleMessage(connID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, connID+":"+string(data))
}

func (r *recordingSink) HandleDisconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnects = append(r.disconnects, connID)
}

func (r *recordingSink) waitFor(t *testing.T, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		ok := check()
		r.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newTestTransport(t *testing.T) (*ConnectionManager, *recordingSink, *httptest.Server) {
	t.Helper()
	sink := &recordingSink{}
	cm := NewConnectionManager(DefaultConnectionConfig())
	cm.SetSink(sink)
	mux := http.NewServeMux()
	NewWebSocketHandler(cm).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return cm, sink, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestInboundMessagesReachSink(t *testing.T) {
	_, sink, srv := newTestTransport(t)
	conn := dial(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"presenter:register","payload":{}}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	sink.waitFor(t, func() bool { return len(sink.messages) == 1 })
	if !strings.HasSuffix(sink.messages[0], `:{"type":"presenter:register","payload":{}}`) {
		t.Fatalf("unexpected delivery: %q", sink.messages[0])
	}
}

func TestBroadcastReachesAllConnections(t *testing.T) {
	cm, sink, srv := newTestTransport(t)
	c1 := dial(t, srv)
	c2 := dial(t, srv)

	// Wait until both registered before broadcasting.
	sink.waitFor(t, func() bool { return cm.ConnectionCount() == 2 })

	evt, err := NewEvent(EventRosterUpdate, []string{"Al"})
	if err != nil {
		t.Fatalf("build event: %v", err)
	}
	cm.Broadcast(evt)

	for _, conn := range []*websocket.Conn{c1, c2} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if !strings.Contains(string(data), `"roster:update"`) {
			t.Fatalf("unexpected frame: %s", data)
		}
	}
}

func TestDisconnectReportedToSink(t *testing.T) {
	_, sink, srv := newTestTransport(t)
	conn := dial(t, srv)
	conn.Close()

	sink.waitFor(t, func() bool { return len(sink.disconnects) == 1 })
}

func TestCloseConnectionForcesDisconnect(t *testing.T) {
	cm, sink, srv := newTestTransport(t)
	conn := dial(t, srv)

	sink.waitFor(t, func() bool { return cm.ConnectionCount() == 1 })

	// The kick path: the target's read pump exits and the drop is
	// reported like any organic disconnect.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"presenter:register","payload":{}}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	sink.waitFor(t, func() bool { return len(sink.messages) == 1 })
	connID := strings.SplitN(sink.messages[0], ":", 2)[0]

	cm.CloseConnection(connID)
	sink.waitFor(t, func() bool { return len(sink.disconnects) == 1 })
	if cm.ConnectionCount() != 0 {
		t.Fatalf("connection still registered after forced close")
	}
}
