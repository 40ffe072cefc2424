package feed

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
	"github.com/signalsfoundry/engagement-simulator/core"
	"github.com/signalsfoundry/engagement-simulator/internal/sim/session"
	"github.com/signalsfoundry/engagement-simulator/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommander struct {
	mu      sync.Mutex
	calls   []string
	updates []session.Update
	err     error
}

func (f *fakeCommander) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeCommander) Engage(context.Context) error { return f.record(TypeEngage) }
func (f *fakeCommander) Abort(context.Context) error  { return f.record(TypeAbort) }
func (f *fakeCommander) Reset(context.Context) error  { return f.record(TypeReset) }

func (f *fakeCommander) Apply(_ context.Context, u session.Update) error {
	f.mu.Lock()
	f.updates = append(f.updates, u)
	f.mu.Unlock()
	return f.record(TypeConfigure)
}

func (f *fakeCommander) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type gauge struct {
	mu sync.Mutex
	n  int
}

func (g *gauge) SetFeedSubscribers(n int) {
	g.mu.Lock()
	g.n = n
	g.mu.Unlock()
}

func (g *gauge) get() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	})
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", h.Clients(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPublishReachesClients(t *testing.T) {
	g := &gauge{}
	hub := NewHub(WithSubscriberGauge(g))
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { _ = hub.Close() })

	first := dial(t, srv)
	second := dial(t, srv)
	waitClients(t, hub, 2)
	require.Eventually(t, func() bool { return g.get() == 2 }, 5*time.Second, time.Millisecond)

	require.NoError(t, hub.Publish(core.Snapshot{Tick: 7, Phase: core.PhaseRunning}))

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		assert.Equal(t, TypeSnapshot, msg.Type)
		var snap core.Snapshot
		require.NoError(t, json.Unmarshal(msg.Payload, &snap))
		assert.Equal(t, uint64(7), snap.Tick)
		assert.Equal(t, core.PhaseRunning, snap.Phase)
	}
}

func TestLateClientReceivesLatestSnapshot(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { _ = hub.Close() })

	require.NoError(t, hub.Publish(core.Snapshot{Tick: 3}))
	require.NoError(t, hub.Publish(core.Snapshot{Tick: 4}))

	conn := dial(t, srv)
	msg := readMessage(t, conn)
	var snap core.Snapshot
	require.NoError(t, json.Unmarshal(msg.Payload, &snap))
	assert.Equal(t, uint64(4), snap.Tick)
}

func TestCommandsAreForwarded(t *testing.T) {
	cmds := &fakeCommander{}
	hub := NewHub(WithCommander(cmds))
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { _ = hub.Close() })

	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(Message{Type: TypeEngage}))
	require.NoError(t, conn.WriteJSON(Message{Type: TypeConfigure, Payload: json.RawMessage(`{"target":"truck","missileSpeed":850}`)}))
	require.NoError(t, conn.WriteJSON(Message{Type: TypeAbort}))

	deadline := time.Now().Add(5 * time.Second)
	for len(cmds.Calls()) < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("commands received = %v", cmds.Calls())
		}
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, []string{TypeEngage, TypeConfigure, TypeAbort}, cmds.Calls())

	cmds.mu.Lock()
	defer cmds.mu.Unlock()
	require.Len(t, cmds.updates, 1)
	require.NotNil(t, cmds.updates[0].Target)
	assert.Equal(t, model.TargetTruck, *cmds.updates[0].Target)
	require.NotNil(t, cmds.updates[0].MissileSpeed)
	assert.Equal(t, 850.0, *cmds.updates[0].MissileSpeed)
	assert.Nil(t, cmds.updates[0].Environment)
}

func TestBadCommandGetsErrorFrame(t *testing.T) {
	hub := NewHub(WithCommander(&fakeCommander{}))
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { _ = hub.Close() })

	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(Message{Type: "launch"}))

	msg := readMessage(t, conn)
	assert.Equal(t, TypeError, msg.Type)
	assert.Contains(t, string(msg.Payload), "unknown message type")
}

func TestCloseDisconnectsClients(t *testing.T) {
	g := &gauge{}
	hub := NewHub(WithSubscriberGauge(g))
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	conn := dial(t, srv)
	waitClients(t, hub, 1)

	require.NoError(t, hub.Close())
	require.NoError(t, hub.Close())
	assert.Equal(t, 0, g.get())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	assert.ErrorIs(t, hub.Publish(core.Snapshot{}), ErrHubClosed)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestOfferLatestEvictsOldest(t *testing.T) {
	ch := make(chan []byte, 2)
	offerLatest(ch, []byte("a"))
	offerLatest(ch, []byte("b"))
	offerLatest(ch, []byte("c"))

	assert.Equal(t, "b", string(<-ch))
	assert.Equal(t, "c", string(<-ch))
}

func TestHubServesLiveSession(t *testing.T) {
	sess, err := session.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	hub := NewHub(WithCommander(sess))
	unsubscribe := sess.Subscribe(func(snap core.Snapshot) { _ = hub.Publish(snap) })
	t.Cleanup(unsubscribe)
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { _ = hub.Close() })

	conn := dial(t, srv)
	waitClients(t, hub, 1)

	require.NoError(t, conn.WriteJSON(Message{Type: TypeConfigure, Payload: json.RawMessage(`{"environment":"night"}`)}))

	msg := readMessage(t, conn)
	require.Equal(t, TypeSnapshot, msg.Type)
	var snap core.Snapshot
	require.NoError(t, json.Unmarshal(msg.Payload, &snap))
	assert.Equal(t, model.EnvironmentNight, snap.Environment.ID)
	assert.Equal(t, 0.1, snap.Illumination)
}
