package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/obsidianstack/winsight/pkg/types"
	"github.com/obsidianstack/winsight/server/internal/alerts"
	"github.com/obsidianstack/winsight/server/internal/store"
	wsHub "github.com/obsidianstack/winsight/server/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

func newStore(reps ...*types.Report) *store.Store {
	st := store.New(5 * time.Minute)
	for _, r := range reps {
		st.Put(r)
	}
	return st
}

func report(host, grade string) *types.Report {
	return &types.Report{
		Host:             host,
		RiskGrade:        grade,
		PerformanceScore: 90,
	}
}

type fakeAlerts []*alerts.Alert

func (f fakeAlerts) Active() []*alerts.Alert { return f }

// startHub starts a test server with the hub as its handler and runs the
// hub loop until cleanup. Returns the ws:// URL, the hub and its cancel func.
func startHub(t *testing.T, st *store.Store, al fakeAlerts) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(st, al, testInterval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads and decodes one message with a short deadline.
func readMessage(t *testing.T, conn *websocket.Conn) wsHub.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m wsHub.Message
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateSnapshot(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore(report("ws-01", types.RiskLow)), nil)

	m := readMessage(t, dial(t, wsURL))
	if m.Event != "snapshot" {
		t.Errorf("event: got %v, want snapshot", m.Event)
	}
	if m.Data.GeneratedAt == "" {
		t.Error("generated_at: missing")
	}
}

func TestHub_MessageContainsHosts(t *testing.T) {
	st := newStore(report("ws-01", types.RiskLow), report("ws-02", types.RiskHigh))
	wsURL, _, _ := startHub(t, st, nil)

	m := readMessage(t, dial(t, wsURL))
	if len(m.Data.Hosts) != 2 {
		t.Fatalf("hosts: got %d, want 2", len(m.Data.Hosts))
	}
	if m.Data.Hosts[1].RiskGrade != types.RiskHigh {
		t.Errorf("hosts[1].risk_grade: got %q, want High", m.Data.Hosts[1].RiskGrade)
	}
}

func TestHub_EmptyStore_EmptyHosts(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore(), nil)

	m := readMessage(t, dial(t, wsURL))
	if m.Data.Hosts == nil || len(m.Data.Hosts) != 0 {
		t.Errorf("hosts: got %v, want empty array", m.Data.Hosts)
	}
}

func TestHub_FiringAlertCount(t *testing.T) {
	al := fakeAlerts{
		{ID: "1", State: alerts.StateFiring},
		{ID: "2", State: alerts.StateFiring},
		{ID: "3", State: alerts.StateResolved},
	}
	wsURL, _, _ := startHub(t, newStore(), al)

	m := readMessage(t, dial(t, wsURL))
	if m.FiringAlerts != 2 {
		t.Errorf("firing_alerts: got %d, want 2", m.FiringAlerts)
	}
}

func TestHub_CountClients_SingleClient(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore(), nil)

	conn := dial(t, wsURL)
	readMessage(t, conn) // consume initial message

	// Give the hub a moment to register the client.
	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 1 {
		t.Errorf("Count: got %d, want 1", n)
	}
}

func TestHub_CountClients_MultipleClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore(), nil)

	for i := 0; i < 3; i++ {
		conn := dial(t, wsURL)
		readMessage(t, conn) // consume initial message
	}

	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}
}

func TestHub_CountClients_DecreasesOnDisconnect(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore(), nil)

	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	if n := hub.Count(); n != 1 {
		t.Errorf("Count before disconnect: got %d, want 1", n)
	}

	conn.Close()
	time.Sleep(50 * time.Millisecond) // let readPump detect the close

	if n := hub.Count(); n != 0 {
		t.Errorf("Count after disconnect: got %d, want 0", n)
	}
}

func TestHub_ReceivesBroadcastOnTick(t *testing.T) {
	st := newStore()
	wsURL, _, _ := startHub(t, st, nil)

	conn := dial(t, wsURL)
	readMessage(t, conn) // immediate snapshot of the empty store

	st.Put(report("new-host", types.RiskMedium))

	// A tick may already be in flight with the old state; wait for the new host.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m := readMessage(t, conn)
		if len(m.Data.Hosts) == 0 {
			continue
		}
		if m.Data.Hosts[0].Host != "new-host" {
			t.Errorf("host: got %v, want new-host", m.Data.Hosts[0].Host)
		}
		return
	}
	t.Fatal("no broadcast carried new-host")
}

func TestHub_AllClientsReceiveBroadcast(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore(report("ws-01", types.RiskLow)), nil)

	conns := make([]*websocket.Conn, 3)
	for i := 0; i < 3; i++ {
		conns[i] = dial(t, wsURL)
	}
	for i, conn := range conns {
		if m := readMessage(t, conn); m.Event != "snapshot" {
			t.Errorf("client %d: event: got %v, want snapshot", i, m.Event)
		}
	}
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, newStore(), nil)

	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	cancel() // signal shutdown

	// After cancel, hub should close all clients.
	time.Sleep(50 * time.Millisecond)
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after cancel: got %d, want 0", n)
	}
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(newStore(), nil, testInterval)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
