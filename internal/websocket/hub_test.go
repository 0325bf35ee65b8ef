package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	wstypes "pipx-client/internal/domain/websocket"

	"github.com/gorilla/websocket"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		peer := NewPeer(hub, conn, &PeerAuth{UserID: r.URL.Query().Get("user"), SessionID: "jti-1"})
		if !hub.Add(peer) {
			conn.Close()
			return
		}
		go peer.WritePump()
		go peer.ReadPump()
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv)+"/?user="+user, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readType(t *testing.T, conn *websocket.Conn) wstypes.EventType {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := wstypes.ParseMessage(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return msg.Type
}

func waitClients(t *testing.T, hub *Hub, user string, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for hub.GetConnectedClients(user) != want {
		if time.Now().After(deadline) {
			t.Fatalf("clients for %s = %d, want %d", user, hub.GetConnectedClients(user), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_SendToUserTargetsOnlyThatUser(t *testing.T) {
	hub, srv := startHub(t)
	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")

	if typ := readType(t, alice); typ != wstypes.EventTypeConnected {
		t.Fatalf("first message = %s", typ)
	}
	if typ := readType(t, bob); typ != wstypes.EventTypeConnected {
		t.Fatalf("first message = %s", typ)
	}

	msg, _ := wstypes.NewMessage(wstypes.EventTypeNotificationCount, wstypes.NotificationCountData{Unread: 2})
	hub.SendToUser("alice", msg)

	if typ := readType(t, alice); typ != wstypes.EventTypeNotificationCount {
		t.Errorf("alice got %s", typ)
	}

	bob.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := bob.ReadMessage(); err == nil {
		t.Error("bob received a message meant for alice")
	}
}

func TestHub_ForceLogoutDeliversThenDisconnects(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "alice")
	readType(t, conn)
	waitClients(t, hub, "alice", 1)

	hub.ForceLogout("alice", "logout_all")

	if typ := readType(t, conn); typ != wstypes.EventTypeForceLogout {
		t.Fatalf("got %s, want force logout", typ)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("after force logout: %v, want normal close", err)
	}
	waitClients(t, hub, "alice", 0)
}

func TestPeer_AnswersPing(t *testing.T) {
	_, srv := startHub(t)
	conn := dial(t, srv, "alice")
	readType(t, conn)

	ping, _ := wstypes.NewMessage(wstypes.EventTypePing, nil)
	raw, _ := ping.ToJSON()
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatal(err)
	}
	if typ := readType(t, conn); typ != wstypes.EventTypePong {
		t.Errorf("got %s, want pong", typ)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat"}`))
	if typ := readType(t, conn); typ != wstypes.EventTypeError {
		t.Errorf("got %s, want error", typ)
	}
}

func TestHub_AddAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	added := make(chan bool, 1)
	go func() { added <- hub.Add(&Peer{userID: "u1"}) }()

	select {
	case ok := <-added:
		if ok {
			t.Fatal("Add accepted a peer on a stopped hub")
		}
	case <-time.After(time.Second):
		t.Fatal("Add blocked on a stopped hub")
	}
	if n := hub.TotalClients(); n != 0 {
		t.Errorf("clients = %d, want 0", n)
	}
}
