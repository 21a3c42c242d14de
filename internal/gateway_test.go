package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"squadchat/internal/storage"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	store, err := storage.NewStore("sqlite://file:" + t.Name() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewGateway(store)
}

func newTestWSServer(t *testing.T, gateway *Gateway) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(gateway.ServeWS))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame interface{}) {
	t.Helper()
	payload, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

type receivedFrame struct {
	Chat      bool          `json:"chat"`
	Text      string        `json:"text"`
	Users     bool          `json:"users"`
	List      []RosterEntry `json:"list"`
	MyOnline  bool          `json:"myOnline"`
	DayOnline string        `json:"dayOnline"`
}

func readFrame(t *testing.T, conn *websocket.Conn) receivedFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame receivedFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("decode frame %q: %v", payload, err)
	}
	return frame
}

// authAndSync declares a nick and waits for a roster reply. Since frames from
// one connection are handled in order, the reply proves the handshake has
// been applied server-side.
func authAndSync(t *testing.T, conn *websocket.Conn, nick, server string) receivedFrame {
	t.Helper()
	sendFrame(t, conn, envelope{Auth: &AuthRequest{Nick: nick, Server: server}})
	sendFrame(t, conn, envelope{Users: true})
	frame := readFrame(t, conn)
	if !frame.Users {
		t.Fatalf("expected roster reply, got %+v", frame)
	}
	return frame
}

func TestHandshakeEvictsPreviousHolder(t *testing.T) {
	gateway := newTestGateway(t)
	wsURL := newTestWSServer(t, gateway)

	first := dialWS(t, wsURL)
	authAndSync(t, first, "alpha", "eu-1")

	second := dialWS(t, wsURL)
	roster := authAndSync(t, second, "alpha", "eu-2")
	if len(roster.List) != 1 || roster.List[0].Server != "eu-2" {
		t.Fatalf("expected sole holder from eu-2, got %+v", roster.List)
	}

	// the first connection observes closure
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Fatal("evicted connection still readable")
	}

	if holder := gateway.Registry().FindByNick("alpha"); holder == nil {
		t.Fatal("nick has no holder after eviction")
	}
}

func TestAnonymousFramesDroppedSilently(t *testing.T) {
	gateway := newTestGateway(t)
	wsURL := newTestWSServer(t, gateway)

	conn := dialWS(t, wsURL)
	// none of these may produce a reply or a broadcast
	sendFrame(t, conn, envelope{Chat: &ChatRequest{Text: "hello?"}})
	sendFrame(t, conn, envelope{Users: true})
	sendFrame(t, conn, envelope{MyOnline: true})
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json at all")); err != nil {
		t.Fatalf("write malformed: %v", err)
	}

	// the first frame this connection ever receives is the roster answered
	// after the handshake
	roster := authAndSync(t, conn, "alpha", "eu-1")
	if len(roster.List) != 1 || roster.List[0].Nick != "alpha" {
		t.Fatalf("unexpected roster: %+v", roster.List)
	}
}

func TestEmptyNickHandshakeIgnored(t *testing.T) {
	gateway := newTestGateway(t)
	wsURL := newTestWSServer(t, gateway)

	conn := dialWS(t, wsURL)
	sendFrame(t, conn, envelope{Auth: &AuthRequest{Nick: "", Server: "eu-1"}})
	sendFrame(t, conn, envelope{Users: true})

	// still anonymous, so the roster request must be dropped; prove it by
	// authenticating and getting the roster only then
	roster := authAndSync(t, conn, "bravo", "eu-1")
	if len(roster.List) != 1 || roster.List[0].Nick != "bravo" {
		t.Fatalf("unexpected roster: %+v", roster.List)
	}
}

func TestChatBroadcastReachesAllAuthenticated(t *testing.T) {
	gateway := newTestGateway(t)
	wsURL := newTestWSServer(t, gateway)
	ctx := context.Background()

	if _, err := gateway.store.CreateUser(ctx, "alpha", "Hawk", storage.RoleCommander); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	first := dialWS(t, wsURL)
	authAndSync(t, first, "alpha", "eu-1")
	second := dialWS(t, wsURL)
	authAndSync(t, second, "bravo", "eu-2")

	sendFrame(t, first, envelope{Chat: &ChatRequest{Text: "hello {red}world{/red}"}})
	want := "alpha | Hawk: {f70307}hello world"
	for _, conn := range []*websocket.Conn{first, second} {
		frame := readFrame(t, conn)
		if !frame.Chat || frame.Text != want {
			t.Fatalf("broadcast = %+v, want chat text %q", frame, want)
		}
	}

	// a sender without a user record gets the fallback callsign and no marker
	sendFrame(t, second, envelope{Chat: &ChatRequest{Text: "copy"}})
	want = "bravo | undefined: copy"
	for _, conn := range []*websocket.Conn{first, second} {
		frame := readFrame(t, conn)
		if !frame.Chat || frame.Text != want {
			t.Fatalf("broadcast = %+v, want chat text %q", frame, want)
		}
	}
}

func TestRosterResolvesCallsigns(t *testing.T) {
	gateway := newTestGateway(t)
	wsURL := newTestWSServer(t, gateway)
	ctx := context.Background()

	if _, err := gateway.store.CreateUser(ctx, "alpha", "Hawk", storage.RoleFighter); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	first := dialWS(t, wsURL)
	authAndSync(t, first, "alpha", "eu-1")

	second := dialWS(t, wsURL)
	roster := authAndSync(t, second, "ghost", "eu-2")
	if len(roster.List) != 2 {
		t.Fatalf("roster size = %d, want 2", len(roster.List))
	}
	byNick := make(map[string]RosterEntry, len(roster.List))
	for _, entry := range roster.List {
		byNick[entry.Nick] = entry
	}
	if byNick["alpha"].Callsign != "Hawk" {
		t.Errorf("alpha callsign = %q, want Hawk", byNick["alpha"].Callsign)
	}
	if byNick["ghost"].Callsign != "undefined" {
		t.Errorf("ghost callsign = %q, want undefined", byNick["ghost"].Callsign)
	}
	if byNick["ghost"].Server != "eu-2" {
		t.Errorf("ghost server = %q, want eu-2", byNick["ghost"].Server)
	}
}

func TestMyOnlineCombinesStoreAndPending(t *testing.T) {
	gateway := newTestGateway(t)
	wsURL := newTestWSServer(t, gateway)
	ctx := context.Background()

	if _, err := gateway.store.CreateUser(ctx, "echo", "Viper", storage.RoleFighter); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := gateway.store.IncrementOnline(ctx, "echo", 3661); err != nil {
		t.Fatalf("IncrementOnline: %v", err)
	}

	conn := dialWS(t, wsURL)
	authAndSync(t, conn, "echo", "eu-1")

	// a back-to-back pair of ticks debounces to a single pending second
	sendFrame(t, conn, envelope{UpdateOnline: true})
	sendFrame(t, conn, envelope{UpdateOnline: true})
	sendFrame(t, conn, envelope{MyOnline: true})

	frame := readFrame(t, conn)
	if !frame.MyOnline || frame.DayOnline != "01:01:02" {
		t.Fatalf("myOnline = %+v, want dayOnline 01:01:02", frame)
	}
}

func TestFlushOnlineReconciliation(t *testing.T) {
	gateway := newTestGateway(t)
	ctx := context.Background()

	if _, err := gateway.store.CreateUser(ctx, "delta", "Nomad", storage.RoleTrainee); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		gateway.Tracker().Tick("delta", base.Add(time.Duration(i)*time.Second))
	}

	gateway.FlushOnline(ctx)
	user, err := gateway.store.GetUserByNick(ctx, "delta")
	if err != nil || user == nil {
		t.Fatalf("GetUserByNick: %v", err)
	}
	if user.Online != 4 {
		t.Fatalf("online after flush = %d, want 4", user.Online)
	}

	// nothing new ticked, so a second flush must not double-count
	gateway.FlushOnline(ctx)
	user, _ = gateway.store.GetUserByNick(ctx, "delta")
	if user.Online != 4 {
		t.Fatalf("online after idle flush = %d, want 4", user.Online)
	}
}

func TestFlushOnlineUnknownNickNoop(t *testing.T) {
	gateway := newTestGateway(t)
	ctx := context.Background()

	gateway.Tracker().Tick("nobody", time.Now())
	gateway.FlushOnline(ctx)

	users, err := gateway.store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("flush created records: %+v", users)
	}
	if got := gateway.Tracker().Pending("nobody"); got != 0 {
		t.Fatalf("pending after no-op flush = %d, want 0", got)
	}
}

func TestFlushOnlineKeepsPendingOnStoreError(t *testing.T) {
	gateway := newTestGateway(t)
	ctx := context.Background()

	gateway.Tracker().Tick("foxtrot", time.Now())
	_ = gateway.store.Close()

	gateway.FlushOnline(ctx)
	if got := gateway.Tracker().Pending("foxtrot"); got != 1 {
		t.Fatalf("pending after failed flush = %d, want 1", got)
	}
}
