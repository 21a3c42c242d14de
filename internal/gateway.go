package internal

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"squadchat/internal/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// the handshake carries no credentials, so cross-origin dials are no
		// worse than same-origin ones.
		return true
	},
}

// Gateway is the realtime core: it owns the connection registry and the
// online-seconds tracker, dispatches inbound frames, and fans chat lines out
// to every authenticated connection. The HTTP user endpoints hang off the
// same type so both surfaces share one store and one metrics set.
type Gateway struct {
	store       *storage.Store
	registry    *Registry
	tracker     *OnlineTracker
	metrics     *Metrics
	authLimiter *RateLimiter
}

func NewGateway(store *storage.Store) *Gateway {
	return &Gateway{
		store:       store,
		registry:    NewRegistry(),
		tracker:     NewOnlineTracker(),
		metrics:     NewMetrics(),
		authLimiter: NewRateLimiter(10, time.Minute),
	}
}

// Registry exposes the connection set, mainly for tests and metrics.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// Tracker exposes the online accumulator for the flush loop and tests.
func (g *Gateway) Tracker() *OnlineTracker {
	return g.tracker
}

// ServeWS upgrades the request and runs the connection until it closes.
func (g *Gateway) ServeWS(writer http.ResponseWriter, request *http.Request) {
	conn, err := upgrader.Upgrade(writer, request, nil)
	if err != nil {
		log.Printf("upgrade error: %v", err)
		return
	}
	session := newSession(conn)
	g.registry.Register(session)
	g.metrics.IncConn()
	log.Printf("conn %s: accepted from %s", session.id, request.RemoteAddr)

	go session.writePump()
	go session.readPump(g)
}

// dispatch decodes one inbound frame and routes it by key presence, auth
// first, the rest only once the session has a nick. Unroutable or malformed
// frames are dropped without a reply; the protocol has no error channel.
func (g *Gateway) dispatch(ctx context.Context, session *Session, payload []byte) {
	var frame envelope
	if err := json.Unmarshal(payload, &frame); err != nil {
		g.metrics.IncDropped()
		log.Printf("conn %s: dropping malformed frame: %v", session.id, err)
		return
	}
	switch {
	case frame.Auth != nil:
		g.handleAuth(session, frame.Auth)
	case !session.authenticated():
		g.metrics.IncDropped()
	case frame.Chat != nil:
		g.handleChat(ctx, session, frame.Chat)
	case frame.Users:
		g.handleRoster(ctx, session)
	case frame.UpdateOnline:
		g.tracker.Tick(session.Nick(), time.Now())
	case frame.MyOnline:
		g.handleMyOnline(ctx, session)
	default:
		g.metrics.IncDropped()
	}
}

// handleAuth runs the handshake: last writer wins, so whoever currently holds
// the nick gets terminated and removed before this session takes it over.
// Success is implicit; no ack frame exists.
func (g *Gateway) handleAuth(session *Session, auth *AuthRequest) {
	if auth.Nick == "" {
		g.metrics.IncDropped()
		return
	}
	evicted := g.registry.Claim(session, auth.Nick, auth.Server)
	if evicted != nil {
		log.Printf("conn %s: evicted by conn %s claiming nick %q", evicted.id, session.id, auth.Nick)
		evicted.terminate()
	}
}

func (g *Gateway) handleChat(ctx context.Context, session *Session, chat *ChatRequest) {
	nick := session.Nick()
	user, err := g.store.GetUserByNick(ctx, nick)
	if err != nil {
		log.Printf("conn %s: chat user lookup: %v", session.id, err)
		return
	}
	callsign := undefinedCallsign
	var role storage.Role
	if user != nil {
		callsign = user.Callsign
		role = user.Role
	}
	g.broadcast(formatChatLine(nick, callsign, role, chat.Text))
}

// broadcast delivers a rendered line to every authenticated connection in the
// registry snapshot, the sender included. Delivery is fire-and-forget: a slow
// or vanishing receiver loses this frame without affecting the rest.
func (g *Gateway) broadcast(text string) {
	payload, err := json.Marshal(chatFrame{Chat: true, Text: text})
	if err != nil {
		return
	}
	for _, session := range g.registry.All() {
		if !session.authenticated() {
			continue
		}
		if !session.enqueue(payload) {
			log.Printf("conn %s: send buffer full, broadcast dropped for it", session.id)
		}
	}
	g.metrics.IncBroadcast()
}

// handleRoster answers the requester only: one entry per authenticated
// connection, callsign resolved from the store with "undefined" standing in
// for nicks without a record.
func (g *Gateway) handleRoster(ctx context.Context, session *Session) {
	users, err := g.store.ListUsers(ctx)
	if err != nil {
		log.Printf("conn %s: roster lookup: %v", session.id, err)
		return
	}
	callsigns := make(map[string]string, len(users))
	for _, user := range users {
		callsigns[user.Nick] = user.Callsign
	}
	var list []RosterEntry
	for _, other := range g.registry.All() {
		nick, server := other.Identity()
		if nick == "" {
			continue
		}
		callsign, ok := callsigns[nick]
		if !ok {
			callsign = undefinedCallsign
		}
		list = append(list, RosterEntry{Nick: nick, Server: server, Callsign: callsign})
	}
	payload, err := json.Marshal(rosterFrame{Users: true, List: list})
	if err != nil {
		return
	}
	session.enqueue(payload)
}

// handleMyOnline reports the requester's own accumulated time: the persisted
// counter plus whatever the tracker has not flushed yet.
func (g *Gateway) handleMyOnline(ctx context.Context, session *Session) {
	nick := session.Nick()
	user, err := g.store.GetUserByNick(ctx, nick)
	if err != nil {
		log.Printf("conn %s: online lookup: %v", session.id, err)
		return
	}
	total := g.tracker.Pending(nick)
	if user != nil {
		total += user.Online
	}
	payload, err := json.Marshal(myOnlineFrame{MyOnline: true, DayOnline: convertHMS(total)})
	if err != nil {
		return
	}
	session.enqueue(payload)
}

// FlushOnline drains accumulated seconds into the store. A failed increment
// leaves the amount pending for the next cycle; an increment for a nick with
// no record is a store-side no-op and the seconds are discarded rather than
// retried forever.
func (g *Gateway) FlushOnline(ctx context.Context) {
	for nick, pending := range g.tracker.Snapshot() {
		if _, err := g.store.IncrementOnline(ctx, nick, pending); err != nil {
			log.Printf("flush online %s: %v", nick, err)
			continue
		}
		g.tracker.Absorb(nick, pending)
		g.metrics.AddFlushed(pending)
	}
}
