package internal

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 8192

	sendBufferSize = 256
)

// Session wraps a single websocket connection, its buffered send queue, and
// the identity claimed during the handshake. A session with an empty nick is
// anonymous and may only issue auth frames.
type Session struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once

	mutex  sync.Mutex
	nick   string
	server string
}

func newSession(conn *websocket.Conn) *Session {
	return &Session{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// Nick returns the claimed nick, or "" while anonymous.
func (session *Session) Nick() string {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	return session.nick
}

// Identity returns the claimed nick and server label together.
func (session *Session) Identity() (nick, server string) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	return session.nick, session.server
}

func (session *Session) setIdentity(nick, server string) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.nick = nick
	session.server = server
}

func (session *Session) authenticated() bool {
	return session.Nick() != ""
}

// enqueue hands a payload to the write pump without blocking. A full buffer
// means this receiver is too slow; the frame is dropped for it alone and the
// caller carries on with the rest of the fan-out.
func (session *Session) enqueue(payload []byte) bool {
	select {
	case session.send <- payload:
		return true
	default:
		return false
	}
}

// terminate force-closes the connection. Used for handshake eviction; the
// victim's readPump unblocks with an error and runs normal teardown.
func (session *Session) terminate() {
	session.closeOnce.Do(func() {
		_ = session.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session replaced"),
			time.Now().Add(writeWait))
		_ = session.conn.Close()
	})
}

func (session *Session) readPump(gateway *Gateway) {
	defer func() {
		gateway.registry.Unregister(session)
		gateway.metrics.DecConn()
		_ = session.conn.Close()
		log.Printf("conn %s: closed", session.id)
	}()
	session.conn.SetReadLimit(maxMsgSize)
	_ = session.conn.SetReadDeadline(time.Now().Add(pongWait))
	session.conn.SetPongHandler(func(string) error {
		return session.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := session.conn.ReadMessage()
		if err != nil {
			// normal close or read error; deferred cleanup runs either way.
			break
		}
		// frames from one connection are handled strictly in arrival order.
		gateway.dispatch(context.Background(), session, payload)
	}
}

func (session *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = session.conn.Close()
	}()
	for {
		select {
		case message := <-session.send:
			_ = session.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := session.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = session.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := session.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
