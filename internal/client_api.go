package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

type (
	connectedMsg     struct{}
	incomingChatMsg  string
	rosterMsg        []RosterEntry
	myOnlineMsg      string
	errorMsg         error
	connectFailedMsg struct{ err error }
	reconnectMsg     struct{}
	presenceTickMsg  struct{}
)

func (model *TUIModel) scheduleReconnect() tea.Cmd {
	const retryDelay = 2 * time.Second
	return tea.Tick(retryDelay, func(time.Time) tea.Msg {
		return reconnectMsg{}
	})
}

// schedulePresenceTick drives the once-per-second updateOnline frame while
// the connection is up.
func (model *TUIModel) schedulePresenceTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return presenceTickMsg{}
	})
}

// websocket dial followed by the in-band handshake. The server never
// acknowledges auth; a successful dial is all we get.
func (model *TUIModel) connectCmd() tea.Cmd {
	return func() tea.Msg {
		chatURL, err := validateChatURL(model.serverURL)
		if err != nil {
			return connectFailedMsg{err: err}
		}
		conn, _, err := websocket.DefaultDialer.Dial(chatURL, http.Header{})
		if err != nil {
			return connectFailedMsg{err: err}
		}
		model.websocketConn = conn
		if err := model.writeFrame(envelope{Auth: &AuthRequest{Nick: model.nick, Server: model.serverTag}}); err != nil {
			_ = conn.Close()
			model.websocketConn = nil
			return connectFailedMsg{err: err}
		}
		return connectedMsg{}
	}
}

// readOnceCmd pulls a single frame off the socket and translates it into the
// matching tea message.
func (model *TUIModel) readOnceCmd() tea.Cmd {
	return func() tea.Msg {
		if model.websocketConn == nil {
			return errorMsg(fmt.Errorf("websocket not connected"))
		}
		messageType, payload, err := model.websocketConn.ReadMessage()
		if err != nil {
			return errorMsg(err)
		}
		if messageType != websocket.TextMessage {
			return nil
		}
		var frame struct {
			Chat      bool          `json:"chat"`
			Text      string        `json:"text"`
			Users     bool          `json:"users"`
			List      []RosterEntry `json:"list"`
			MyOnline  bool          `json:"myOnline"`
			DayOnline string        `json:"dayOnline"`
		}
		if err := json.Unmarshal(payload, &frame); err != nil {
			return incomingChatMsg(string(payload))
		}
		switch {
		case frame.Chat:
			return incomingChatMsg(frame.Text)
		case frame.Users:
			return rosterMsg(frame.List)
		case frame.MyOnline:
			return myOnlineMsg(frame.DayOnline)
		}
		return incomingChatMsg(string(payload))
	}
}

func (model *TUIModel) sendFrameCmd(frame envelope) tea.Cmd {
	return func() tea.Msg {
		if model.websocketConn == nil {
			return errorMsg(fmt.Errorf("websocket not connected"))
		}
		if err := model.writeFrame(frame); err != nil {
			return errorMsg(err)
		}
		return nil
	}
}

func (model *TUIModel) writeFrame(frame envelope) error {
	encoded, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	model.writeMutex.Lock()
	defer model.writeMutex.Unlock()
	return model.websocketConn.WriteMessage(websocket.TextMessage, encoded)
}

// entry for bubbletea
func RunClient(serverURL, nick, serverTag string) error {
	program := tea.NewProgram(NewTUIModel(serverURL, nick, serverTag))
	_, err := program.Run()
	return err
}

func validateChatURL(base string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return "", fmt.Errorf("invalid scheme for websocket: %s", parsed.Scheme)
	}
	return parsed.String(), nil
}
