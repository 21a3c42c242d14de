package internal

import (
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

// tui model for the chat client
type TUIModel struct {
	textInput       textinput.Model
	lines           []string
	serverURL       string
	nick            string
	serverTag       string
	websocketConn   *websocket.Conn
	writeMutex      sync.Mutex
	isConnected     bool
	connectionError error
	mode            appMode
	dayOnline       string
}

type appMode int

const (
	modeNickPrompt appMode = iota
	modeChat
)

const maxScrollback = 500

func NewTUIModel(serverURL, nick, serverTag string) *TUIModel {
	input := textinput.New()
	input.Placeholder = "Type a message…"
	input.CharLimit = 0
	input.Focus()
	input.Prompt = "> "

	if serverTag == "" {
		serverTag = defaultServerTag()
	}

	model := &TUIModel{
		textInput: input,
		lines:     make([]string, 0, 64),
		serverURL: serverURL,
		nick:      nick,
		serverTag: serverTag,
	}
	if nick == "" {
		model.mode = modeNickPrompt
		model.textInput.Placeholder = "Enter your nick…"
		model.textInput.Prompt = "nick> "
	} else {
		model.mode = modeChat
	}
	return model
}

func defaultServerTag() string {
	if tag := os.Getenv("SQUADCHAT_SERVER_TAG"); tag != "" {
		return tag
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}

func (model *TUIModel) Init() tea.Cmd {
	if model.mode == modeChat {
		return model.connectCmd()
	}
	return nil
}
