package internal

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

func (model *TUIModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMessage := message.(type) {
	case tea.KeyMsg:
		// Any mode should respect Ctrl+C or Esc so the user can bail out quickly.
		if typedMessage.Type == tea.KeyCtrlC || typedMessage.Type == tea.KeyEsc {
			if model.websocketConn != nil {
				_ = model.websocketConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = model.websocketConn.Close()
			}
			return model, tea.Quit
		}
		switch model.mode {
		case modeNickPrompt:
			if typedMessage.Type == tea.KeyEnter {
				trimmed := strings.TrimSpace(model.textInput.Value())
				if trimmed == "" {
					return model, nil
				}
				model.nick = trimmed
				model.mode = modeChat
				model.textInput.SetValue("")
				model.textInput.Placeholder = "Type a message…"
				model.textInput.Prompt = "> "
				return model, model.connectCmd()
			}
			var cmd tea.Cmd
			model.textInput, cmd = model.textInput.Update(typedMessage)
			return model, cmd
		case modeChat:
			if typedMessage.Type == tea.KeyEnter {
				trimmed := strings.TrimSpace(model.textInput.Value())
				if trimmed == "" {
					return model, nil
				}
				model.textInput.SetValue("")
				if strings.HasPrefix(trimmed, "/") {
					return model, model.handleSlashCommand(strings.ToLower(trimmed))
				}
				if model.isConnected {
					return model, model.sendFrameCmd(envelope{Chat: &ChatRequest{Text: trimmed}})
				}
				return model, nil
			}
			var command tea.Cmd
			model.textInput, command = model.textInput.Update(typedMessage)
			return model, command
		}

	case connectedMsg:
		model.isConnected = true
		model.connectionError = nil
		return model, tea.Batch(model.readOnceCmd(), model.schedulePresenceTick())

	case incomingChatMsg:
		model.appendLine(string(typedMessage))
		return model, model.readOnceCmd()

	case rosterMsg:
		model.appendLine(fmt.Sprintf("— %d online —", len(typedMessage)))
		for _, entry := range typedMessage {
			model.appendLine(fmt.Sprintf("  %s (%s) @ %s", entry.Nick, entry.Callsign, entry.Server))
		}
		return model, model.readOnceCmd()

	case myOnlineMsg:
		model.dayOnline = string(typedMessage)
		model.appendLine(fmt.Sprintf("— online today: %s —", model.dayOnline))
		return model, model.readOnceCmd()

	case presenceTickMsg:
		if !model.isConnected {
			return model, nil
		}
		return model, tea.Batch(
			model.sendFrameCmd(envelope{UpdateOnline: true}),
			model.schedulePresenceTick(),
		)

	case errorMsg:
		model.isConnected = false
		model.connectionError = typedMessage
		model.websocketConn = nil
		if model.mode == modeChat {
			return model, model.scheduleReconnect()
		}
		return model, nil

	case connectFailedMsg:
		model.connectionError = typedMessage.err
		if model.mode == modeChat {
			return model, model.scheduleReconnect()
		}
		return model, nil

	case reconnectMsg:
		if model.mode == modeChat && !model.isConnected {
			return model, model.connectCmd()
		}
		return model, nil
	}
	return model, nil
}

func (model *TUIModel) handleSlashCommand(command string) tea.Cmd {
	switch command {
	case "/quit", "/exit":
		if model.websocketConn != nil {
			_ = model.websocketConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client quit"))
			_ = model.websocketConn.Close()
		}
		return tea.Quit
	case "/users":
		return model.sendFrameCmd(envelope{Users: true})
	case "/online":
		return model.sendFrameCmd(envelope{MyOnline: true})
	default:
		model.appendLine(fmt.Sprintf("unknown command %s (try /users, /online, /quit)", command))
		return nil
	}
}

func (model *TUIModel) appendLine(line string) {
	model.lines = append(model.lines, line)
	if len(model.lines) > maxScrollback {
		model.lines = model.lines[len(model.lines)-maxScrollback:]
	}
}
