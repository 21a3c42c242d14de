package internal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// pre styled colors, all from lipgloss
var (
	appTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).Padding(0, 1)
	subtitleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).MarginTop(1)
	messageBoxStyle  = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(1, 2).MarginTop(1)
	messageBodyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("253"))
	commanderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f70307"))
	systemLineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	inputBoxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).MarginTop(1)
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).MarginTop(1)
	connectedStyle   = statusStyle.Copy().Foreground(lipgloss.Color("42")).Bold(true)
	connectingStyle  = statusStyle.Copy().Foreground(lipgloss.Color("178")).Italic(true)
	errorStyle       = statusStyle.Copy().Foreground(lipgloss.Color("196")).Bold(true)
)

func (model *TUIModel) View() string {
	if model.mode == modeNickPrompt {
		return model.renderNickPromptView()
	}
	return model.renderChatView()
}

func (model *TUIModel) renderNickPromptView() string {
	title := appTitleStyle.Render("SquadChat")
	subtitle := subtitleStyle.Render("Declare a nick to join the relay")
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		subtitle,
		inputBoxStyle.Render(model.textInput.View()),
	)
}

func (model *TUIModel) renderChatView() string {
	title := appTitleStyle.Render(fmt.Sprintf("SquadChat — %s @ %s", model.nick, model.serverTag))

	var rendered []string
	if len(model.lines) == 0 {
		rendered = append(rendered, systemLineStyle.Render("No messages yet. /users lists who is on, /online shows your time."))
	}
	for _, line := range model.lines {
		rendered = append(rendered, renderChatLine(line))
	}
	messages := messageBoxStyle.Render(strings.Join(rendered, "\n"))

	status := connectingStyle.Render("connecting…")
	switch {
	case model.isConnected:
		status = connectedStyle.Render("connected")
	case model.connectionError != nil:
		status = errorStyle.Render(fmt.Sprintf("disconnected: %v (retrying)", model.connectionError))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		messages,
		inputBoxStyle.Render(model.textInput.View()),
		status,
	)
}

// renderChatLine turns the reserved color marker into a real terminal color
// instead of showing it as literal text.
func renderChatLine(line string) string {
	if idx := strings.Index(line, commanderMarker); idx >= 0 {
		prefix := line[:idx]
		body := line[idx+len(commanderMarker):]
		return messageBodyStyle.Render(prefix) + commanderStyle.Render(body)
	}
	if strings.HasPrefix(line, "—") || strings.HasPrefix(line, " ") || strings.HasPrefix(line, "unknown command") {
		return systemLineStyle.Render(line)
	}
	return messageBodyStyle.Render(line)
}
