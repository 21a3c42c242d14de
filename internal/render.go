package internal

import (
	"fmt"
	"regexp"

	"squadchat/internal/storage"
)

// commanderMarker is the reserved color directive prepended to commander
// messages. Clients understand it as a formatting instruction, not text.
const commanderMarker = "{f70307}"

// undefinedCallsign is the roster fallback when a nick has no user record.
const undefinedCallsign = "undefined"

// bracket tags like {red} are client-side formatting directives and never
// reach other clients as literal text.
var bracketTagPattern = regexp.MustCompile(`\{/?\w+\}`)

func stripTags(text string) string {
	return bracketTagPattern.ReplaceAllString(text, "")
}

// formatChatLine renders a chat broadcast: sender nick and callsign, then the
// cleaned text, with the color marker ahead of commander messages.
func formatChatLine(nick, callsign string, role storage.Role, text string) string {
	marker := ""
	if role == storage.RoleCommander {
		marker = commanderMarker
	}
	return fmt.Sprintf("%s | %s: %s%s", nick, callsign, marker, stripTags(text))
}

// convertHMS formats a second count as zero-padded HH:MM:SS. Hours are not
// wrapped at 24, so a long day reads e.g. 25:00:00.
func convertHMS(totalSeconds int64) string {
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
