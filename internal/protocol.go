package internal

// AuthRequest is the in-band handshake payload. The nick is a declared
// identity, not a verified one; the server field is an opaque label shown in
// the roster.
type AuthRequest struct {
	Nick   string `json:"nick"`
	Server string `json:"server"`
}

// ChatRequest carries the free-text body of a chat broadcast.
type ChatRequest struct {
	Text string `json:"text"`
}

// envelope is the inbound frame shape. Exactly one of the fields selects the
// handler; the dispatcher tests them in a fixed priority order and drops
// frames that match none.
type envelope struct {
	Auth         *AuthRequest `json:"auth,omitempty"`
	Chat         *ChatRequest `json:"chat,omitempty"`
	Users        bool         `json:"users,omitempty"`
	UpdateOnline bool         `json:"updateOnline,omitempty"`
	MyOnline     bool         `json:"myOnline,omitempty"`
}

// RosterEntry describes one authenticated connection in a roster response.
type RosterEntry struct {
	Nick     string `json:"nick"`
	Server   string `json:"server"`
	Callsign string `json:"callsign"`
}

type rosterFrame struct {
	Users bool          `json:"users"`
	List  []RosterEntry `json:"list"`
}

type chatFrame struct {
	Chat bool   `json:"chat"`
	Text string `json:"text"`
}

type myOnlineFrame struct {
	MyOnline  bool   `json:"myOnline"`
	DayOnline string `json:"dayOnline"`
}
