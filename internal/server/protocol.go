package server

import "github.com/coder/websocket"

// Application close codes, in the range reserved for private use by RFC 6455.
const (
	// StatusRoomFull is sent when a third participant tries to join a room
	// that already holds a full call.
	StatusRoomFull = websocket.StatusCode(4002)
)

// Server → client message types.
const (
	typeConnected  = "connected"
	typePeerJoined = "peer_joined"
	typePeerLeft   = "peer_left"
	typePong       = "pong"
	typeError      = "error"
	typeCaption    = "caption"
)

// Client → server control actions.
const (
	actionPing  = "ping"
	actionReset = "reset"
)

// handshakeMsg is the single control message a client must send after
// connecting, declaring the participant's language.
type handshakeMsg struct {
	NativeLang string `json:"native_lang"`
}

// controlMsg is a client control message received while the call is active.
// Unrecognised actions are ignored.
type controlMsg struct {
	Type string `json:"type"`
}

// serverMsg is the envelope for all server → client JSON messages. Only the
// fields relevant to Type are populated.
type serverMsg struct {
	Type string `json:"type"`

	// Connected.
	UserID string `json:"user_id,omitempty"`
	Room   string `json:"room,omitempty"`

	// PeerJoined / PeerLeft.
	PeerID   string `json:"peer_id,omitempty"`
	PeerLang string `json:"peer_lang,omitempty"`

	// Caption: Text is the translation, Original the source transcript.
	Text     string `json:"text,omitempty"`
	Original string `json:"original,omitempty"`

	// Error.
	Message string `json:"message,omitempty"`
}
