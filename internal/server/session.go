package server

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/babelcall/internal/dispatch"
	"github.com/MrWong99/babelcall/internal/room"
	"github.com/MrWong99/babelcall/internal/segment"
)

// Compile-time assertions that Session satisfies both registry membership and
// dispatch delivery.
var (
	_ room.Member   = (*Session)(nil)
	_ dispatch.Peer = (*Session)(nil)
)

// Session is one participant's connection for the lifetime of a call. It owns
// the participant's segmenter and single-flight slot, and is the delivery
// target for translations of the peer's speech.
//
// All writes to the underlying connection go through the session so they are
// serialised between the connection's own read loop (pong, peer events) and
// dispatcher goroutines delivering the peer's translations.
type Session struct {
	id     string
	roomID string
	lang   string

	conn *websocket.Conn

	// seg and slot are owned by the connection's read loop; slot is
	// additionally flipped by dispatcher goroutines on flight completion.
	seg  *segment.Segmenter
	slot dispatch.Slot

	writeMu   sync.Mutex
	connected atomic.Bool
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, roomID, userID, lang string, seg *segment.Segmenter) *Session {
	s := &Session{
		id:     userID,
		roomID: roomID,
		lang:   lang,
		conn:   conn,
		seg:    seg,
	}
	s.connected.Store(true)
	return s
}

// ID returns the participant's identifier within its room.
func (s *Session) ID() string { return s.id }

// Lang returns the participant's declared language code.
func (s *Session) Lang() string { return s.lang }

// Connected reports whether the session's transport is still open.
func (s *Session) Connected() bool { return s.connected.Load() }

// SendAudio delivers synthesised translation audio as one binary frame.
func (s *Session) SendAudio(ctx context.Context, wav []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(ctx, websocket.MessageBinary, wav)
}

// SendCaption delivers the text of a translation.
func (s *Session) SendCaption(ctx context.Context, c dispatch.Caption) error {
	return s.send(ctx, serverMsg{
		Type:     typeCaption,
		Text:     c.TranslatedText,
		Original: c.SourceText,
	})
}

// send writes a JSON control message to the client.
func (s *Session) send(ctx context.Context, msg serverMsg) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return wsjson.Write(ctx, s.conn, msg)
}

// markClosed flips the session to disconnected exactly once and reports
// whether this call did the flip. Dispatcher goroutines racing a teardown see
// Connected() == false from the first call onward.
func (s *Session) markClosed() (first bool) {
	s.closeOnce.Do(func() {
		s.connected.Store(false)
		first = true
	})
	return first
}
