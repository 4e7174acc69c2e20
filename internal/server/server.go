// Package server implements the WebSocket call endpoint: per-connection
// handshake, audio/control demultiplexing, room membership, and teardown.
//
// One connection moves through three states: handshaking (waiting for the
// client's language declaration under a deadline), active (looping over
// inbound frames), and closed (terminal; idempotent). Binary frames carry raw
// PCM and feed the participant's segmenter; text frames carry JSON control
// messages. Nothing in the read loop blocks on translation work — completed
// segments are handed to the dispatcher and the loop moves on.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/babelcall/internal/dispatch"
	"github.com/MrWong99/babelcall/internal/observe"
	"github.com/MrWong99/babelcall/internal/room"
	"github.com/MrWong99/babelcall/internal/segment"
)

const (
	// DefaultHandshakeTimeout bounds how long a client may take to declare
	// its language after connecting.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultSampleRate is the PCM sample rate expected on inbound binary
	// frames: mono, 16-bit little-endian.
	DefaultSampleRate = 16000

	// notifyTimeout bounds best-effort peer notifications sent outside the
	// notified connection's own read loop.
	notifyTimeout = 5 * time.Second
)

// Server accepts call connections and drives each one's state machine.
type Server struct {
	registry     *room.Registry[*Session]
	dispatcher   *dispatch.Dispatcher
	newSegmenter func() *segment.Segmenter

	handshakeTimeout time.Duration
	sampleRate       int
	metrics          *observe.Metrics
	acceptOpts       *websocket.AcceptOptions
}

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithHandshakeTimeout bounds the wait for the client's language declaration.
// Default is [DefaultHandshakeTimeout].
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Server) { s.handshakeTimeout = d }
}

// WithSampleRate sets the PCM sample rate expected from clients.
// Default is [DefaultSampleRate].
func WithSampleRate(hz int) Option {
	return func(s *Server) { s.sampleRate = hz }
}

// WithMetrics sets the metrics sink. Default is [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithOriginPatterns sets the allowed WebSocket origins. By default only
// same-origin browser connections are accepted.
func WithOriginPatterns(patterns []string) Option {
	return func(s *Server) {
		s.acceptOpts = &websocket.AcceptOptions{OriginPatterns: patterns}
	}
}

// New constructs a Server. newSegmenter is called once per connection so each
// participant gets independent segmentation state.
func New(registry *room.Registry[*Session], dispatcher *dispatch.Dispatcher, newSegmenter func() *segment.Segmenter, opts ...Option) *Server {
	s := &Server{
		registry:         registry,
		dispatcher:       dispatcher,
		newSegmenter:     newSegmenter,
		handshakeTimeout: DefaultHandshakeTimeout,
		sampleRate:       DefaultSampleRate,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Register adds the call endpoint to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/call/{room}/{user}", s.handleCall)
}

// handleCall runs one connection from accept to teardown.
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room")
	userID := r.PathValue("user")

	conn, err := websocket.Accept(w, r, s.acceptOpts)
	if err != nil {
		slog.Debug("websocket accept failed",
			slog.String("room", roomID),
			slog.String("user", userID),
			slog.String("error", err.Error()))
		return
	}

	ctx := r.Context()
	log := observe.Logger(ctx).With(
		slog.String("room", roomID),
		slog.String("user", userID),
	)

	lang, err := s.handshake(ctx, conn)
	if err != nil {
		log.Info("handshake failed", slog.String("error", err.Error()))
		writeControl(ctx, conn, serverMsg{Type: typeError, Message: "expected {\"native_lang\": ...} within the handshake window"})
		_ = conn.Close(websocket.StatusPolicyViolation, "handshake failed")
		return
	}

	sess := newSession(conn, roomID, userID, lang, s.newSegmenter())
	created, err := s.registry.Join(roomID, sess)
	if err != nil {
		log.Info("join rejected, room is full")
		writeControl(ctx, conn, serverMsg{Type: typeError, Message: "room is full"})
		_ = conn.Close(StatusRoomFull, "room full")
		return
	}
	if created {
		s.metrics.ActiveRooms.Add(ctx, 1)
	}
	s.metrics.ActiveSessions.Add(ctx, 1)
	defer s.teardown(ctx, sess, log)

	log.Info("participant joined", slog.String("lang", lang))
	if err := sess.send(ctx, serverMsg{Type: typeConnected, UserID: userID, Room: roomID}); err != nil {
		return
	}

	// Introduce the two sides to each other. Both directions are best-effort:
	// a peer that vanished mid-join just tears down on its own loop.
	if peer, ok := s.registry.Peer(roomID, userID); ok {
		_ = peer.send(ctx, serverMsg{Type: typePeerJoined, PeerID: userID, PeerLang: lang})
		_ = sess.send(ctx, serverMsg{Type: typePeerJoined, PeerID: peer.ID(), PeerLang: peer.Lang()})
	}

	s.readLoop(ctx, sess, log)
}

// handshake waits for the client's single language-declaration message.
func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (lang string, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.handshakeTimeout)
	defer cancel()

	typ, data, err := conn.Read(ctx)
	if err != nil {
		return "", fmt.Errorf("server: handshake read: %w", err)
	}
	if typ != websocket.MessageText {
		return "", errors.New("server: handshake must be a text frame")
	}

	var hs handshakeMsg
	if err := json.Unmarshal(data, &hs); err != nil {
		return "", fmt.Errorf("server: handshake payload: %w", err)
	}
	lang = strings.ToLower(strings.TrimSpace(hs.NativeLang))
	if lang == "" {
		return "", errors.New("server: handshake missing native_lang")
	}
	return lang, nil
}

// readLoop drives the active state: binary frames feed the segmenter, text
// frames carry control actions. Returns when the transport closes.
func (s *Server) readLoop(ctx context.Context, sess *Session, log *slog.Logger) {
	for {
		typ, data, err := sess.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				log.Debug("connection closed")
			} else {
				log.Info("connection lost", slog.String("error", err.Error()))
			}
			return
		}

		switch typ {
		case websocket.MessageBinary:
			pcm, ok := sess.seg.AddChunk(data)
			if !ok {
				continue
			}
			peer, found := s.registry.Peer(sess.roomID, sess.id)
			if !found {
				s.metrics.RecordDrop(ctx, "no_peer")
				log.Debug("segment dropped, no connected peer")
				continue
			}
			s.dispatcher.Dispatch(ctx, &sess.slot, sess, peer, pcm, s.sampleRate)

		case websocket.MessageText:
			var msg controlMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				// Malformed control messages are ignored, not fatal.
				continue
			}
			switch msg.Type {
			case actionPing:
				_ = sess.send(ctx, serverMsg{Type: typePong})
			case actionReset:
				sess.seg.Reset()
			}
		}
	}
}

// teardown is the CLOSED transition: idempotent, best-effort, and safe to
// race with dispatcher goroutines still holding the session as a peer.
func (s *Server) teardown(ctx context.Context, sess *Session, log *slog.Logger) {
	if !sess.markClosed() {
		return
	}

	remaining, ok := s.registry.Leave(sess.roomID, sess.id)
	if ok {
		// Detach from the closing connection's context: it is already done,
		// but the peer notification still has to go out.
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		_ = remaining.send(nctx, serverMsg{Type: typePeerLeft, PeerID: sess.id})
		cancel()
	} else {
		// Leave on a joined session only reports no remaining member when
		// the room emptied and was deleted.
		s.metrics.ActiveRooms.Add(ctx, -1)
	}
	s.metrics.ActiveSessions.Add(ctx, -1)

	_ = sess.conn.Close(websocket.StatusNormalClosure, "")
	log.Info("participant left")
}

// writeControl sends one JSON message outside a live session, tolerating
// failure. Used on pre-join error paths.
func writeControl(ctx context.Context, conn *websocket.Conn, msg serverMsg) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = conn.Write(ctx, websocket.MessageText, b)
}
