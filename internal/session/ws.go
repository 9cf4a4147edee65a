// ABOUTME: WebSocket transport for sessions: upgrade, read loop, write pump, heartbeat.
// ABOUTME: Unresponsive sessions run through the same teardown as an explicit disconnect.

package session

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wallboard/wallboard/internal/broadcast"
)

// writeWait bounds how long a single frame write may take.
const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks belong to the deployment's reverse proxy; sessions
	// authenticate by agent code after the upgrade.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request to a WebSocket session and blocks until
// the session ends. The read loop owns disconnect detection; the write
// pump is the only writer on the connection.
func (m *Manager) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s := m.NewSession(conn)
	go m.writePump(s)
	m.readLoop(r.Context(), s)
}

// readLoop reads client frames until the transport fails or times out.
// The read deadline doubles as the heartbeat: every pong (or any frame)
// extends it, and a session silent past the timeout is disconnected.
func (m *Manager) readLoop(ctx context.Context, s *Session) {
	defer m.Disconnect(ctx, s)

	s.conn.SetReadLimit(64 * 1024)
	if err := s.conn.SetReadDeadline(time.Now().Add(m.heartbeatTimeout)); err != nil {
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(m.heartbeatTimeout))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.logger.Debug("websocket read failed", "session_id", s.ID, "error", err)
			}
			return
		}
		if err := s.conn.SetReadDeadline(time.Now().Add(m.heartbeatTimeout)); err != nil {
			return
		}
		m.Dispatch(ctx, s, raw)
	}
}

// writePump drains the session's outbound queue onto the wire and pings
// idle sessions on the heartbeat interval. A write failure disconnects the
// session.
func (m *Manager) writePump(s *Session) {
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-s.send:
			if err := m.writeEvent(s, ev); err != nil {
				m.Disconnect(context.Background(), s)
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				m.Disconnect(context.Background(), s)
				return
			}

		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (m *Manager) writeEvent(s *Session, ev broadcast.Event) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(ev)
}
