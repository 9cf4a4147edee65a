// ABOUTME: Represents one live client connection and its outbound event queue.
// ABOUTME: Lifecycle is Connecting -> Active (after login) -> Closed, torn down exactly once.

package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wallboard/wallboard/internal/broadcast"
)

// sendBufferSize is the outbound queue depth per session. Events beyond
// this depth are dropped rather than blocking a publisher.
const sendBufferSize = 64

// Session is one live connected client. The zero agent identity means the
// session is still in the Connecting state (no login yet).
type Session struct {
	ID       string
	JoinedAt time.Time

	mu        sync.Mutex
	agentCode string
	agentName string

	conn *websocket.Conn // nil for sessions driven directly in tests
	send chan broadcast.Event
	once sync.Once
	done chan struct{}
}

func newSession(conn *websocket.Conn) *Session {
	return &Session{
		ID:       uuid.New().String(),
		JoinedAt: time.Now(),
		conn:     conn,
		send:     make(chan broadcast.Event, sendBufferSize),
		done:     make(chan struct{}),
	}
}

// Enqueue queues an event for delivery to this session. Non-blocking: if
// the session's queue is full the event is dropped and false is returned.
func (s *Session) Enqueue(ev broadcast.Event) bool {
	select {
	case s.send <- ev:
		return true
	default:
		return false
	}
}

// Events exposes the outbound queue for reading. The write pump is the
// only production consumer; tests read it directly.
func (s *Session) Events() <-chan broadcast.Event {
	return s.send
}

// AgentCode returns the agent identity bound at login, or "" before login.
func (s *Session) AgentCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentCode
}

// AgentName returns the display name bound at login.
func (s *Session) AgentName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentName
}

func (s *Session) setIdentity(code, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agentCode = code
	s.agentName = name
}

// closeTransport marks the session Closed and releases its transport.
// Called only from the manager's once-guarded teardown.
func (s *Session) closeTransport() {
	close(s.done)
	if s.conn != nil {
		s.conn.Close()
	}
}

// Done is closed when the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
