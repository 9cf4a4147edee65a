// ABOUTME: In-memory fan-out broadcaster delivering events to addressable audiences.
// ABOUTME: Ordering is per audience; delivery is at-most-once per connected subscriber.

package broadcast

import (
	"log/slog"
	"sort"
	"sync"
)

const (
	// subscriberBufferSize is the channel buffer recommended for each
	// subscriber. Slow subscribers past this depth drop events.
	subscriberBufferSize = 64
)

// Audience is an addressable subscriber set: one agent's room, the
// dashboard room, or everyone.
type Audience string

const (
	// Dashboard is the supervisor dashboard room.
	Dashboard Audience = "dashboard"
	// Global addresses every connected session.
	Global Audience = "global"
)

// AgentRoom returns the audience for a single agent's room.
func AgentRoom(agentCode string) Audience {
	return Audience("agent-" + agentCode)
}

// Broadcaster provides in-memory pub/sub keyed by audience. It is stateless
// about history: a late joiner receives nothing until the next publish, so
// join handlers that need current state must push a snapshot themselves.
type Broadcaster struct {
	mu        sync.Mutex
	audiences map[Audience]map[string]chan<- Event // audience -> sessionID -> ch
	logger    *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		audiences: make(map[Audience]map[string]chan<- Event),
		logger:    logger.With("component", "broadcaster"),
	}
}

// Subscribe adds a session's channel to an audience. The same channel may
// be subscribed to several audiences; the broadcaster never closes it.
func (b *Broadcaster) Subscribe(audience Audience, sessionID string, ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.audiences[audience]; !ok {
		b.audiences[audience] = make(map[string]chan<- Event)
	}
	b.audiences[audience][sessionID] = ch

	b.logger.Debug("subscriber added", "audience", audience, "session_id", sessionID)
}

// Unsubscribe removes a session from one audience.
func (b *Broadcaster) Unsubscribe(audience Audience, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.audiences[audience]
	if !ok {
		return
	}
	if _, exists := subs[sessionID]; !exists {
		return
	}
	delete(subs, sessionID)
	if len(subs) == 0 {
		delete(b.audiences, audience)
	}

	b.logger.Debug("subscriber removed", "audience", audience, "session_id", sessionID)
}

// DropSession removes a session from every audience. Used on teardown.
func (b *Broadcaster) DropSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for audience, subs := range b.audiences {
		if _, ok := subs[sessionID]; !ok {
			continue
		}
		delete(subs, sessionID)
		if len(subs) == 0 {
			delete(b.audiences, audience)
		}
	}
}

// Publish sends an event to every subscriber of the given audience.
func (b *Broadcaster) Publish(audience Audience, event Event) {
	b.PublishExcept(audience, event, "")
}

// PublishExcept sends an event to every subscriber of the audience except
// the named session (used to avoid echoing a change back to its origin).
//
// The lock is held for the whole fan-out: sends are non-blocking, so this
// is cheap, and it serializes publishes so every subscriber of an audience
// observes its events in publish order. Subscribers whose channels are full
// simply miss the event; there is no redelivery.
func (b *Broadcaster) PublishExcept(audience Audience, event Event, excludeSessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.audiences[audience]
	if !ok || len(subs) == 0 {
		return
	}

	for sessionID, ch := range subs {
		if excludeSessionID != "" && sessionID == excludeSessionID {
			continue
		}
		select {
		case ch <- event:
		default:
			b.logger.Debug("dropped event for slow subscriber",
				"audience", audience,
				"session_id", sessionID,
				"event", event.Event)
		}
	}
}

// Members returns the session IDs subscribed to an audience, sorted.
func (b *Broadcaster) Members(audience Audience) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.audiences[audience]
	members := make([]string, 0, len(subs))
	for sessionID := range subs {
		members = append(members, sessionID)
	}
	sort.Strings(members)
	return members
}

// Close drops all subscriptions. Subscriber channels are owned by their
// sessions and are not closed here.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.audiences)
	b.logger.Debug("broadcaster closed")
}
