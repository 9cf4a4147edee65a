// ABOUTME: Tests for the audience fan-out broadcaster
// ABOUTME: Covers subscribe, publish ordering, audience isolation, exclusion, and teardown

package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcaster_SingleSubscriberReceivesEvent(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch := make(chan Event, subscriberBufferSize)
	b.Subscribe(AgentRoom("A001"), "sess-1", ch)

	b.Publish(AgentRoom("A001"), Event{Event: EventStatusChanged})

	ev := receive(t, ch)
	assert.Equal(t, EventStatusChanged, ev.Event)
}

func TestBroadcaster_AllSubscribersReceiveSameEvent(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	chans := make([]chan Event, 3)
	for i := range chans {
		chans[i] = make(chan Event, subscriberBufferSize)
		b.Subscribe(Dashboard, "sess-"+string(rune('a'+i)), chans[i])
	}

	b.Publish(Dashboard, Event{Event: EventDashboardUpdate})

	for i, ch := range chans {
		ev := receive(t, ch)
		assert.Equal(t, EventDashboardUpdate, ev.Event, "subscriber %d got wrong event", i)
	}
}

func TestBroadcaster_AudiencesAreIsolated(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	chA := make(chan Event, subscriberBufferSize)
	chB := make(chan Event, subscriberBufferSize)
	b.Subscribe(AgentRoom("A001"), "sess-1", chA)
	b.Subscribe(AgentRoom("A002"), "sess-2", chB)

	b.Publish(AgentRoom("A001"), Event{Event: EventNewMessage})

	receive(t, chA)
	assertNoEvent(t, chB)
}

func TestBroadcaster_PerAudienceOrdering(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch := make(chan Event, subscriberBufferSize)
	b.Subscribe(AgentRoom("A001"), "sess-1", ch)

	for i := range 10 {
		b.Publish(AgentRoom("A001"), Event{Event: EventStatusChanged, Data: i})
	}

	for i := range 10 {
		ev := receive(t, ch)
		assert.Equal(t, i, ev.Data, "events must arrive in publish order")
	}
}

func TestBroadcaster_PublishExceptSkipsOrigin(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	chSelf := make(chan Event, subscriberBufferSize)
	chOther := make(chan Event, subscriberBufferSize)
	b.Subscribe(Global, "sess-self", chSelf)
	b.Subscribe(Global, "sess-other", chOther)

	b.PublishExcept(Global, Event{Event: EventAgentOnline}, "sess-self")

	receive(t, chOther)
	assertNoEvent(t, chSelf)
}

func TestBroadcaster_SlowSubscriberDropsWithoutBlocking(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch := make(chan Event, 1)
	b.Subscribe(Dashboard, "sess-1", ch)

	b.Publish(Dashboard, Event{Event: EventDashboardUpdate, Data: "first"})
	b.Publish(Dashboard, Event{Event: EventDashboardUpdate, Data: "dropped"})

	ev := receive(t, ch)
	assert.Equal(t, "first", ev.Data)
	assertNoEvent(t, ch)
}

func TestBroadcaster_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch := make(chan Event, subscriberBufferSize)
	b.Subscribe(Dashboard, "sess-1", ch)
	b.Unsubscribe(Dashboard, "sess-1")

	b.Publish(Dashboard, Event{Event: EventDashboardUpdate})
	assertNoEvent(t, ch)
}

func TestBroadcaster_DropSessionRemovesFromAllAudiences(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch := make(chan Event, subscriberBufferSize)
	b.Subscribe(Global, "sess-1", ch)
	b.Subscribe(Dashboard, "sess-1", ch)
	b.Subscribe(AgentRoom("A001"), "sess-1", ch)

	b.DropSession("sess-1")

	b.Publish(Global, Event{Event: EventAgentOffline})
	b.Publish(Dashboard, Event{Event: EventDashboardUpdate})
	b.Publish(AgentRoom("A001"), Event{Event: EventNewMessage})
	assertNoEvent(t, ch)

	assert.Empty(t, b.Members(Global))
	assert.Empty(t, b.Members(Dashboard))
}

func TestBroadcaster_Members(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	chA := make(chan Event, 1)
	chB := make(chan Event, 1)
	b.Subscribe(Dashboard, "sess-b", chB)
	b.Subscribe(Dashboard, "sess-a", chA)

	require.Equal(t, []string{"sess-a", "sess-b"}, b.Members(Dashboard))
}

func TestBroadcaster_PublishToEmptyAudienceIsNoOp(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	// Must not panic or create audience state.
	b.Publish(AgentRoom("A999"), Event{Event: EventNewMessage})
	assert.Empty(t, b.Members(AgentRoom("A999")))
}
