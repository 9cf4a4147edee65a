// Package broadcast provides in-memory pub/sub fan-out of wallboard events.
//
// # Audiences
//
// Events are published to named audiences rather than individual sessions:
//
//   - AgentRoom(code): the sessions of one agent
//   - Dashboard: sessions that joined the dashboard view
//   - Global: every connected session
//
// A session may belong to any number of audiences; membership is managed by
// the session manager.
//
// # Delivery
//
// Delivery is best-effort and non-blocking: a subscriber whose channel is
// full has the event dropped and logged, never stalling the publisher or the
// other subscribers. Within one audience, events are delivered in publish
// order. The broadcaster keeps no history; components that need state on
// join (the dashboard snapshot) must push it explicitly.
//
// The broadcaster never closes subscriber channels. Sessions own their
// channels and outlive their subscriptions.
package broadcast
