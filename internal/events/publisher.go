// Package events defines the broadcast capability consumed by the service
// layer. The concrete transport (the websocket hub in this deployment) is
// swappable without touching lock or version logic.
package events

import "context"

// Publisher fans a committed state change out to every connected client.
// Delivery is fire-and-forget: at-most-once, no acknowledgment, no replay.
// Implementations must not block the caller.
type Publisher interface {
	Publish(ctx context.Context, event string, payload interface{})
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event string, payload interface{}) {}

// CapturePublisher records published events in order, for tests.
type CapturePublisher struct {
	Events []CapturedEvent
}

// CapturedEvent is one recorded Publish call.
type CapturedEvent struct {
	Event   string
	Payload interface{}
}

func (p *CapturePublisher) Publish(ctx context.Context, event string, payload interface{}) {
	p.Events = append(p.Events, CapturedEvent{Event: event, Payload: payload})
}
