// Package broadcast defines the port for pushing task lifecycle events to
// connected clients.
package broadcast

import "context"

// Broadcaster fans an event out to every connected client.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// Nop is a Broadcaster that discards everything.
type Nop struct{}

// BroadcastEvent does nothing.
func (Nop) BroadcastEvent(context.Context, string, any) {}
