// Package notify is the record-created notification port. Delivery is
// fire-and-forget: the engine never blocks on or depends on a sink.
package notify

import "context"

// Event is the payload published when a record is created.
type Event struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Emotion string `json:"emotion"`
	Type    string `json:"type"`
}

// Notifier delivers record-created events to an external relay.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
	Close() error
}

// Nop is a Notifier that discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
func (Nop) Close() error                        { return nil }
