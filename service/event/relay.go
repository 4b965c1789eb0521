package event

import (
	"context"

	"github.com/viant/facilitor/service/messaging"
)

// Relay is an observer that forwards every event into a queue.  The in-process
// fan-out is best-effort; relaying through a queue gives external consumers
// ack/nack delivery and, with a durable queue backend, survives restarts.
type Relay struct {
	queue messaging.Queue[Event[any]]
}

// NewRelay creates a relay over the supplied queue.
func NewRelay(queue messaging.Queue[Event[any]]) *Relay {
	return &Relay{queue: queue}
}

func (r *Relay) Name() string { return "relay" }

func (r *Relay) Interested(*Context) bool { return true }

func (r *Relay) Notify(event *Event[any]) error {
	return r.queue.Publish(context.Background(), event)
}
