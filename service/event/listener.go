package event

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/viant/facilitor/service/messaging"
)

// Listener consumes relayed events off a queue and invokes the handler for
// each.  A message is acked once the handler returns; a handler panic nacks
// it so the queue can redeliver.
type Listener struct {
	queue   messaging.Queue[Event[any]]
	handler func(*Event[any])
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewListener creates a stopped listener; call Start to begin consumption.
func NewListener(queue messaging.Queue[Event[any]], handler func(*Event[any])) *Listener {
	return &Listener{queue: queue, handler: handler, done: make(chan struct{})}
}

// Start launches the consumption loop.
func (l *Listener) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	go l.run(ctx)
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)
	for {
		message, err := l.queue.Consume(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("event listener: consume failed: %v", err)
		}
		if err != nil || message == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}
		l.dispatch(message)
	}
}

func (l *Listener) dispatch(message messaging.Message[Event[any]]) {
	defer func() {
		if r := recover(); r != nil {
			_ = message.Nack(fmt.Errorf("event handler panicked: %v", r))
		}
	}()
	l.handler(message.T())
	_ = message.Ack()
}

// Stop cancels consumption and waits for the loop to exit.
func (l *Listener) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
}
