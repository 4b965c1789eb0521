package event

import (
	"log"
	"sync"
)

// Observer receives execution transition events off the critical path.  An
// observer decides itself whether an event is relevant; returned errors are
// logged and otherwise ignored so that one observer can never affect the
// triggering transition or another observer.
type Observer interface {
	Name() string

	// Interested filters events before Notify; returning false skips the
	// observer without spawning work for it.
	Interested(context *Context) bool

	Notify(event *Event[any]) error
}

// Observers fans events out to registered observers, each on its own
// goroutine with panic recovery.  Delivery is unordered and best-effort:
// duplicate delivery must be tolerated by observers.
type Observers struct {
	mux       sync.RWMutex
	observers []Observer
	pending   sync.WaitGroup
}

// NewObservers creates an empty observer registry.
func NewObservers() *Observers {
	return &Observers{}
}

// Register adds an observer to the fan-out set.
func (o *Observers) Register(observer Observer) {
	if observer == nil {
		return
	}
	o.mux.Lock()
	o.observers = append(o.observers, observer)
	o.mux.Unlock()
}

// Notify dispatches the event to every interested observer asynchronously.
func (o *Observers) Notify(event *Event[any]) {
	if event == nil || event.Context == nil {
		return
	}
	o.mux.RLock()
	observers := make([]Observer, len(o.observers))
	copy(observers, o.observers)
	o.mux.RUnlock()

	for _, observer := range observers {
		if !observer.Interested(event.Context) {
			continue
		}
		o.pending.Add(1)
		go o.notifyOne(observer, event)
	}
}

func (o *Observers) notifyOne(observer Observer, event *Event[any]) {
	defer o.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("observer %s panicked on %s: %v", observer.Name(), event.Context.EventType, r)
		}
	}()
	if err := observer.Notify(event); err != nil {
		log.Printf("observer %s failed on %s: %v", observer.Name(), event.Context.EventType, err)
	}
}

// Wait blocks until all in-flight notifications completed; used on shutdown
// and in tests.
func (o *Observers) Wait() {
	o.pending.Wait()
}
