package event

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingObserver struct {
	name       string
	interested bool
	err        error
	panicWith  interface{}

	mux    sync.Mutex
	events []string
}

func (r *recordingObserver) Name() string { return r.name }

func (r *recordingObserver) Interested(context *Context) bool { return r.interested }

func (r *recordingObserver) Notify(event *Event[any]) error {
	r.mux.Lock()
	r.events = append(r.events, event.Context.EventType)
	r.mux.Unlock()
	if r.panicWith != nil {
		panic(r.panicWith)
	}
	return r.err
}

func (r *recordingObserver) seen() []string {
	r.mux.Lock()
	defer r.mux.Unlock()
	return append([]string(nil), r.events...)
}

func TestObservers_Notify(t *testing.T) {
	observers := NewObservers()
	interested := &recordingObserver{name: "interested", interested: true}
	bored := &recordingObserver{name: "bored"}
	failing := &recordingObserver{name: "failing", interested: true, err: errors.New("sink down")}
	panicking := &recordingObserver{name: "panicking", interested: true, panicWith: "boom"}
	observers.Register(interested)
	observers.Register(bored)
	observers.Register(failing)
	observers.Register(panicking)
	observers.Register(nil)

	observers.Notify(NewEvent[any](&Context{EventType: TypeNodeStart, PlanExecutionID: "p1"}, nil))
	observers.Notify(NewEvent[any](&Context{EventType: TypeNodeStatusUpdate, PlanExecutionID: "p1"}, nil))
	observers.Wait()

	assert.ElementsMatch(t, []string{TypeNodeStart, TypeNodeStatusUpdate}, interested.seen())
	assert.Empty(t, bored.seen())
	// failures and panics stay isolated to their observer
	assert.Len(t, failing.seen(), 2)
	assert.Len(t, panicking.seen(), 2)
}

func TestObservers_NotifyNilEvent(t *testing.T) {
	observers := NewObservers()
	observer := &recordingObserver{name: "any", interested: true}
	observers.Register(observer)

	observers.Notify(nil)
	observers.Notify(&Event[any]{})
	observers.Wait()

	assert.Empty(t, observer.seen())
}
