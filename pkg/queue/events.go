package queue

import (
	"fmt"
	"sync"
)

// EventName identifies a lifecycle event emitted by the engine.
type EventName string

const (
	EventTaskAdded     EventName = "taskAdded"
	EventTaskStarted   EventName = "taskStarted"
	EventTaskCompleted EventName = "taskCompleted"
	EventTaskFailed    EventName = "taskFailed"
	EventTaskRetried   EventName = "taskRetried"
	EventTaskRemoved   EventName = "taskRemoved"
	EventTaskStuck     EventName = "taskStuck"
)

// Event carries a lifecycle occurrence to subscribers. Err is only set for
// EventTaskFailed.
type Event struct {
	Name EventName
	Task *Task
	Err  error
}

// Listener receives emitted events. A panicking listener is recovered and
// logged; it never aborts emission to other subscribers nor corrupts
// engine state.
type Listener func(Event)

// EventEmitter is a synchronous, in-registration-order fan-out of
// lifecycle events. It uses a copy-on-write listener slice so a listener
// that re-subscribes during emission never observes a torn read and never
// blocks concurrent emission.
type EventEmitter struct {
	mu        sync.Mutex
	listeners map[EventName][]Listener
	onPanic   func(name EventName, r any)
}

// NewEventEmitter creates an empty EventEmitter.
func NewEventEmitter() *EventEmitter {
	return &EventEmitter{listeners: make(map[EventName][]Listener)}
}

// On registers listener for name. Order of registration is preserved for
// emission.
func (e *EventEmitter) On(name EventName, listener Listener) {
	if listener == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	existing := e.listeners[name]
	next := make([]Listener, len(existing)+1)
	copy(next, existing)
	next[len(existing)] = listener
	e.listeners[name] = next
}

// emit fans an event out synchronously to every listener registered for
// its name, in registration order. A listener panic is recovered so one
// bad subscriber never aborts delivery to the rest.
func (e *EventEmitter) emit(ev Event) {
	e.mu.Lock()
	listeners := e.listeners[ev.Name]
	e.mu.Unlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil && e.onPanic != nil {
					e.onPanic(ev.Name, r)
				}
			}()
			l(ev)
		}()
	}
}

func recoveredListenerError(name EventName, r any) error {
	return fmt.Errorf("event listener for %s panicked: %v", name, r)
}
