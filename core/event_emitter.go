package listening

import (
	"sync"

	"github.com/koscakluka/justplayit/core/events"
)

const defaultSubscriptionBuffer = 32

// eventEmitter fans events out to subscribers without ever blocking the
// emitter; a subscriber that falls behind loses events.
type eventEmitter struct {
	mu          sync.Mutex
	nextID      int
	subscribers map[int]chan events.Event
	closed      bool
}

func newEventEmitter() *eventEmitter {
	return &eventEmitter{subscribers: map[int]chan events.Event{}}
}

func (e *eventEmitter) subscribe(buffer int) (<-chan events.Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}
	ch := make(chan events.Event, buffer)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		close(ch)
		return ch, func() {}
	}

	id := e.nextID
	e.nextID++
	e.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if sub, ok := e.subscribers[id]; ok {
				delete(e.subscribers, id)
				close(sub)
			}
		})
	}
}

func (e *eventEmitter) emit(event events.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, sub := range e.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

func (e *eventEmitter) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for id, sub := range e.subscribers {
		delete(e.subscribers, id)
		close(sub)
	}
}
