// Package event carries node lifecycle notifications over a token-scoped
// publish/subscribe bus. Publication is best-effort: a missing or slow
// subscriber never blocks nor fails the run being observed.
package event

import (
	"sync"
	"time"
)

// Transition is a node lifecycle state change.
type Transition string

const (
	TransitionStarted   Transition = "started"
	TransitionSucceeded Transition = "succeeded"
	TransitionFailed    Transition = "failed"
	TransitionSkipped   Transition = "skipped"
)

// Event is one node-state transition, tagged with the token of the run that
// emitted it.
type Event struct {
	Token      string
	Node       string
	Transition Transition
	Message    string
	Timestamp  time.Time
}

// Publisher is a run-scoped handle used by execution backends to emit
// lifecycle events. Implementations must never block.
type Publisher interface {
	Publish(node string, transition Transition, message string)
}

// NopPublisher satisfies runs with no subscriber.
type NopPublisher struct{}

func (NopPublisher) Publish(string, Transition, string) {}

// subscriberBuffer bounds the per-subscriber queue; events overflowing a slow
// subscriber are dropped rather than back-pressuring execution.
const subscriberBuffer = 64

// Bus routes events to subscribers by run token. Runs using distinct tokens
// are fully isolated from each other; events published before a subscription
// are not buffered.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan Event
}

func NewBus() *Bus {
	return &Bus{subs: map[string]map[int]chan Event{}}
}

// Subscribe registers interest in a token. It returns the event stream and a
// cancel func that closes the stream and drops the registration.
func (b *Bus) Subscribe(token string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	events := make(chan Event, subscriberBuffer)
	if b.subs[token] == nil {
		b.subs[token] = map[int]chan Event{}
	}
	b.subs[token][id] = events

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if sub, ok := b.subs[token][id]; ok {
			delete(b.subs[token], id)
			close(sub)
		}
	}

	return events, cancel
}

// Publisher returns a handle publishing on this bus under the given token.
func (b *Bus) Publisher(token string) Publisher {
	return &busPublisher{bus: b, token: token}
}

func (b *Bus) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs[e.Token] {
		select {
		case sub <- e:
		default: // subscriber too slow, drop
		}
	}
}

type busPublisher struct {
	bus   *Bus
	token string
}

func (p *busPublisher) Publish(node string, transition Transition, message string) {
	p.bus.publish(Event{
		Token:      p.token,
		Node:       node,
		Transition: transition,
		Message:    message,
		Timestamp:  time.Now(),
	})
}
