package engine

import (
	"sync"
	"time"
)

const eventBufferSize = 32

// Event is a playback-state notification emitted to UI/REST collaborators
// on every transition and at the configured interval during playback.
type Event struct {
	State    State
	TrackID  string
	Position time.Duration
	Volume   float64
	Err      error
}

// Subscription delivers events to one collaborator.
type Subscription struct {
	C <-chan Event

	ch   chan Event
	once sync.Once
}

func newSubscription() *Subscription {
	s := &Subscription{ch: make(chan Event, eventBufferSize)}
	s.C = s.ch
	return s
}

// send delivers an event without blocking; a slow subscriber drops it.
func (s *Subscription) send(e Event) {
	select {
	case s.ch <- e:
	default:
	}
}

// broadcaster fans events out to all subscriptions. publish calls are
// serialized, so each subscriber sees transitions in the order they
// occurred.
type broadcaster struct {
	mu   sync.Mutex
	subs []*Subscription
}

func (b *broadcaster) subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := newSubscription()
	b.subs = append(b.subs, s)
	return s
}

func (b *broadcaster) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			sub.once.Do(func() { close(sub.ch) })
			return
		}
	}
}

func (b *broadcaster) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		s.send(e)
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		s.once.Do(func() { close(s.ch) })
	}
	b.subs = nil
}
