// Package event mirrors the subscription idiom of the teacher's
// github.com/tos-network/gtos/event package (event.Feed / event.Subscription,
// see les/api_backend.go's SubscribeChainHeadEvent and friends). Unlike the
// teacher's reflect-based Feed — a pre-generics design needed because it had
// to multiplex arbitrary channel types through one Feed value — this port
// uses a type parameter, since every UserState only ever feeds one event
// type (UpdateEvent) and the module already targets a generics-capable Go
// version.
package event

import "sync"

// Subscription represents a stream of events. The channel returned by Err
// is closed when the subscription ends, whether by Unsubscribe or by the
// feed's Close; no error value is ever sent on it.
type Subscription interface {
	Unsubscribe()
	Err() <-chan error
}

type subscription[T any] struct {
	feed   *Feed[T]
	ch     chan<- T
	err    chan error
	once   sync.Once
}

func (s *subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.feed.remove(s)
		close(s.err)
	})
}

func (s *subscription[T]) Err() <-chan error { return s.err }

// Feed implements one-to-many event fan-out. Send never blocks on a slow
// subscriber for longer than necessary: unsubscribing listeners must not
// stall the block loop, so Send drops the event for any subscriber whose
// channel is full rather than waiting.
type Feed[T any] struct {
	mu     sync.Mutex
	subs   map[*subscription[T]]struct{}
	closed bool
}

func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{subs: make(map[*subscription[T]]struct{})}
}

// Subscribe registers ch to receive future Send values. The returned
// Subscription must be Unsubscribed to release resources.
func (f *Feed[T]) Subscribe(ch chan<- T) Subscription {
	sub := &subscription[T]{feed: f, ch: ch, err: make(chan error, 1)}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[sub] = struct{}{}
	return sub
}

func (f *Feed[T]) remove(sub *subscription[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, sub)
}

// Send delivers ev to every current subscriber, non-blockingly.
func (f *Feed[T]) Send(ev T) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for sub := range f.subs {
		select {
		case sub.ch <- ev:
			n++
		default:
		}
	}
	return n
}

// Close unsubscribes every listener; a later Unsubscribe on one of their
// subscriptions is a no-op.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for sub := range f.subs {
		sub.once.Do(func() { close(sub.err) })
	}
	f.subs = make(map[*subscription[T]]struct{})
}
