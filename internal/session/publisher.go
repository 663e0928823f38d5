package session

import "sync"

// Observer is notified that something changed on a session. The notification
// carries no payload; observers read current values through the session's
// accessors. Notifications may arrive concurrently from the worker and from
// command callers, so implementations must be safe for concurrent use and
// must not block for long.
type Observer interface {
	Changed()
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func()

func (f ObserverFunc) Changed() { f() }

// Subscription identifies a registered observer.
type Subscription uint64

type subscriber struct {
	id Subscription
	o  Observer
}

// Publisher is a registry of observers. The zero value is ready to use.
type Publisher struct {
	mu   sync.Mutex
	next Subscription
	subs []subscriber
}

// Subscribe registers o and returns a handle for Unsubscribe.
func (p *Publisher) Subscribe(o Observer) Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	p.subs = append(p.subs, subscriber{id: p.next, o: o})
	return p.next
}

// Unsubscribe removes the observer registered under id. It reports whether
// anything was removed.
func (p *Publisher) Unsubscribe(id Subscription) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.subs {
		if s.id == id {
			p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered observers.
func (p *Publisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Publish notifies every observer registered at the time of the call, in
// subscription order. Observers run outside the registry lock, so they may
// subscribe, unsubscribe or call back into the session.
func (p *Publisher) Publish() {
	p.mu.Lock()
	snapshot := make([]Observer, len(p.subs))
	for i, s := range p.subs {
		snapshot[i] = s.o
	}
	p.mu.Unlock()

	for _, o := range snapshot {
		o.Changed()
	}
}
