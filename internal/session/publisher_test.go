package session

import (
	"reflect"
	"testing"
)

func TestPublisher(t *testing.T) {
	var p Publisher
	var calls []string

	a := p.Subscribe(ObserverFunc(func() { calls = append(calls, "a") }))
	p.Subscribe(ObserverFunc(func() { calls = append(calls, "b") }))
	if p.Len() != 2 {
		t.Fatalf("len = %d, want 2", p.Len())
	}

	p.Publish()
	if !reflect.DeepEqual(calls, []string{"a", "b"}) {
		t.Fatalf("calls = %v", calls)
	}

	if !p.Unsubscribe(a) {
		t.Fatalf("expected unsubscribe to remove observer")
	}
	if p.Unsubscribe(a) {
		t.Fatalf("second unsubscribe should report false")
	}

	calls = nil
	p.Publish()
	if !reflect.DeepEqual(calls, []string{"b"}) {
		t.Fatalf("calls after unsubscribe = %v", calls)
	}
}

func TestPublisherNoSubscribers(t *testing.T) {
	var p Publisher
	p.Publish()
	if p.Len() != 0 {
		t.Fatalf("len = %d", p.Len())
	}
}

func TestPublisherUnsubscribeDuringPublish(t *testing.T) {
	var p Publisher
	var id Subscription
	n := 0
	id = p.Subscribe(ObserverFunc(func() {
		n++
		p.Unsubscribe(id)
	}))

	p.Publish()
	p.Publish()
	if n != 1 {
		t.Fatalf("observer called %d times, want 1", n)
	}
}
