package api

import (
	"testing"
	"time"
)

func TestNotifierWake(t *testing.T) {
	n := NewNotifier()

	ch, cancel := n.Subscribe("s1")
	defer cancel()

	n.Wake("s1")
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken")
	}
}

func TestNotifierWakeIsPerSession(t *testing.T) {
	n := NewNotifier()

	ch, cancel := n.Subscribe("s1")
	defer cancel()

	n.Wake("s2")
	select {
	case <-ch:
		t.Fatal("waiter woken for a different session")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotifierWakeBeforeReceive(t *testing.T) {
	n := NewNotifier()

	ch, cancel := n.Subscribe("s1")
	defer cancel()

	// A wake sent while the waiter is busy is retained by the buffer, and
	// repeated wakes never block.
	n.Wake("s1")
	n.Wake("s1")

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("buffered wake lost")
	}
}

func TestNotifierCancel(t *testing.T) {
	n := NewNotifier()

	_, cancel := n.Subscribe("s1")
	cancel()

	// Wake after cancel must not panic or block.
	n.Wake("s1")
}

func TestNotifierMultipleWaiters(t *testing.T) {
	n := NewNotifier()

	ch1, cancel1 := n.Subscribe("s1")
	defer cancel1()
	ch2, cancel2 := n.Subscribe("s1")
	defer cancel2()

	n.Wake("s1")
	for _, ch := range []<-chan struct{}{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("a waiter was not woken")
		}
	}
}
