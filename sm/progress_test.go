package sm

import "testing"

func TestEpoller_RegisterWaitDeregister(t *testing.T) {
	e, err := newEpoller()
	if err != nil {
		t.Skipf("epoll unavailable: %v", err)
	}
	defer e.close()

	n, err := newEventfdNotify()
	if err != nil {
		t.Skipf("eventfd unavailable: %v", err)
	}
	defer n.Close()

	peer := &Addr{pid: 1, id: 2}
	if err := e.register(int(n.Fd()), tagNotify, peer); err != nil {
		t.Fatalf("register: %v", err)
	}

	if events, _ := e.wait(0); len(events) != 0 {
		t.Fatalf("expected no events before Set, got %v", events)
	}

	if err := n.Set(); err != nil {
		t.Fatalf("Set: %v", err)
	}

	events, err := e.wait(100)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one ready event, got %d", len(events))
	}
	got := events[0]
	if got.fd != int(n.Fd()) || got.tag != tagNotify || got.addr != peer || got.error {
		t.Fatalf("unexpected event: %+v", got)
	}

	e.deregister(int(n.Fd()))
	n.Drain()
	n.Set()
	if events, _ := e.wait(0); len(events) != 0 {
		t.Fatalf("expected no events after deregister, got %v", events)
	}
}

func TestEpoller_WaitTimeoutWithNoFiredEvents(t *testing.T) {
	e, err := newEpoller()
	if err != nil {
		t.Skipf("epoll unavailable: %v", err)
	}
	defer e.close()

	events, err := e.wait(10)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events on an empty poll set, got %v", events)
	}
}
