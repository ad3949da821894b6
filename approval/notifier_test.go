package approval

import (
	"strings"
	"testing"
	"time"

	"github.com/quailyquaily/taskwarden/risk"
)

func TestNotifierFanout(t *testing.T) {
	n := NewNotifier(4, nil)
	a := n.Subscribe()
	b := n.Subscribe()
	defer a.Close()
	defer b.Close()

	n.Publish(Event{Type: EventNewRequest, RequestID: "r1", RiskLevel: risk.LevelCritical})

	for _, sub := range []*Subscriber{a, b} {
		select {
		case e := <-sub.Events():
			if e.RequestID != "r1" || e.Type != EventNewRequest {
				t.Fatalf("unexpected event %+v", e)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestNotifierSlowSubscriberDrops(t *testing.T) {
	n := NewNotifier(2, nil)
	slow := n.Subscribe()
	defer slow.Close()

	// Publish past the mailbox size without consuming. Publish must not
	// block, and the overflow is dropped.
	for i := 0; i < 5; i++ {
		n.Publish(Event{Type: EventNewRequest, RequestID: "r"})
	}
	if got := len(slow.Events()); got != 2 {
		t.Fatalf("mailbox holds %d events, want 2", got)
	}
}

func TestNotifierSlowSubscriberDoesNotStarveOthers(t *testing.T) {
	n := NewNotifier(1, nil)
	slow := n.Subscribe()
	fast := n.Subscribe()
	defer slow.Close()
	defer fast.Close()

	n.Publish(Event{RequestID: "first"})
	// slow's mailbox is now full; fast keeps consuming.
	select {
	case <-fast.Events():
	case <-time.After(time.Second):
		t.Fatal("fast subscriber starved")
	}

	n.Publish(Event{RequestID: "second"})
	select {
	case e := <-fast.Events():
		if e.RequestID != "second" {
			t.Fatalf("got %q, want second", e.RequestID)
		}
	case <-time.After(time.Second):
		t.Fatal("fast subscriber starved by slow one")
	}
}

func TestSubscriberClose(t *testing.T) {
	n := NewNotifier(4, nil)
	s := n.Subscribe()
	if got := n.SubscriberCount(); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}

	s.Close()
	s.Close() // idempotent
	if got := n.SubscriberCount(); got != 0 {
		t.Fatalf("count after close = %d, want 0", got)
	}

	// Publishing after close must not panic.
	n.Publish(Event{RequestID: "r"})

	if _, ok := <-s.Events(); ok {
		t.Fatal("expected closed event channel")
	}
}

func TestRegistryEmitsLifecycleEvents(t *testing.T) {
	n := NewNotifier(8, nil)
	sub := n.Subscribe()
	defer sub.Close()

	r := newTestRegistry(t, Config{SweepInterval: time.Hour}, WithNotifier(n))
	req := r.Create(
		"complete checkout with credit card 4111-1111-1111-1111",
		testAssessment(risk.LevelCritical, 0.95),
		time.Minute,
	)

	var created Event
	select {
	case created = <-sub.Events():
	case <-time.After(time.Second):
		t.Fatal("no new_request event")
	}
	if created.Type != EventNewRequest || created.RequestID != req.ID {
		t.Fatalf("unexpected event %+v", created)
	}
	if created.RiskLevel != risk.LevelCritical {
		t.Fatalf("risk_level = %s, want critical", created.RiskLevel)
	}
	if strings.Contains(created.Summary, "4111") {
		t.Fatalf("card number leaked into event summary: %q", created.Summary)
	}

	if _, _, err := r.Resolve(req.ID, false, ""); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	select {
	case e := <-sub.Events():
		if e.Type != EventStatusChanged || e.Status != StatusDenied {
			t.Fatalf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no status_changed event")
	}
}
