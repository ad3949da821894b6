package approval

import (
	"log/slog"
	"sync"
)

const defaultMailbox = 16

// Notifier fans approval lifecycle events out to any number of subscribers.
// Delivery is best-effort: each subscriber gets a bounded mailbox and events
// are dropped on overflow, so a slow or dead consumer can never block the
// registry.
type Notifier struct {
	log     *slog.Logger
	mailbox int

	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

type Subscriber struct {
	n  *Notifier
	ch chan Event

	closeOnce sync.Once
}

func NewNotifier(mailbox int, log *slog.Logger) *Notifier {
	if mailbox <= 0 {
		mailbox = defaultMailbox
	}
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		log:     log,
		mailbox: mailbox,
		subs:    make(map[*Subscriber]struct{}),
	}
}

func (n *Notifier) Subscribe() *Subscriber {
	s := &Subscriber{n: n, ch: make(chan Event, n.mailbox)}
	n.mu.Lock()
	n.subs[s] = struct{}{}
	n.mu.Unlock()
	return s
}

// Publish delivers e to every subscriber without blocking.
func (n *Notifier) Publish(e Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for s := range n.subs {
		select {
		case s.ch <- e:
		default:
			n.log.Warn("approval_event_dropped",
				"request_id", e.RequestID,
				"type", string(e.Type),
			)
		}
	}
}

func (n *Notifier) SubscriberCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Close detaches the subscriber and closes its event channel.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		s.n.mu.Lock()
		delete(s.n.subs, s)
		close(s.ch)
		s.n.mu.Unlock()
	})
}
