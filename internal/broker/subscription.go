package broker

import (
	"sync"

	"github.com/kilianp07/wildguard/core/model"
)

// Subscription is one subscriber's view of the broker.
type Subscription struct {
	name   string
	topics []string
	inbox  chan model.Message

	mu      sync.Mutex
	queue   []model.Message
	stopped bool
	wake    chan struct{}
}

func newSubscription(name string, topics []string, size int) *Subscription {
	uniq := make([]string, 0, len(topics))
	seen := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		uniq = append(uniq, t)
	}
	return &Subscription{
		name:   name,
		topics: uniq,
		inbox:  make(chan model.Message, size),
		wake:   make(chan struct{}, 1),
	}
}

// C returns the inbox. It is closed after Unsubscribe once queued messages
// are delivered, or immediately on broker Close.
func (s *Subscription) C() <-chan model.Message { return s.inbox }

// Name identifies the subscriber in logs and delivery errors.
func (s *Subscription) Name() string { return s.name }

// Topics returns the subscribed topics.
func (s *Subscription) Topics() []string { return append([]string(nil), s.topics...) }

// Pending returns the number of messages waiting for the pump.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Subscription) enqueue(msg model.Message) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, msg)
	s.mu.Unlock()
	s.signal()
}

// stop marks the subscription finished. With discard set, queued messages are
// dropped and their count returned.
func (s *Subscription) stop(discard bool) int {
	s.mu.Lock()
	s.stopped = true
	n := 0
	if discard {
		n = len(s.queue)
		s.queue = nil
	}
	s.mu.Unlock()
	s.signal()
	return n
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// next blocks until a message is queued. It returns false once the
// subscription is stopped and drained.
func (s *Subscription) next() (model.Message, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			msg := s.queue[0]
			s.queue[0] = model.Message{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return msg, true
		}
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return model.Message{}, false
		}
		<-s.wake
	}
}
