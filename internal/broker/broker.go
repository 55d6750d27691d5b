// Package broker implements the in-process topic publish/subscribe bus that
// every agent communicates through.
//
// All publishes are serialised under a single lock and stamped with a global
// sequence number, so every subscriber observes the same relative order.
// Each subscription owns an ordered pending queue drained by its own pump
// goroutine: publishers never block on slow subscribers. A subscriber whose
// inbox stays full is retried with exponential backoff and the message is
// dropped after the configured number of attempts, with a DeliveryError
// reported on Errors().
package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/kilianp07/wildguard/core/logger"
	"github.com/kilianp07/wildguard/core/model"
)

// ErrClosed is returned when publishing on a closed broker.
var ErrClosed = errors.New("broker closed")

// ErrInboxFull is the cause recorded when a subscriber never drained its inbox.
var ErrInboxFull = errors.New("subscriber inbox full")

// Broker is the publish/subscribe contract agents depend on.
type Broker interface {
	Publish(topic string, msg model.Message) error
	Subscribe(name string, topics ...string) *Subscription
	Unsubscribe(sub *Subscription)
	Errors() <-chan DeliveryError
	Close()
}

// DeliveryError reports a message dropped for one subscriber.
type DeliveryError struct {
	Subscriber string
	Topic      string
	Seq        uint64
	Attempts   int
	Err        error
}

func (e DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s#%d to %s after %d attempts: %v", e.Topic, e.Seq, e.Subscriber, e.Attempts, e.Err)
}

func (e DeliveryError) Unwrap() error { return e.Err }

// Config tunes inbox sizes and delivery retries.
type Config struct {
	InboxSize      int `json:"inbox_size"`
	MaxRetries     int `json:"max_retries"`
	RetryBackoffMS int `json:"retry_backoff_ms"`
	MaxBackoffMS   int `json:"max_backoff_ms"`
	ErrorBuffer    int `json:"error_buffer"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.InboxSize <= 0 {
		c.InboxSize = 256
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.RetryBackoffMS <= 0 {
		c.RetryBackoffMS = 20
	}
	if c.MaxBackoffMS <= 0 {
		c.MaxBackoffMS = 1000
	}
	if c.ErrorBuffer <= 0 {
		c.ErrorBuffer = 64
	}
}

// Bus is the default Broker implementation.
type Bus struct {
	cfg Config
	log logger.Logger

	mu     sync.Mutex
	seq    uint64
	topics map[string][]*Subscription
	subs   map[*Subscription]struct{}
	closed bool

	errs   chan DeliveryError
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Bus. A nil logger discards output.
func New(cfg Config, log logger.Logger) *Bus {
	cfg.SetDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		cfg:    cfg,
		log:    logger.OrNop(log),
		topics: make(map[string][]*Subscription),
		subs:   make(map[*Subscription]struct{}),
		errs:   make(chan DeliveryError, cfg.ErrorBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ResumeAfter makes the next published message carry seq+1. It never moves
// the sequence backwards.
func (b *Bus) ResumeAfter(seq uint64) {
	b.mu.Lock()
	if seq > b.seq {
		b.seq = seq
	}
	b.mu.Unlock()
}

// Publish stamps msg with topic and the next sequence number and enqueues it
// for every current subscriber of topic. It never blocks on subscribers.
func (b *Bus) Publish(topic string, msg model.Message) error {
	if topic == "" || topic == model.TopicAll {
		return fmt.Errorf("publish: invalid topic %q", topic)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.seq++
	msg.Seq = b.seq
	msg.Topic = topic
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	seen := make(map[*Subscription]struct{}, len(b.topics[topic]))
	for _, list := range [][]*Subscription{b.topics[topic], b.topics[model.TopicAll]} {
		for _, s := range list {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			s.enqueue(msg)
		}
	}
	return nil
}

// Subscribe registers a subscription on topics. Only messages published after
// the call are delivered. On a closed broker the inbox is returned closed.
func (b *Bus) Subscribe(name string, topics ...string) *Subscription {
	s := newSubscription(name, topics, b.cfg.InboxSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.inbox)
		return s
	}
	for _, t := range s.topics {
		b.topics[t] = append(b.topics[t], s)
	}
	b.subs[s] = struct{}{}
	b.wg.Add(1)
	go b.pump(s)
	return s
}

// Unsubscribe stops routing new messages to sub. Messages already queued are
// still delivered before its inbox closes.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	b.detach(sub)
	sub.stop(false)
}

// Errors exposes delivery failures. The channel is closed by Close.
func (b *Bus) Errors() <-chan DeliveryError { return b.errs }

// Close discards undelivered messages, closes every inbox and waits for the
// pumps to exit.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for s := range b.subs {
		b.detach(s)
		if n := s.stop(true); n > 0 {
			b.log.Warnf("subscriber %s closed with %d undelivered messages", s.name, n)
		}
	}
	b.mu.Unlock()
	b.cancel()
	b.wg.Wait()
	close(b.errs)
}

// detach removes s from the routing tables. Callers hold b.mu.
func (b *Bus) detach(s *Subscription) {
	delete(b.subs, s)
	for _, t := range s.topics {
		list := b.topics[t]
		for i, cur := range list {
			if cur == s {
				b.topics[t] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(b.topics[t]) == 0 {
			delete(b.topics, t)
		}
	}
}

func (b *Bus) pump(s *Subscription) {
	defer b.wg.Done()
	defer close(s.inbox)
	for {
		msg, ok := s.next()
		if !ok {
			return
		}
		b.deliver(s, msg)
	}
}

// deliver hands msg to the inbox, retrying with exponential backoff while it
// is full.
func (b *Bus) deliver(s *Subscription, msg model.Message) {
	select {
	case s.inbox <- msg:
		return
	default:
	}
	attempts := 1
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = time.Duration(b.cfg.RetryBackoffMS) * time.Millisecond
	exp.MaxInterval = time.Duration(b.cfg.MaxBackoffMS) * time.Millisecond
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(b.cfg.MaxRetries)), b.ctx)
	err := backoff.Retry(func() error {
		attempts++
		select {
		case s.inbox <- msg:
			return nil
		default:
			return ErrInboxFull
		}
	}, policy)
	if err == nil {
		return
	}
	if b.ctx.Err() != nil {
		return
	}
	derr := DeliveryError{Subscriber: s.name, Topic: msg.Topic, Seq: msg.Seq, Attempts: attempts, Err: err}
	b.log.Errorf("%v", derr)
	select {
	case b.errs <- derr:
	default:
		b.log.Warnf("delivery error channel full, dropping report for %s#%d", msg.Topic, msg.Seq)
	}
}
