// Package agent runs independent message-driven agents on top of the broker.
// Each agent drains a single inbox sequentially in broker order.
package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilianp07/wildguard/core/logger"
	"github.com/kilianp07/wildguard/core/model"
	"github.com/kilianp07/wildguard/core/monitoring"
	"github.com/kilianp07/wildguard/internal/broker"
)

// Agent is a component reacting to broker messages.
type Agent interface {
	Name() string
	Topics() []string
	Handle(ctx context.Context, msg model.Message) error
}

// Runner owns the goroutines of started agents.
type Runner struct {
	broker broker.Broker
	log    logger.Logger
	wg     sync.WaitGroup
}

// NewRunner creates a Runner publishing and subscribing on b.
func NewRunner(b broker.Broker, log logger.Logger) *Runner {
	return &Runner{broker: b, log: logger.OrNop(log)}
}

// Start subscribes a before returning, then handles its messages in a new
// goroutine until ctx is done or the broker closes the inbox.
func (r *Runner) Start(ctx context.Context, a Agent) {
	sub := r.broker.Subscribe(a.Name(), a.Topics()...)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.serve(ctx, sub, a)
	}()
}

// Wait blocks until every started agent returned.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) serve(ctx context.Context, sub *broker.Subscription, a Agent) {
	for {
		select {
		case <-ctx.Done():
			r.broker.Unsubscribe(sub)
			discarded := 0
			for range sub.C() {
				discarded++
			}
			if discarded > 0 {
				r.log.Debugf("%s stopped with %d unhandled messages", a.Name(), discarded)
			}
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			if err := r.handle(ctx, a, msg); err != nil {
				r.log.Errorf("%s: handle %s#%d: %v", a.Name(), msg.Topic, msg.Seq, err)
				monitoring.CaptureException(err, map[string]string{
					"agent":    a.Name(),
					"topic":    msg.Topic,
					"incident": msg.CorrelationID,
				})
			}
		}
	}
}

func (r *Runner) handle(ctx context.Context, a Agent, msg model.Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return a.Handle(ctx, msg)
}
