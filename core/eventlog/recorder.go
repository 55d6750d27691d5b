package eventlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/wildguard/core/logger"
	"github.com/kilianp07/wildguard/core/model"
)

// Recorder is the agent writing every broker message to a store and
// forwarding it to optional exporters.
type Recorder struct {
	store Store
	sinks []Sink
	log   logger.Logger
}

// NewRecorder creates a recorder backed by store.
func NewRecorder(store Store, log logger.Logger, sinks ...Sink) *Recorder {
	return &Recorder{store: store, sinks: sinks, log: logger.OrNop(log)}
}

func (r *Recorder) Name() string { return "eventlog" }

func (r *Recorder) Topics() []string { return []string{model.TopicAll} }

// Handle appends msg to the store. Exporter failures are logged and do not
// fail the append.
func (r *Recorder) Handle(ctx context.Context, msg model.Message) error {
	rec, err := FromMessage(msg)
	if err != nil {
		return err
	}
	if err := r.store.Append(ctx, rec); err != nil {
		return fmt.Errorf("append %s#%d: %w", rec.Topic, rec.Seq, err)
	}
	for _, s := range r.sinks {
		if err := s.Append(ctx, rec); err != nil {
			r.log.Warnf("eventlog: export %s#%d: %v", rec.Topic, rec.Seq, err)
		}
	}
	return nil
}

// Store returns the backing store.
func (r *Recorder) Store() Store { return r.store }

// Close closes the store and every exporter.
func (r *Recorder) Close() error {
	errs := []error{r.store.Close()}
	for _, s := range r.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
