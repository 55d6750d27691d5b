package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/kilianp07/wildguard/core/model"
)

// ErrAlreadyDecided is returned when recording a second decision for an incident.
var ErrAlreadyDecided = errors.New("incident already decided")

// ErrNotRecorded prefixes the reason of a decision the ledger failed to store.
var ErrNotRecorded = errors.New("decision not recorded")

// Ledger guarantees at most one dispatch round and decision per incident.
type Ledger interface {
	// Claim reserves the incident for a new round. It returns false when the
	// incident was already claimed or decided.
	Claim(ctx context.Context, incidentID string) (bool, error)
	// Record stores the final decision.
	Record(ctx context.Context, d model.DispatchDecision) error
	// Release drops an undecided claim so the incident can be retried.
	Release(ctx context.Context, incidentID string) error
	// Get returns the recorded decision.
	Get(ctx context.Context, incidentID string) (model.DispatchDecision, bool, error)
}

// MemoryLedger is an in-process Ledger.
type MemoryLedger struct {
	mu        sync.Mutex
	claimed   map[string]bool
	decisions map[string]model.DispatchDecision
}

// NewMemoryLedger returns an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		claimed:   make(map[string]bool),
		decisions: make(map[string]model.DispatchDecision),
	}
}

func (l *MemoryLedger) Claim(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.claimed[id] {
		return false, nil
	}
	if _, ok := l.decisions[id]; ok {
		return false, nil
	}
	l.claimed[id] = true
	return true, nil
}

func (l *MemoryLedger) Record(_ context.Context, d model.DispatchDecision) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.decisions[d.IncidentID]; ok {
		return ErrAlreadyDecided
	}
	l.decisions[d.IncidentID] = d
	delete(l.claimed, d.IncidentID)
	return nil
}

func (l *MemoryLedger) Release(_ context.Context, id string) error {
	l.mu.Lock()
	delete(l.claimed, id)
	l.mu.Unlock()
	return nil
}

func (l *MemoryLedger) Get(_ context.Context, id string) (model.DispatchDecision, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.decisions[id]
	return d, ok, nil
}
