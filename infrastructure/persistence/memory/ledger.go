// Package memory provides in-memory implementations of the persistence
// ports, used in development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/GTP-getaipro/FWIQ-sub012/application/ports"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/deployment"
)

// Ledger is an in-memory append-only deployment history store
type Ledger struct {
	mu      sync.RWMutex
	records map[string][]deployment.Record
}

// NewLedger creates an empty in-memory ledger
func NewLedger() *Ledger {
	return &Ledger{records: make(map[string][]deployment.Record)}
}

var _ ports.Ledger = (*Ledger)(nil)

// Append opens a new attempt and assigns the next attempt ID for the
// profile. Attempt IDs start at 1 and strictly increase.
func (l *Ledger) Append(ctx context.Context, record *deployment.Record) (int64, error) {
	if record == nil || record.ProfileID == "" {
		return 0, fmt.Errorf("invalid deployment record")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	record.AttemptID = int64(len(l.records[record.ProfileID])) + 1
	l.records[record.ProfileID] = append(l.records[record.ProfileID], *record)
	return record.AttemptID, nil
}

// Finalize writes the terminal state of an attempt exactly once. A record
// that already finished is immutable; corrections are new records.
func (l *Ledger) Finalize(ctx context.Context, record *deployment.Record) error {
	if record == nil || !record.Finished() {
		return fmt.Errorf("finalize requires a finished record")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.records[record.ProfileID]
	idx := int(record.AttemptID) - 1
	if idx < 0 || idx >= len(history) {
		return fmt.Errorf("unknown attempt %d for profile %s", record.AttemptID, record.ProfileID)
	}
	if history[idx].Finished() {
		return fmt.Errorf("attempt %d for profile %s is already finalized", record.AttemptID, record.ProfileID)
	}
	if !deployment.CanTransition(history[idx].Status, record.Status) {
		return fmt.Errorf("invalid status transition %s -> %s", history[idx].Status, record.Status)
	}
	history[idx] = *record
	return nil
}

// Latest returns the most recent record for a profile, nil when none exists
func (l *Ledger) Latest(ctx context.Context, profileID string) (*deployment.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	history := l.records[profileID]
	if len(history) == 0 {
		return nil, nil
	}
	rec := history[len(history)-1]
	return &rec, nil
}

// History returns all records for a profile, oldest first
func (l *Ledger) History(ctx context.Context, profileID string) ([]deployment.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]deployment.Record(nil), l.records[profileID]...), nil
}

// LastSuccess returns the most recent record with status success or
// rolled_back, which is the last content known to be live on the engine.
func (l *Ledger) LastSuccess(ctx context.Context, profileID string) (*deployment.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	history := l.records[profileID]
	for i := len(history) - 1; i >= 0; i-- {
		switch history[i].Status {
		case deployment.StatusSuccess, deployment.StatusRolledBack:
			rec := history[i]
			return &rec, nil
		}
	}
	return nil, nil
}
