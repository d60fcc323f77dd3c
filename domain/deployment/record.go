// Package deployment models deployment attempts and their lifecycle. Every
// attempt against the execution engine leaves exactly one record in the
// ledger; records are append-only once finished.
package deployment

import (
	"time"

	"github.com/GTP-getaipro/FWIQ-sub012/domain/workflow"
)

// Status is the lifecycle state of a deployment attempt
type Status string

const (
	StatusPending    Status = "pending"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusRolledBack Status = "rolled_back"
	// StatusUnchanged records the idempotent short-circuit: identical input
	// re-deployed is a no-op, but the attempt is still written to the ledger.
	StatusUnchanged Status = "unchanged"
)

// Terminal reports whether the status is a final state
func (s Status) Terminal() bool {
	return s != StatusPending
}

// CanTransition validates the per-attempt state machine: a pending attempt
// terminates in success, failed, unchanged, or (for an attempt started by an
// explicit rollback call) rolled_back. At the profile level this realizes
// idle -> pending -> {success | failed} with failed -> rolled_back as an
// explicit follow-up; the follow-up is a new attempt record, because a
// finished record is never mutated.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.Terminal()
}

// ActivationState records the result of post-deploy verification
type ActivationState string

const (
	ActivationVerified   ActivationState = "verified"
	ActivationUnverified ActivationState = "unverified"
	ActivationSkipped    ActivationState = "skipped"
)

// Record is one deployment attempt. AttemptID is monotonic per profile and
// assigned by the ledger. Graph holds the full concrete graph so rollback
// can redeploy the last known good content without recomposing.
type Record struct {
	ProfileID       string                  `json:"profileId"`
	AttemptID       int64                   `json:"attemptId"`
	Status          Status                  `json:"status"`
	GraphHash       string                  `json:"graphHash,omitempty"`
	ExternalGraphID string                  `json:"externalGraphId,omitempty"`
	PreviousGraphID string                  `json:"previousGraphId,omitempty"`
	Graph           *workflow.ConcreteGraph `json:"graph,omitempty"`
	Activation      ActivationState         `json:"activation,omitempty"`
	StartedAt       time.Time               `json:"startedAt"`
	FinishedAt      *time.Time              `json:"finishedAt,omitempty"`
	ErrorDetail     string                  `json:"errorDetail,omitempty"`
}

// Finished reports whether the record has reached a terminal state
func (r *Record) Finished() bool {
	return r.FinishedAt != nil
}

// Outcome is what Deploy and Rollback return to callers
type Outcome struct {
	ProfileID          string `json:"profileId"`
	AttemptID          int64  `json:"attemptId"`
	Status             Status `json:"status"`
	ExternalGraphID    string `json:"externalGraphId,omitempty"`
	GraphHash          string `json:"graphHash,omitempty"`
	Unchanged          bool   `json:"unchanged"`
	ActivationVerified bool   `json:"activationVerified"`
	ErrorDetail        string `json:"errorDetail,omitempty"`
}
