// Package events defines the domain events emitted by the composition and
// deployment pipeline.
package events

import (
	"time"
)

// SourceName identifies this service on the event bus
const SourceName = "fwiq.workflow-pipeline"

// DomainEvent is the base interface for all domain events
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// DeploymentSucceeded is raised when a graph is deployed and live
type DeploymentSucceeded struct {
	BaseEvent
	ProfileID       string `json:"profile_id"`
	AttemptID       int64  `json:"attempt_id"`
	ExternalGraphID string `json:"external_graph_id"`
	GraphHash       string `json:"graph_hash"`
}

// NewDeploymentSucceeded creates a DeploymentSucceeded event
func NewDeploymentSucceeded(profileID string, attemptID int64, externalGraphID, graphHash string) DeploymentSucceeded {
	return DeploymentSucceeded{
		BaseEvent: BaseEvent{
			AggregateID: profileID,
			EventType:   "deployment.succeeded",
			Timestamp:   time.Now(),
			Version:     1,
		},
		ProfileID:       profileID,
		AttemptID:       attemptID,
		ExternalGraphID: externalGraphID,
		GraphHash:       graphHash,
	}
}

// DeploymentFailed is raised when an attempt terminates in failure
type DeploymentFailed struct {
	BaseEvent
	ProfileID   string `json:"profile_id"`
	AttemptID   int64  `json:"attempt_id"`
	ErrorDetail string `json:"error_detail"`
}

// NewDeploymentFailed creates a DeploymentFailed event
func NewDeploymentFailed(profileID string, attemptID int64, errorDetail string) DeploymentFailed {
	return DeploymentFailed{
		BaseEvent: BaseEvent{
			AggregateID: profileID,
			EventType:   "deployment.failed",
			Timestamp:   time.Now(),
			Version:     1,
		},
		ProfileID:   profileID,
		AttemptID:   attemptID,
		ErrorDetail: errorDetail,
	}
}

// DeploymentUnchanged is raised when the idempotence check short-circuits
type DeploymentUnchanged struct {
	BaseEvent
	ProfileID string `json:"profile_id"`
	AttemptID int64  `json:"attempt_id"`
	GraphHash string `json:"graph_hash"`
}

// NewDeploymentUnchanged creates a DeploymentUnchanged event
func NewDeploymentUnchanged(profileID string, attemptID int64, graphHash string) DeploymentUnchanged {
	return DeploymentUnchanged{
		BaseEvent: BaseEvent{
			AggregateID: profileID,
			EventType:   "deployment.unchanged",
			Timestamp:   time.Now(),
			Version:     1,
		},
		ProfileID: profileID,
		AttemptID: attemptID,
		GraphHash: graphHash,
	}
}

// DeploymentRolledBack is raised when a rollback redeploys the prior graph
type DeploymentRolledBack struct {
	BaseEvent
	ProfileID       string `json:"profile_id"`
	AttemptID       int64  `json:"attempt_id"`
	ExternalGraphID string `json:"external_graph_id"`
	GraphHash       string `json:"graph_hash"`
}

// NewDeploymentRolledBack creates a DeploymentRolledBack event
func NewDeploymentRolledBack(profileID string, attemptID int64, externalGraphID, graphHash string) DeploymentRolledBack {
	return DeploymentRolledBack{
		BaseEvent: BaseEvent{
			AggregateID: profileID,
			EventType:   "deployment.rolled_back",
			Timestamp:   time.Now(),
			Version:     1,
		},
		ProfileID:       profileID,
		AttemptID:       attemptID,
		ExternalGraphID: externalGraphID,
		GraphHash:       graphHash,
	}
}
