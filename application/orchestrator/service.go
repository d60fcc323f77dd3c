// Package orchestrator deploys concrete graphs to the execution engine with
// single-flight locking per profile, content-hash idempotence, retry with
// backoff on transient engine failures, and a guaranteed audit record for
// every attempt.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GTP-getaipro/FWIQ-sub012/application/ports"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/deployment"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/events"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/workflow"
	appErrors "github.com/GTP-getaipro/FWIQ-sub012/pkg/errors"
)

// Service is the deployment orchestrator. It owns the per-profile lock, the
// idempotence short-circuit, and the ledger write that every attempt ends in.
type Service struct {
	ledger      ports.Ledger
	locks       ports.LockManager
	engine      ports.EngineClient
	events      ports.EventBus
	profiles    ports.ProfileRepository
	catalog     ports.CatalogProvider
	labels      ports.LabelProvisioner
	credentials ports.CredentialStore
	retry       RetryPolicy
	logger      *zap.Logger
}

// NewService creates the orchestrator service
func NewService(
	ledger ports.Ledger,
	locks ports.LockManager,
	engine ports.EngineClient,
	eventBus ports.EventBus,
	profiles ports.ProfileRepository,
	catalogProvider ports.CatalogProvider,
	labels ports.LabelProvisioner,
	credentials ports.CredentialStore,
	retry RetryPolicy,
	logger *zap.Logger,
) *Service {
	return &Service{
		ledger:      ledger,
		locks:       locks,
		engine:      engine,
		events:      eventBus,
		profiles:    profiles,
		catalog:     catalogProvider,
		labels:      labels,
		credentials: credentials,
		retry:       retry,
		logger:      logger,
	}
}

// deployOptions differentiates a regular deploy from a rollback redeploy
type deployOptions struct {
	// terminal is the status a successful attempt finishes in
	terminal deployment.Status
	// force skips the idempotence short-circuit; a rollback must reach the
	// engine even when the target hash matches the last success, because a
	// failed attempt may have left the remote graph in an unknown state.
	force bool
}

// Deploy pushes a concrete graph to the execution engine for one profile.
// Concurrent calls for the same profile fail fast with
// DeploymentInProgressError rather than queue.
func (s *Service) Deploy(ctx context.Context, profileID string, graph *workflow.ConcreteGraph) (*deployment.Outcome, error) {
	release, err := s.locks.Acquire(ctx, profileID)
	if err != nil {
		return nil, appErrors.NewDeploymentInProgressError(profileID)
	}
	defer release()

	return s.deployLocked(ctx, profileID, graph, deployOptions{terminal: deployment.StatusSuccess})
}

// Rollback redeploys the last successful deployment's concrete graph,
// going through the same single-flight path as Deploy. The new attempt is
// recorded with status rolled_back.
func (s *Service) Rollback(ctx context.Context, profileID string) (*deployment.Outcome, error) {
	release, err := s.locks.Acquire(ctx, profileID)
	if err != nil {
		return nil, appErrors.NewDeploymentInProgressError(profileID)
	}
	defer release()

	last, err := s.ledger.LastSuccess(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if last == nil || last.Graph == nil {
		return nil, appErrors.NewNotFoundError(fmt.Sprintf("successful deployment for profile %s", profileID))
	}

	s.logger.Info("rolling back to last successful deployment",
		zap.String("profileId", profileID),
		zap.Int64("targetAttemptId", last.AttemptID),
		zap.String("graphHash", last.GraphHash),
	)
	return s.deployLocked(ctx, profileID, last.Graph, deployOptions{terminal: deployment.StatusRolledBack, force: true})
}

// GetHistory returns every deployment record for a profile, oldest first
func (s *Service) GetHistory(ctx context.Context, profileID string) ([]deployment.Record, error) {
	return s.ledger.History(ctx, profileID)
}

// deployLocked runs one deployment attempt. The caller holds the profile
// lock. Whatever happens, a terminal record lands in the ledger: the
// deferred finalize covers panics and context cancellation so a pending
// record is never orphaned.
func (s *Service) deployLocked(ctx context.Context, profileID string, graph *workflow.ConcreteGraph, opts deployOptions) (outcome *deployment.Outcome, err error) {
	hash := graph.Hash()

	last, err := s.ledger.LastSuccess(ctx, profileID)
	if err != nil {
		return nil, err
	}

	rec := &deployment.Record{
		ProfileID: profileID,
		Status:    deployment.StatusPending,
		GraphHash: hash,
		Graph:     graph,
		StartedAt: time.Now(),
	}
	if last != nil {
		rec.PreviousGraphID = last.ExternalGraphID
	}
	if _, err := s.ledger.Append(ctx, rec); err != nil {
		return nil, appErrors.Wrap(err, "failed to open deployment record")
	}

	finalized := false
	finalize := func(status deployment.Status, activation deployment.ActivationState, detail string) {
		if finalized {
			return
		}
		finalized = true
		now := time.Now()
		rec.Status = status
		rec.Activation = activation
		rec.FinishedAt = &now
		rec.ErrorDetail = detail
		// The record must be durable even when the caller's context is
		// already cancelled.
		if ferr := s.ledger.Finalize(context.WithoutCancel(ctx), rec); ferr != nil {
			s.logger.Error("failed to finalize deployment record",
				zap.String("profileId", profileID),
				zap.Int64("attemptId", rec.AttemptID),
				zap.Error(ferr),
			)
		}
	}
	defer func() {
		if !finalized {
			detail := "deployment aborted before completion"
			if err != nil {
				detail = err.Error()
			}
			finalize(deployment.StatusFailed, deployment.ActivationSkipped, detail)
			s.publish(ctx, events.NewDeploymentFailed(profileID, rec.AttemptID, detail))
		}
	}()

	// Idempotence: identical content re-deployed is a no-op, not an error.
	if !opts.force && last != nil && last.GraphHash == hash {
		finalize(deployment.StatusUnchanged, deployment.ActivationSkipped, "")
		s.publish(ctx, events.NewDeploymentUnchanged(profileID, rec.AttemptID, hash))
		s.logger.Info("deployment unchanged, engine not called",
			zap.String("profileId", profileID),
			zap.String("graphHash", hash),
		)
		return &deployment.Outcome{
			ProfileID:          profileID,
			AttemptID:          rec.AttemptID,
			Status:             deployment.StatusUnchanged,
			ExternalGraphID:    last.ExternalGraphID,
			GraphHash:          hash,
			Unchanged:          true,
			ActivationVerified: true,
		}, nil
	}

	// Create on first deployment, update in place afterwards so the
	// engine-side identifier is preserved.
	externalID := ""
	if last != nil {
		externalID = last.ExternalGraphID
	}
	if externalID == "" {
		err = s.retry.Do(ctx, s.logger, "CreateGraph", func() error {
			id, engineErr := s.engine.CreateGraph(ctx, graph)
			if engineErr == nil {
				externalID = id
			}
			return engineErr
		})
	} else {
		err = s.retry.Do(ctx, s.logger, "UpdateGraph", func() error {
			return s.engine.UpdateGraph(ctx, externalID, graph)
		})
	}
	if err != nil {
		failErr := appErrors.NewDeploymentFailedError(
			fmt.Sprintf("failed to deploy graph for profile %s", profileID), err)
		finalize(deployment.StatusFailed, deployment.ActivationSkipped, failErr.Error())
		s.publish(ctx, events.NewDeploymentFailed(profileID, rec.AttemptID, failErr.Error()))
		return nil, failErr
	}
	rec.ExternalGraphID = externalID

	// A successful create/update is not proof the graph is runnable;
	// activation can fail separately. Verification failure is surfaced,
	// never auto-rolled-back.
	activation := deployment.ActivationVerified
	detail := ""
	var status ports.GraphStatus
	verifyErr := s.retry.Do(ctx, s.logger, "GetGraphStatus", func() error {
		st, engineErr := s.engine.GetGraphStatus(ctx, externalID)
		if engineErr == nil {
			status = st
		}
		return engineErr
	})
	if verifyErr != nil {
		activation = deployment.ActivationUnverified
		detail = appErrors.NewActivationUnverifiedError(externalID, verifyErr).Error()
	} else if status != ports.GraphStatusActive {
		activation = deployment.ActivationUnverified
		detail = appErrors.NewActivationUnverifiedError(externalID,
			fmt.Errorf("engine reports graph status %q", status)).Error()
	}

	finalize(opts.terminal, activation, detail)
	switch opts.terminal {
	case deployment.StatusRolledBack:
		s.publish(ctx, events.NewDeploymentRolledBack(profileID, rec.AttemptID, externalID, hash))
	default:
		s.publish(ctx, events.NewDeploymentSucceeded(profileID, rec.AttemptID, externalID, hash))
	}

	s.logger.Info("deployment finished",
		zap.String("profileId", profileID),
		zap.Int64("attemptId", rec.AttemptID),
		zap.String("status", string(opts.terminal)),
		zap.String("externalGraphId", externalID),
		zap.Bool("activationVerified", activation == deployment.ActivationVerified),
	)

	return &deployment.Outcome{
		ProfileID:          profileID,
		AttemptID:          rec.AttemptID,
		Status:             opts.terminal,
		ExternalGraphID:    externalID,
		GraphHash:          hash,
		ActivationVerified: activation == deployment.ActivationVerified,
		ErrorDetail:        detail,
	}, nil
}

// publish emits a domain event. Publishing is observational: failures are
// logged and never fail the deployment.
func (s *Service) publish(ctx context.Context, event events.DomainEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("failed to publish domain event",
			zap.String("eventType", event.GetEventType()),
			zap.String("aggregateId", event.GetAggregateID()),
			zap.Error(err),
		)
	}
}
