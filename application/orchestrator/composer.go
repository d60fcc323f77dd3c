package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GTP-getaipro/FWIQ-sub012/application/compose"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/catalog"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/deployment"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/events"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/profile"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/workflow"
	appErrors "github.com/GTP-getaipro/FWIQ-sub012/pkg/errors"
)

// ComposeAndDeploy runs the whole pipeline for one profile: fetch a fresh
// catalog snapshot, score, build, inject, deploy. The profile lock is held
// from before composition until the deployment record is written, so a
// category change arriving mid-composition cannot race a second deployment.
func (s *Service) ComposeAndDeploy(ctx context.Context, profileID string) (*deployment.Outcome, error) {
	release, err := s.locks.Acquire(ctx, profileID)
	if err != nil {
		return nil, appErrors.NewDeploymentInProgressError(profileID)
	}
	defer release()

	graph, err := s.composeGraph(ctx, profileID)
	if err != nil {
		s.recordComposeFailure(ctx, profileID, err)
		return nil, err
	}
	return s.deployLocked(ctx, profileID, graph, deployOptions{terminal: deployment.StatusSuccess})
}

// composeGraph runs the pure composition stages against a call-scoped
// catalog snapshot. The snapshot is fetched fresh every invocation and
// never cached: the catalog may change between calls and a stale template
// would deploy labels the tenant no longer has.
func (s *Service) composeGraph(ctx context.Context, profileID string) (*workflow.ConcreteGraph, error) {
	prof, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if !prof.Active {
		return nil, appErrors.NewValidationError(fmt.Sprintf("profile %s is deactivated", profileID))
	}

	categories := make([]catalog.CategoryDefinition, 0, len(prof.SelectedCategories))
	for _, id := range prof.SelectedCategories {
		def, err := s.catalog.GetCategory(ctx, id)
		if err != nil {
			return nil, appErrors.Wrapf(err, "failed to fetch category %s", id)
		}
		categories = append(categories, *def)
	}

	score, err := compose.Score(categories)
	if err != nil {
		return nil, err
	}
	tpl, err := compose.Build(categories, score)
	if err != nil {
		return nil, err
	}
	s.logger.Info("composite template built",
		zap.String("profileId", profileID),
		zap.Float64("compatibilityScore", score),
		zap.String("strategy", string(tpl.Strategy)),
	)

	bindings, err := s.collectBindings(ctx, prof)
	if err != nil {
		return nil, err
	}
	return compose.Inject(tpl, bindings, graphName(prof))
}

// collectBindings gathers the tenant-specific values for every placeholder
// class: provisioned labels, profile facts, and the mailbox credential
// reference.
func (s *Service) collectBindings(ctx context.Context, prof *profile.BusinessProfile) (workflow.BindingSet, error) {
	labels, err := s.labels.ProvisionedLabels(ctx, prof.ID)
	if err != nil {
		return workflow.BindingSet{}, appErrors.Wrap(err, "failed to load provisioned labels")
	}

	cred, err := s.credentials.Binding(ctx, prof.ID, string(prof.MailboxProvider))
	if err != nil {
		return workflow.BindingSet{}, appErrors.Wrap(err, "failed to load credential binding")
	}

	provisioned := make(map[string]bool, len(labels))
	for _, labelID := range labels {
		provisioned[labelID] = true
	}

	return workflow.BindingSet{
		Labels: labels,
		Facts:  prof.Facts,
		Credentials: map[string]string{
			compose.CredentialSlot: cred.ExternalCredentialID,
			cred.ProviderID:        cred.ExternalCredentialID,
		},
		ProvisionedLabelIDs: provisioned,
	}, nil
}

// recordComposeFailure writes a failed attempt for errors raised before the
// engine was ever involved, so the ledger reflects every attempt a caller
// makes, not only the ones that reached deployment.
func (s *Service) recordComposeFailure(ctx context.Context, profileID string, cause error) {
	now := time.Now()
	rec := &deployment.Record{
		ProfileID: profileID,
		Status:    deployment.StatusPending,
		StartedAt: now,
	}
	if _, err := s.ledger.Append(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("failed to record composition failure",
			zap.String("profileId", profileID),
			zap.Error(err),
		)
		return
	}
	rec.Status = deployment.StatusFailed
	rec.Activation = deployment.ActivationSkipped
	rec.FinishedAt = &now
	rec.ErrorDetail = cause.Error()
	if err := s.ledger.Finalize(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("failed to finalize composition failure record",
			zap.String("profileId", profileID),
			zap.Error(err),
		)
		return
	}
	s.publish(ctx, events.NewDeploymentFailed(profileID, rec.AttemptID, cause.Error()))
}

func graphName(prof *profile.BusinessProfile) string {
	if name, ok := prof.Facts["business_name"]; ok && name != "" {
		return name + " email automation"
	}
	return prof.ID + " email automation"
}
