// Package ports declares the boundary interfaces the pipeline depends on.
// The collaborators behind them (catalog authoring, label provisioning,
// credential storage, the execution engine) are external systems with fixed
// contracts; infrastructure supplies the adapters.
package ports

import (
	"context"

	"github.com/GTP-getaipro/FWIQ-sub012/domain/catalog"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/deployment"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/events"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/profile"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/workflow"
)

// CatalogProvider serves read-only category definitions. Definitions may
// change between calls; callers must fetch a fresh snapshot per composition
// and never cache across invocations.
type CatalogProvider interface {
	GetCategory(ctx context.Context, id catalog.CategoryID) (*catalog.CategoryDefinition, error)
}

// LabelProvisioner reports the labels actually provisioned on a tenant's
// mailbox as an intentKey -> external label ID map. It is the source of
// truth for the injector's label-binding validation.
type LabelProvisioner interface {
	ProvisionedLabels(ctx context.Context, profileID string) (map[string]string, error)
}

// CredentialStore looks up credential references. Raw secret material never
// crosses this boundary.
type CredentialStore interface {
	Binding(ctx context.Context, profileID, providerID string) (*profile.CredentialBinding, error)
}

// GraphStatus is the execution engine's view of a deployed graph
type GraphStatus string

const (
	GraphStatusActive   GraphStatus = "active"
	GraphStatusInactive GraphStatus = "inactive"
	GraphStatusError    GraphStatus = "error"
)

// EngineClient is the three-operation surface this core uses on the
// execution engine. Everything else the engine can do is opaque to us.
type EngineClient interface {
	CreateGraph(ctx context.Context, graph *workflow.ConcreteGraph) (externalID string, err error)
	UpdateGraph(ctx context.Context, externalID string, graph *workflow.ConcreteGraph) error
	GetGraphStatus(ctx context.Context, externalID string) (GraphStatus, error)
}

// ProfileRepository persists tenant profiles
type ProfileRepository interface {
	Get(ctx context.Context, profileID string) (*profile.BusinessProfile, error)
	Save(ctx context.Context, p *profile.BusinessProfile) error
}

// Ledger is the append-only deployment history store. Attempt IDs are
// assigned by Append and strictly increase per profile. Finalize sets the
// terminal state exactly once; a finished record is never mutated again.
// Latest and LastSuccess return (nil, nil) when no matching record exists.
type Ledger interface {
	Append(ctx context.Context, record *deployment.Record) (attemptID int64, err error)
	Finalize(ctx context.Context, record *deployment.Record) error
	Latest(ctx context.Context, profileID string) (*deployment.Record, error)
	History(ctx context.Context, profileID string) ([]deployment.Record, error)
	LastSuccess(ctx context.Context, profileID string) (*deployment.Record, error)
}

// LockManager provides the per-profile single-flight deployment lock.
// Acquire fails immediately on contention; the returned release func must be
// called in a guaranteed cleanup path.
type LockManager interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// EventBus publishes domain events. Implementations must be safe for
// concurrent use; publish failures are reported, not retried here.
type EventBus interface {
	Publish(ctx context.Context, event events.DomainEvent) error
}
