package di

import (
	"github.com/GTP-getaipro/FWIQ-sub012/application/orchestrator"
	"github.com/GTP-getaipro/FWIQ-sub012/application/ports"
	"github.com/GTP-getaipro/FWIQ-sub012/infrastructure/config"
	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Ledger       ports.Ledger
	Locks        ports.LockManager
	Profiles     ports.ProfileRepository
	Catalog      ports.CatalogProvider
	Labels       ports.LabelProvisioner
	Credentials  ports.CredentialStore
	Engine       ports.EngineClient
	EventBus     ports.EventBus
	Orchestrator *orchestrator.Service
}
