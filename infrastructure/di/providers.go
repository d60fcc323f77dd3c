package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"github.com/GTP-getaipro/FWIQ-sub012/application/orchestrator"
	"github.com/GTP-getaipro/FWIQ-sub012/application/ports"
	"github.com/GTP-getaipro/FWIQ-sub012/infrastructure/config"
	"github.com/GTP-getaipro/FWIQ-sub012/infrastructure/engine"
	"github.com/GTP-getaipro/FWIQ-sub012/infrastructure/messaging/eventbridge"
	dynamostore "github.com/GTP-getaipro/FWIQ-sub012/infrastructure/persistence/dynamodb"
	"github.com/GTP-getaipro/FWIQ-sub012/infrastructure/persistence/memory"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideLedger creates the deployment history ledger
func ProvideLedger(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.Ledger {
	return dynamostore.NewLedger(client, cfg.DynamoDBTable, logger)
}

// ProvideLockManager creates the per-profile deployment lock. Multi-node
// deployments need the DynamoDB lock; a single instance can opt into the
// in-process one.
func ProvideLockManager(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.LockManager {
	if cfg.UseMemoryLock {
		return memory.NewLockManager()
	}
	return dynamostore.NewLockManager(client, cfg.DynamoDBTable, cfg.LockDuration, logger)
}

// ProvideProfileRepository creates the profile repository
func ProvideProfileRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.ProfileRepository {
	return dynamostore.NewProfileRepository(client, cfg.DynamoDBTable, logger)
}

// ProvideCatalogProvider creates the category catalog reader
func ProvideCatalogProvider(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.CatalogProvider {
	return dynamostore.NewCatalogStore(client, cfg.DynamoDBTable, logger)
}

// ProvideRuntimeStore creates the tenant runtime data reader
func ProvideRuntimeStore(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) *dynamostore.RuntimeStore {
	return dynamostore.NewRuntimeStore(client, cfg.DynamoDBTable, logger)
}

// ProvideLabelProvisioner exposes the runtime store as the label port
func ProvideLabelProvisioner(store *dynamostore.RuntimeStore) ports.LabelProvisioner {
	return store
}

// ProvideCredentialStore exposes the runtime store as the credential port
func ProvideCredentialStore(store *dynamostore.RuntimeStore) ports.CredentialStore {
	return store
}

// ProvideEngineClient creates the execution engine client
func ProvideEngineClient(cfg *config.Config, logger *zap.Logger) ports.EngineClient {
	return engine.NewClient(cfg.EngineBaseURL, cfg.EngineAPIKey, logger)
}

// ProvideEventBus creates the deployment event publisher
func ProvideEventBus(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventBus {
	if cfg.EventBusName == "" {
		return eventbridge.NoopPublisher{}
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideRetryPolicy creates the engine-call retry policy
func ProvideRetryPolicy(cfg *config.Config) orchestrator.RetryPolicy {
	policy := orchestrator.DefaultRetryPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxRetries = cfg.MaxRetries
	}
	return policy
}

// ProvideOrchestrator creates the deployment orchestrator service
func ProvideOrchestrator(
	ledger ports.Ledger,
	locks ports.LockManager,
	engineClient ports.EngineClient,
	eventBus ports.EventBus,
	profiles ports.ProfileRepository,
	catalogProvider ports.CatalogProvider,
	labels ports.LabelProvisioner,
	credentials ports.CredentialStore,
	retry orchestrator.RetryPolicy,
	logger *zap.Logger,
) *orchestrator.Service {
	return orchestrator.NewService(
		ledger,
		locks,
		engineClient,
		eventBus,
		profiles,
		catalogProvider,
		labels,
		credentials,
		retry,
		logger,
	)
}
