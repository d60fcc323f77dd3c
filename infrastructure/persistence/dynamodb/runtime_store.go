package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/GTP-getaipro/FWIQ-sub012/application/ports"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/profile"
	appErrors "github.com/GTP-getaipro/FWIQ-sub012/pkg/errors"
)

// RuntimeStore reads the per-tenant runtime data the onboarding flow writes
// after provisioning: the intent-key-to-label-ID map and credential
// references. It backs both the LabelProvisioner and CredentialStore ports.
type RuntimeStore struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewRuntimeStore creates a DynamoDB runtime store
func NewRuntimeStore(client *dynamodb.Client, tableName string, logger *zap.Logger) *RuntimeStore {
	return &RuntimeStore{client: client, tableName: tableName, logger: logger}
}

var (
	_ ports.LabelProvisioner = (*RuntimeStore)(nil)
	_ ports.CredentialStore  = (*RuntimeStore)(nil)
)

type ddbLabelItem struct {
	PK     string            `dynamodbav:"PK"`
	SK     string            `dynamodbav:"SK"`
	Labels map[string]string `dynamodbav:"Labels"`
}

type ddbCredentialItem struct {
	PK                   string `dynamodbav:"PK"`
	SK                   string `dynamodbav:"SK"`
	ProviderID           string `dynamodbav:"ProviderID"`
	ExternalCredentialID string `dynamodbav:"ExternalCredentialID"`
}

// ProvisionedLabels returns the tenant's current intentKey -> labelID map
func (s *RuntimeStore) ProvisionedLabels(ctx context.Context, profileID string) (map[string]string, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: profilePK(profileID)},
			"SK": &types.AttributeValueMemberS{Value: "LABELS"},
		},
	})
	if err != nil {
		return nil, appErrors.NewDatabaseError("get provisioned labels", err)
	}
	if out.Item == nil {
		// No labels yet is a valid state for a tenant mid-onboarding; the
		// injector turns an empty map into a precise mismatch error.
		return map[string]string{}, nil
	}

	var item ddbLabelItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, appErrors.Wrap(err, "failed to unmarshal label item")
	}
	if item.Labels == nil {
		item.Labels = map[string]string{}
	}
	return item.Labels, nil
}

// Binding looks up a credential reference by profile and provider. Only the
// reference crosses this boundary; secret material stays with the
// credential collaborator.
func (s *RuntimeStore) Binding(ctx context.Context, profileID, providerID string) (*profile.CredentialBinding, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: profilePK(profileID)},
			"SK": &types.AttributeValueMemberS{Value: "CREDENTIAL#" + providerID},
		},
	})
	if err != nil {
		return nil, appErrors.NewDatabaseError("get credential binding", err)
	}
	if out.Item == nil {
		return nil, appErrors.NewNotFoundError(
			fmt.Sprintf("credential binding for profile %s provider %s", profileID, providerID))
	}

	var item ddbCredentialItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, appErrors.Wrap(err, "failed to unmarshal credential item")
	}
	return &profile.CredentialBinding{
		ProfileID:            profileID,
		ProviderID:           item.ProviderID,
		ExternalCredentialID: item.ExternalCredentialID,
	}, nil
}
