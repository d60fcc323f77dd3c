package dynamodb

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/GTP-getaipro/FWIQ-sub012/application/ports"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/profile"
	appErrors "github.com/GTP-getaipro/FWIQ-sub012/pkg/errors"
)

// ProfileRepository persists business profiles in the shared table
type ProfileRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewProfileRepository creates a DynamoDB profile repository
func NewProfileRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{client: client, tableName: tableName, logger: logger}
}

var _ ports.ProfileRepository = (*ProfileRepository)(nil)

type ddbProfileItem struct {
	PK      string `dynamodbav:"PK"`
	SK      string `dynamodbav:"SK"`
	Active  bool   `dynamodbav:"Active"`
	Profile string `dynamodbav:"Profile"`
}

// Get loads a profile by ID
func (r *ProfileRepository) Get(ctx context.Context, profileID string) (*profile.BusinessProfile, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: profilePK(profileID)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})
	if err != nil {
		return nil, appErrors.NewDatabaseError("get profile", err)
	}
	if out.Item == nil {
		return nil, appErrors.NewNotFoundError("profile " + profileID)
	}

	var item ddbProfileItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, appErrors.Wrap(err, "failed to unmarshal profile item")
	}
	var p profile.BusinessProfile
	if err := json.Unmarshal([]byte(item.Profile), &p); err != nil {
		return nil, appErrors.Wrap(err, "failed to decode profile document")
	}
	return &p, nil
}

// Save writes a profile; soft-deactivated profiles stay readable
func (r *ProfileRepository) Save(ctx context.Context, p *profile.BusinessProfile) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return appErrors.Wrap(err, "failed to serialize profile")
	}
	item, err := attributevalue.MarshalMap(ddbProfileItem{
		PK:      profilePK(p.ID),
		SK:      "METADATA",
		Active:  p.Active,
		Profile: string(doc),
	})
	if err != nil {
		return appErrors.Wrap(err, "failed to marshal profile item")
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	}); err != nil {
		return appErrors.NewDatabaseError("save profile", err)
	}
	return nil
}
