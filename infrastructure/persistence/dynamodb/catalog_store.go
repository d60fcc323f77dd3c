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
	"github.com/GTP-getaipro/FWIQ-sub012/domain/catalog"
	appErrors "github.com/GTP-getaipro/FWIQ-sub012/pkg/errors"
)

// CatalogStore reads category definitions maintained by the catalog
// authoring system. Read-only to this service; every call fetches the
// current definition so composition always sees a fresh snapshot.
type CatalogStore struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewCatalogStore creates a DynamoDB catalog store
func NewCatalogStore(client *dynamodb.Client, tableName string, logger *zap.Logger) *CatalogStore {
	return &CatalogStore{client: client, tableName: tableName, logger: logger}
}

var _ ports.CatalogProvider = (*CatalogStore)(nil)

type ddbCategoryItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	Definition string `dynamodbav:"Definition"`
}

// GetCategory loads one category definition by ID
func (s *CatalogStore) GetCategory(ctx context.Context, id catalog.CategoryID) (*catalog.CategoryDefinition, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "CATEGORY#" + string(id)},
			"SK": &types.AttributeValueMemberS{Value: "DEFINITION"},
		},
	})
	if err != nil {
		return nil, appErrors.NewDatabaseError("get category", err)
	}
	if out.Item == nil {
		return nil, appErrors.NewNotFoundError("category " + string(id))
	}

	var item ddbCategoryItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, appErrors.Wrap(err, "failed to unmarshal category item")
	}
	var def catalog.CategoryDefinition
	if err := json.Unmarshal([]byte(item.Definition), &def); err != nil {
		return nil, appErrors.Wrap(err, "failed to decode category definition")
	}
	return &def, nil
}
