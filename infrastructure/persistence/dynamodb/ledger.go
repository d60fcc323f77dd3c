// Package dynamodb implements the persistence ports on a single DynamoDB
// table. Key layout:
//
//	PROFILE#<id>  / METADATA              business profile
//	PROFILE#<id>  / ATTEMPT#<%012d>       deployment records, append-only
//	PROFILE#<id>  / LABELS                provisioned label map
//	PROFILE#<id>  / CREDENTIAL#<provider> credential reference
//	CATEGORY#<id> / DEFINITION            catalog category definition
//	LOCK#<id>     / LOCK                  per-profile deployment lock
package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/GTP-getaipro/FWIQ-sub012/application/ports"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/deployment"
	appErrors "github.com/GTP-getaipro/FWIQ-sub012/pkg/errors"
)

// Ledger is the DynamoDB-backed append-only deployment history store
type Ledger struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewLedger creates a DynamoDB ledger
func NewLedger(client *dynamodb.Client, tableName string, logger *zap.Logger) *Ledger {
	return &Ledger{client: client, tableName: tableName, logger: logger}
}

var _ ports.Ledger = (*Ledger)(nil)

// ddbRecordItem is the storage shape of a deployment record. The full
// record, concrete graph included, is kept as a JSON document so rollback
// can redeploy it without recomposing.
type ddbRecordItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	AttemptID int64  `dynamodbav:"AttemptID"`
	Status    string `dynamodbav:"Status"`
	GraphHash string `dynamodbav:"GraphHash"`
	Finished  bool   `dynamodbav:"Finished"`
	Record    string `dynamodbav:"Record"`
}

func profilePK(profileID string) string { return "PROFILE#" + profileID }
func attemptSK(attemptID int64) string  { return fmt.Sprintf("ATTEMPT#%012d", attemptID) }

// Append assigns the next attempt ID with a conditional put, retrying the
// small window where a concurrent writer claims the same ID. The profile
// lock makes that window near-impossible for one profile, but the ledger
// does not depend on it.
func (l *Ledger) Append(ctx context.Context, record *deployment.Record) (int64, error) {
	if record == nil || record.ProfileID == "" {
		return 0, appErrors.NewValidationError("invalid deployment record")
	}

	const maxClaims = 3
	for claim := 0; claim < maxClaims; claim++ {
		latest, err := l.Latest(ctx, record.ProfileID)
		if err != nil {
			return 0, err
		}
		next := int64(1)
		if latest != nil {
			next = latest.AttemptID + 1
		}
		record.AttemptID = next

		item, err := l.marshalRecord(record)
		if err != nil {
			return 0, err
		}
		_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(l.tableName),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
		})
		if err == nil {
			return next, nil
		}
		var ccf *types.ConditionalCheckFailedException
		if !errors.As(err, &ccf) {
			return 0, appErrors.NewDatabaseError("append deployment record", err)
		}
		l.logger.Debug("attempt ID claimed concurrently, retrying",
			zap.String("profileId", record.ProfileID),
			zap.Int64("attemptId", next),
		)
	}
	return 0, appErrors.NewDatabaseError("append deployment record",
		fmt.Errorf("could not claim an attempt ID after %d tries", maxClaims))
}

// Finalize writes the terminal state exactly once; a finished item rejects
// further writes via the Finished flag condition.
func (l *Ledger) Finalize(ctx context.Context, record *deployment.Record) error {
	if record == nil || !record.Finished() {
		return appErrors.NewValidationError("finalize requires a finished record")
	}

	item, err := l.marshalRecord(record)
	if err != nil {
		return err
	}
	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(PK) AND Finished = :notFinished"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":notFinished": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return appErrors.NewValidationError(fmt.Sprintf(
				"attempt %d for profile %s is already finalized", record.AttemptID, record.ProfileID))
		}
		return appErrors.NewDatabaseError("finalize deployment record", err)
	}
	return nil
}

// Latest returns the most recent record for a profile, nil when none exists
func (l *Ledger) Latest(ctx context.Context, profileID string) (*deployment.Record, error) {
	out, err := l.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(l.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: profilePK(profileID)},
			":sk": &types.AttributeValueMemberS{Value: "ATTEMPT#"},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return nil, appErrors.NewDatabaseError("query latest deployment record", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	return l.unmarshalRecord(out.Items[0])
}

// History returns all records for a profile, oldest first
func (l *Ledger) History(ctx context.Context, profileID string) ([]deployment.Record, error) {
	var records []deployment.Record
	paginator := dynamodb.NewQueryPaginator(l.client, &dynamodb.QueryInput{
		TableName:              aws.String(l.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: profilePK(profileID)},
			":sk": &types.AttributeValueMemberS{Value: "ATTEMPT#"},
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, appErrors.NewDatabaseError("query deployment history", err)
		}
		for _, item := range page.Items {
			rec, err := l.unmarshalRecord(item)
			if err != nil {
				return nil, err
			}
			records = append(records, *rec)
		}
	}
	return records, nil
}

// LastSuccess returns the most recent record whose content is known to be
// live on the engine (success or rolled_back), nil when none exists.
func (l *Ledger) LastSuccess(ctx context.Context, profileID string) (*deployment.Record, error) {
	out, err := l.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(l.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		FilterExpression:       aws.String("#status IN (:success, :rolledBack)"),
		ExpressionAttributeNames: map[string]string{
			"#status": "Status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":         &types.AttributeValueMemberS{Value: profilePK(profileID)},
			":sk":         &types.AttributeValueMemberS{Value: "ATTEMPT#"},
			":success":    &types.AttributeValueMemberS{Value: string(deployment.StatusSuccess)},
			":rolledBack": &types.AttributeValueMemberS{Value: string(deployment.StatusRolledBack)},
		},
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return nil, appErrors.NewDatabaseError("query last successful deployment", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	return l.unmarshalRecord(out.Items[0])
}

func (l *Ledger) marshalRecord(record *deployment.Record) (map[string]types.AttributeValue, error) {
	doc, err := json.Marshal(record)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to serialize deployment record")
	}
	item := ddbRecordItem{
		PK:        profilePK(record.ProfileID),
		SK:        attemptSK(record.AttemptID),
		AttemptID: record.AttemptID,
		Status:    string(record.Status),
		GraphHash: record.GraphHash,
		Finished:  record.Finished(),
		Record:    string(doc),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to marshal deployment item")
	}
	return av, nil
}

func (l *Ledger) unmarshalRecord(item map[string]types.AttributeValue) (*deployment.Record, error) {
	var stored ddbRecordItem
	if err := attributevalue.UnmarshalMap(item, &stored); err != nil {
		return nil, appErrors.Wrap(err, "failed to unmarshal deployment item")
	}
	var rec deployment.Record
	if err := json.Unmarshal([]byte(stored.Record), &rec); err != nil {
		return nil, appErrors.Wrap(err, "failed to decode deployment record document")
	}
	return &rec, nil
}

// touchTimestamp formats times the way every item in the table does
func touchTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
