package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GTP-getaipro/FWIQ-sub012/application/ports"
)

// LockManager provides the per-profile deployment lock via DynamoDB
// conditional writes, so single-flight holds across orchestrator instances.
// A TTL on the lock item lets a crashed holder's lock expire instead of
// wedging the profile forever.
type LockManager struct {
	client    *dynamodb.Client
	tableName string
	duration  time.Duration
	logger    *zap.Logger
}

// NewLockManager creates a DynamoDB lock manager. Duration bounds how long
// one deployment may hold the lock before it is considered abandoned.
func NewLockManager(client *dynamodb.Client, tableName string, duration time.Duration, logger *zap.Logger) *LockManager {
	if duration == 0 {
		duration = 5 * time.Minute
	}
	return &LockManager{client: client, tableName: tableName, duration: duration, logger: logger}
}

var _ ports.LockManager = (*LockManager)(nil)

// Acquire takes the lock for a key with a conditional put, failing
// immediately on contention. The release func deletes the lock only if this
// holder still owns it.
func (m *LockManager) Acquire(ctx context.Context, key string) (func(), error) {
	lockID := uuid.New().String()
	now := time.Now()
	expiresAt := now.Add(m.duration)

	_, err := m.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(m.tableName),
		Item: map[string]types.AttributeValue{
			"PK":         &types.AttributeValueMemberS{Value: "LOCK#" + key},
			"SK":         &types.AttributeValueMemberS{Value: "LOCK"},
			"LockID":     &types.AttributeValueMemberS{Value: lockID},
			"AcquiredAt": &types.AttributeValueMemberS{Value: touchTimestamp(now)},
			"ExpiresAt":  &types.AttributeValueMemberS{Value: touchTimestamp(expiresAt)},
			"TTL":        &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expiresAt.Unix())},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: touchTimestamp(now)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			m.logger.Debug("deployment lock already held",
				zap.String("key", key),
			)
			return nil, fmt.Errorf("lock already held for %s", key)
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	release := func() {
		// Release must not be tied to the caller's (possibly cancelled)
		// context: a stuck lock blocks every later deployment until TTL.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		_, err := m.client.DeleteItem(rctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(m.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: "LOCK#" + key},
				"SK": &types.AttributeValueMemberS{Value: "LOCK"},
			},
			ConditionExpression: aws.String("LockID = :lockId"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":lockId": &types.AttributeValueMemberS{Value: lockID},
			},
		})
		if err != nil {
			var ccf *types.ConditionalCheckFailedException
			if errors.As(err, &ccf) {
				// Lock expired and was re-acquired by someone else.
				m.logger.Warn("deployment lock no longer owned at release",
					zap.String("key", key),
					zap.String("lockId", lockID),
				)
				return
			}
			m.logger.Error("failed to release deployment lock",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
	return release, nil
}
