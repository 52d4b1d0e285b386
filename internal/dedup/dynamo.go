package dedup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/yalahq/go-whatsapp-guestflow/internal/aws"
)

// record is the shape persisted in the dedup DynamoDB table.
type record struct {
	MessageID string    `dynamodbav:"message_id"` // PK
	SeenAt    time.Time `dynamodbav:"seen_at"`
	ExpiresAt int64     `dynamodbav:"expires_at"` // TTL epoch seconds
}

// DynamoStore claims message ids with a conditional write so concurrent
// deliveries of the same id race safely across processes.
type DynamoStore struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewDynamoStore returns a dedup store bound to tableName. The table's TTL
// attribute should be expires_at.
func NewDynamoStore(client aws.DynamoDBAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// RecordIfNew writes the message id unless a live record already holds it.
// DynamoDB's TTL deletion lags, so the condition also treats an expired
// record as absent instead of waiting for the background sweep.
func (s *DynamoStore) RecordIfNew(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	now := s.nowFunc()
	rec := record{
		MessageID: messageID,
		SeenAt:    now,
		ExpiresAt: now.Add(ttl).Unix(),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("dedup: marshal record: %w", err)
	}

	input := &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(message_id) OR expires_at < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	}

	_, err = s.client.PutItem(ctx, input)
	if err != nil {
		// detect conditional check failure
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			return false, nil
		}
		return false, fmt.Errorf("dedup: put item: %w", err)
	}

	return true, nil
}

// Ping verifies the table is reachable. Used at startup to decide whether a
// required shared store is usable.
func (s *DynamoStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dyn.DescribeTableInput{TableName: &s.tableName})
	if err != nil {
		return fmt.Errorf("dedup: describe table %s: %w", s.tableName, err)
	}
	return nil
}

// Helper
func awsString(s string) *string { return &s }
