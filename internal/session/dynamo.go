package session

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/yalahq/go-whatsapp-guestflow/internal/aws"
)

// DynamoStore keeps sessions in a shared DynamoDB table so any process can
// continue a conversation. The table's TTL attribute is expires_at; because
// DynamoDB deletes expired items lazily, Get also checks expiry itself.
type DynamoStore struct {
	client    aws.DynamoDBAPI
	tableName string
	ttl       time.Duration
	nowFunc   func() time.Time
}

// NewDynamoStore returns a session store bound to tableName.
// ttl: idle window after which a conversation restarts (e.g. 25*time.Minute).
func NewDynamoStore(client aws.DynamoDBAPI, tableName string, ttl time.Duration) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		nowFunc:   time.Now,
	}
}

// Get fetches the subscriber's session. A missing or expired item yields a
// fresh default session, never an error.
func (s *DynamoStore) Get(ctx context.Context, subscriberID string) (Session, error) {
	input := &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"subscriber_id": &types.AttributeValueMemberS{Value: subscriberID},
		},
	}
	out, err := s.client.GetItem(ctx, input)
	if err != nil {
		return Session{}, fmt.Errorf("session: get item: %w", err)
	}
	if len(out.Item) == 0 {
		return New(subscriberID), nil
	}

	var sess Session
	if err := attributevalue.UnmarshalMap(out.Item, &sess); err != nil {
		return Session{}, fmt.Errorf("session: unmarshal item: %w", err)
	}
	if sess.ExpiresAt <= s.nowFunc().Unix() {
		return New(subscriberID), nil
	}
	return sess, nil
}

// Put writes the session back, stamping activity and refreshing the idle TTL.
func (s *DynamoStore) Put(ctx context.Context, sess Session) error {
	now := s.nowFunc()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.LastActivityAt = now
	sess.ExpiresAt = now.Add(s.ttl).Unix()

	item, err := attributevalue.MarshalMap(sess)
	if err != nil {
		return fmt.Errorf("session: marshal item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("session: put item: %w", err)
	}
	return nil
}

// Ping verifies the table is reachable. Used at startup to decide whether a
// required shared store is usable.
func (s *DynamoStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dyn.DescribeTableInput{TableName: &s.tableName})
	if err != nil {
		return fmt.Errorf("session: describe table %s: %w", s.tableName, err)
	}
	return nil
}
