package dedup

import (
	"context"
	"errors"
	"strconv"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// simpleMock is a very small in-memory mock for PutItem/DescribeTable used in
// unit tests. NOTE: This is intentionally minimal and not production-grade.
type simpleMock struct {
	mu       sync.Mutex
	table    map[string]map[string]types.AttributeValue
	putCalls int
	putErr   error
}

func newSimpleMock() *simpleMock {
	return &simpleMock{
		table: map[string]map[string]types.AttributeValue{},
	}
}

func (m *simpleMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.putErr != nil {
		return nil, m.putErr
	}
	keyAttr := params.Item["message_id"]
	if keyAttr == nil {
		return nil, errors.New("missing key")
	}
	k := keyAttr.(*types.AttributeValueMemberS).Value

	// implement ConditionExpression: attribute_not_exists(message_id) OR expires_at < :now
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(message_id) OR expires_at < :now" {
		if existing, ok := m.table[k]; ok {
			nowAttr, okNow := params.ExpressionAttributeValues[":now"].(*types.AttributeValueMemberN)
			expAttr, okExp := existing["expires_at"].(*types.AttributeValueMemberN)
			if !okNow || !okExp {
				return nil, errors.New("malformed condition values")
			}
			now, _ := strconv.ParseInt(nowAttr.Value, 10, 64)
			exp, _ := strconv.ParseInt(expAttr.Value, 10, 64)
			if exp >= now {
				// simulate conditional failure: live record holds the id
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
		m.table[k] = params.Item
		return &dyn.PutItemOutput{}, nil
	}

	// otherwise simple put (overwrite)
	m.table[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *simpleMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keyAttr := params.Key["message_id"]
	if keyAttr == nil {
		return nil, errors.New("missing key")
	}
	k := keyAttr.(*types.AttributeValueMemberS).Value
	item, ok := m.table[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *simpleMock) DescribeTable(ctx context.Context, params *dyn.DescribeTableInput, optFns ...func(*dyn.Options)) (*dyn.DescribeTableOutput, error) {
	return &dyn.DescribeTableOutput{}, nil
}
