package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
)

// Store is the checkout attempt journal in DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration
	nowFunc   func() time.Time
}

// NewStore returns a Store on tableName. Records expire ttlWindow after creation.
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// ErrConditionFailed is returned when a conditional update did not apply.
var ErrConditionFailed = errors.New("conditional check failed")

// Begin records a new IN_PROGRESS attempt. It returns false when key is already journaled.
func (s *Store) Begin(ctx context.Context, key, userEmail string) (bool, error) {
	now := s.nowFunc()
	rec := Attempt{
		IdempotencyKey: key,
		Status:         StatusInProgress,
		UserEmail:      userEmail,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttlWindow).Unix(),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal attempt: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(idempotency_key)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}
	return true, nil
}

// Get retrieves an attempt by key. If not found, returns (nil, nil).
func (s *Store) Get(ctx context.Context, key string) (*Attempt, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            s.key(key),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Attempt
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &rec, nil
}

// MarkOrderPlaced stores the server order id and the amount charged.
func (s *Store) MarkOrderPlaced(ctx context.Context, key, orderID string, total decimal.Decimal) error {
	return s.update(ctx, "mark order placed", &dyn.UpdateItemInput{
		Key:                      s.key(key),
		UpdateExpression:         awsString("SET #s = :status, order_id = :order_id, total = :total, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":   &types.AttributeValueMemberS{Value: StatusOrderPlaced},
			":order_id": &types.AttributeValueMemberS{Value: orderID},
			":total":    &types.AttributeValueMemberS{Value: total.StringFixed(2)},
			":ua":       s.nowAttr(),
		},
	})
}

// MarkDone closes the attempt. It returns ErrConditionFailed while decrements
// are still pending or claimed by a worker.
func (s *Store) MarkDone(ctx context.Context, key string) error {
	return s.update(ctx, "mark done", &dyn.UpdateItemInput{
		Key:                      s.key(key),
		UpdateExpression:         awsString("SET #s = :status, updated_at = :ua"),
		ConditionExpression:      awsString("attribute_exists(idempotency_key) AND attribute_not_exists(pending_items) AND attribute_not_exists(inflight_items)"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: StatusDone},
			":ua":     s.nowAttr(),
		},
	})
}

// MarkFailed marks an attempt that produced no order.
func (s *Store) MarkFailed(ctx context.Context, key, note string) error {
	return s.update(ctx, "mark failed", &dyn.UpdateItemInput{
		Key:                      s.key(key),
		UpdateExpression:         awsString("SET #s = :status, note = :note, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: StatusFailed},
			":note":   &types.AttributeValueMemberS{Value: note},
			":ua":     s.nowAttr(),
		},
	})
}

// AddPendingDecrements adds itemIDs to the pending set and moves the attempt to RECONCILING.
func (s *Store) AddPendingDecrements(ctx context.Context, key string, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	return s.update(ctx, "add pending decrements", &dyn.UpdateItemInput{
		Key:                      s.key(key),
		UpdateExpression:         awsString("ADD pending_items :items SET #s = :status, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":items":  &types.AttributeValueMemberSS{Value: itemIDs},
			":status": &types.AttributeValueMemberS{Value: StatusReconciling},
			":ua":     s.nowAttr(),
		},
	})
}

// ClaimDecrement moves itemID from the pending set to the in-flight set. It
// returns false when the item was not pending, i.e. another worker already
// claimed or applied it.
func (s *Store) ClaimDecrement(ctx context.Context, key, itemID string) (bool, error) {
	err := s.update(ctx, "claim decrement", &dyn.UpdateItemInput{
		Key:                 s.key(key),
		UpdateExpression:    awsString("DELETE pending_items :items ADD inflight_items :items SET updated_at = :ua"),
		ConditionExpression: awsString("contains(pending_items, :item_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":items":   &types.AttributeValueMemberSS{Value: []string{itemID}},
			":item_id": &types.AttributeValueMemberS{Value: itemID},
			":ua":      s.nowAttr(),
		},
	})
	if errors.Is(err, ErrConditionFailed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CompleteDecrement drops a claimed item once its stock update was applied.
func (s *Store) CompleteDecrement(ctx context.Context, key, itemID string) error {
	return s.update(ctx, "complete decrement", &dyn.UpdateItemInput{
		Key:              s.key(key),
		UpdateExpression: awsString("DELETE inflight_items :items SET updated_at = :ua"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":items": &types.AttributeValueMemberSS{Value: []string{itemID}},
			":ua":    s.nowAttr(),
		},
	})
}

// ReleaseDecrement moves a claimed item back to the pending set. It returns
// ErrConditionFailed when itemID is not in flight.
func (s *Store) ReleaseDecrement(ctx context.Context, key, itemID string) error {
	return s.update(ctx, "release decrement", &dyn.UpdateItemInput{
		Key:                 s.key(key),
		UpdateExpression:    awsString("DELETE inflight_items :items ADD pending_items :items SET updated_at = :ua"),
		ConditionExpression: awsString("contains(inflight_items, :item_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":items":   &types.AttributeValueMemberSS{Value: []string{itemID}},
			":item_id": &types.AttributeValueMemberS{Value: itemID},
			":ua":      s.nowAttr(),
		},
	})
}

func (s *Store) update(ctx context.Context, op string, input *dyn.UpdateItemInput) error {
	input.TableName = &s.tableName
	input.ReturnValues = types.ReturnValueUpdatedNew
	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return ErrConditionFailed
		}
		return fmt.Errorf("update item (%s): %w", op, err)
	}
	return nil
}

func (s *Store) key(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"idempotency_key": &types.AttributeValueMemberS{Value: key},
	}
}

func (s *Store) nowAttr() types.AttributeValue {
	return &types.AttributeValueMemberS{Value: s.nowFunc().Format(time.RFC3339)}
}

func isConditionFailed(err error) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException"
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
