package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/parcrypto/starshop/pkg/storage"
)

// ledger records are kept long enough to cover any realistic order replay
// from the marketplace feed.
const ledgerRetention = 30 * 24 * time.Hour

// IsProcessed reports whether the order id is already in the ledger.
func (s *Store) IsProcessed(ctx context.Context, orderID string) (bool, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.OrdersTableName),
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to get order from DynamoDB: %w", err)
	}
	return result.Item != nil, nil
}

// MarkProcessed writes the ledger record with a conditional put so only the
// first writer for an order id wins.
func (s *Store) MarkProcessed(ctx context.Context, order *storage.ProcessedOrder) error {
	now := time.Now()
	order.ProcessedAt = now
	order.TTL = now.Add(ledgerRetention).Unix()

	orderAV, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.OrdersTableName),
		Item:                orderAV,
		ConditionExpression: aws.String("attribute_not_exists(order_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return storage.ErrAlreadyProcessed
		}
		return fmt.Errorf("failed to put order into DynamoDB: %w", err)
	}

	return nil
}
