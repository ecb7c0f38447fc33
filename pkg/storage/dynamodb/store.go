// Package dynamodb implements the processed-order ledger on AWS DynamoDB.
package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/parcrypto/starshop/pkg/storage"
)

// DynamoDBAPI is the subset of the DynamoDB client the ledger uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Store implements the OrderStore interface using AWS DynamoDB.
type Store struct {
	Client          DynamoDBAPI
	OrdersTableName string
}

// New creates a new Store.
func New(client DynamoDBAPI, ordersTable string) *Store {
	return &Store{
		Client:          client,
		OrdersTableName: ordersTable,
	}
}

// Make sure we conform to the interface
var _ storage.OrderStore = (*Store)(nil)
