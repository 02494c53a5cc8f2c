package testutil

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// DynamoDBItemLimit is the service's maximum item size.
const DynamoDBItemLimit = 400 * 1024

// FakeDynamoDB is an in-memory table keyed by the string attribute "id". It
// honours attribute_not_exists(id) conditions and the item size limit.
type FakeDynamoDB struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

// NewFakeDynamoDB creates an empty table.
func NewFakeDynamoDB() *FakeDynamoDB {
	return &FakeDynamoDB{items: make(map[string]map[string]types.AttributeValue)}
}

// PutRaw stores item without any checks.
func (f *FakeDynamoDB) PutRaw(item map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[itemID(item)] = item
}

// ItemSize returns the stored size of the item with the given id, or 0.
func (f *FakeDynamoDB) ItemSize(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.items[id]
	if !ok {
		return 0
	}
	return itemSize(item)
}

// GetItem implements adapters.DynamoDBAPI.
func (f *FakeDynamoDB) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[itemID(in.Key)]}, nil
}

// PutItem implements adapters.DynamoDBAPI.
func (f *FakeDynamoDB) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if itemSize(in.Item) > DynamoDBItemLimit {
		return nil, &smithy.GenericAPIError{Code: "ValidationException", Message: "Item size has exceeded the maximum allowed size"}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id := itemID(in.Item)
	if aws.ToString(in.ConditionExpression) == "attribute_not_exists(id)" {
		if _, exists := f.items[id]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
	}
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

// DeleteItem implements adapters.DynamoDBAPI.
func (f *FakeDynamoDB) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, itemID(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func itemID(m map[string]types.AttributeValue) string {
	if s, ok := m["id"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

// itemSize approximates DynamoDB's accounting: attribute names plus values.
func itemSize(item map[string]types.AttributeValue) int {
	size := 0
	for name, v := range item {
		size += len(name)
		switch v := v.(type) {
		case *types.AttributeValueMemberS:
			size += len(v.Value)
		case *types.AttributeValueMemberB:
			size += len(v.Value)
		case *types.AttributeValueMemberN:
			size += len(v.Value)
		}
	}
	return size
}
