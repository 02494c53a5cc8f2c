package adapters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/TheMichaelB/casevault/internal/events"
	"github.com/TheMichaelB/casevault/internal/storage"
)

// MaxItemValueSize keeps a record inside DynamoDB's 400KB item limit with
// room for the key and timestamp attributes.
const MaxItemValueSize = 390 * 1024

// ErrItemTooLarge is returned when a record does not fit in one item.
var ErrItemTooLarge = errors.New("record exceeds dynamodb item size limit")

// DynamoDBAPI is the subset of the DynamoDB client the store uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoDBStore keeps one item per record in a table keyed by "id".
type DynamoDBStore struct {
	client    DynamoDBAPI
	tableName string
	logger    *events.Logger
}

// NewDynamoDBStore creates a store using the default AWS credential chain.
func NewDynamoDBStore(ctx context.Context, tableName string, logger *events.Logger) (*DynamoDBStore, error) {
	if tableName == "" {
		return nil, fmt.Errorf("dynamodb table name required")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewDynamoDBStoreWithClient(dynamodb.NewFromConfig(cfg), tableName, logger), nil
}

// NewDynamoDBStoreWithClient creates a store around an existing client.
func NewDynamoDBStoreWithClient(client DynamoDBAPI, tableName string, logger *events.Logger) *DynamoDBStore {
	return &DynamoDBStore{
		client:    client,
		tableName: tableName,
		logger:    logger.WithField("component", "dynamodb_store"),
	}
}

// Get implements storage.BlobStore.
func (s *DynamoDBStore) Get(ctx context.Context, id string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            itemKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get: %w", err)
	}
	if result.Item == nil {
		return nil, storage.ErrNotFound
	}

	value, ok := result.Item["value"].(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("%w: invalid value attribute type", storage.ErrMalformedRecord)
	}
	return value.Value, nil
}

// Set implements storage.BlobStore.
func (s *DynamoDBStore) Set(ctx context.Context, id string, value []byte) error {
	item, err := s.item(id, value)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb put: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"id":      id,
		"size":    len(value),
		"session": events.GetStore(ctx),
	}).Debug("Saved record to DynamoDB")

	return nil
}

// SetIfAbsent uses a conditional put on attribute_not_exists(id).
func (s *DynamoDBStore) SetIfAbsent(ctx context.Context, id string, value []byte) ([]byte, bool, error) {
	item, err := s.item(id, value)
	if err != nil {
		return nil, false, err
	}

	putCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err = s.client.PutItem(putCtx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err == nil {
		return append([]byte(nil), value...), true, nil
	}

	var condErr *types.ConditionalCheckFailedException
	if !errors.As(err, &condErr) {
		return nil, false, fmt.Errorf("dynamodb conditional put: %w", err)
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("read existing record: %w", err)
	}
	return existing, false, nil
}

// Delete implements storage.BlobStore.
func (s *DynamoDBStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       itemKey(id),
	})
	if err != nil {
		return fmt.Errorf("dynamodb delete: %w", err)
	}

	s.logger.WithField("id", id).Info("Deleted record from DynamoDB")
	return nil
}

// Close implements storage.BlobStore.
func (s *DynamoDBStore) Close() error {
	return nil
}

func (s *DynamoDBStore) item(id string, value []byte) (map[string]types.AttributeValue, error) {
	if err := storage.ValidateID(id); err != nil {
		return nil, err
	}
	if len(value) > MaxItemValueSize {
		return nil, fmt.Errorf("%w: %d bytes (max: %d)", ErrItemTooLarge, len(value), MaxItemValueSize)
	}

	return map[string]types.AttributeValue{
		"id":    &types.AttributeValueMemberS{Value: id},
		"value": &types.AttributeValueMemberB{Value: value},
		"updated_at": &types.AttributeValueMemberN{
			Value: strconv.FormatInt(time.Now().Unix(), 10),
		},
	}, nil
}

func itemKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}
