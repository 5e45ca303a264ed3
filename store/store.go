package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/espalier/document"
	"github.com/jacentio/espalier/reference"
)

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// Client is the subset of the DynamoDB API the store uses.
// *dynamodb.Client satisfies it.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

var _ Client = (*dynamodb.Client)(nil)

var _ reference.Finder = (*Store)(nil)

// Store reads and writes documents in DynamoDB tables, one table per collection.
type Store struct {
	client Client
	config Config
	logger *slog.Logger
}

// New creates a new Store instance.
func New(client Client, config Config, logger *slog.Logger) *Store {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		config: config,
		logger: logger,
	}
}

// Config returns the validated configuration.
func (s *Store) Config() Config { return s.config }

// TableName returns the table a collection is stored in.
func (s *Store) TableName(collection string) string {
	return s.config.TablePrefix + collection
}

// Key returns the primary key for an identifier.
func (s *Store) Key(id document.Value) PK {
	return PK{s.config.IDAttribute: document.ToAttributeValue(id)}
}

// FindOne implements reference.Finder. Missing and deleted items yield nil.
func (s *Store) FindOne(ctx context.Context, collection string, id document.Value) (*document.Document, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.TableName(collection)),
		Key:       s.Key(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", collection, id.Key(), err)
	}
	if result.Item == nil || IsDeleted(result.Item) {
		return nil, nil
	}
	return document.FromItem(result.Item)
}

// FindMany implements reference.Finder. Identifiers are fetched in chunks of
// MaxBatchSize; missing and deleted items are omitted.
func (s *Store) FindMany(ctx context.Context, collection string, ids []document.Value) ([]*document.Document, error) {
	table := s.TableName(collection)
	var docs []*document.Document
	for start := 0; start < len(ids); start += s.config.MaxBatchSize {
		end := min(start+s.config.MaxBatchSize, len(ids))
		keys := make([]map[string]types.AttributeValue, 0, end-start)
		seen := make(map[string]bool, end-start)
		for _, id := range ids[start:end] {
			// BatchGetItem rejects duplicate keys
			if seen[id.Key()] {
				continue
			}
			seen[id.Key()] = true
			keys = append(keys, s.Key(id))
		}

		items, err := s.batchGet(ctx, table, keys)
		if err != nil {
			return nil, fmt.Errorf("batch get %s: %w", collection, err)
		}
		for _, item := range items {
			if IsDeleted(item) {
				continue
			}
			doc, err := document.FromItem(item)
			if err != nil {
				return nil, fmt.Errorf("batch get %s: %w", collection, err)
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// batchGet fetches keys from one table, requesting unprocessed keys again
// with a doubling backoff.
func (s *Store) batchGet(ctx context.Context, table string, keys []map[string]types.AttributeValue) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	request := map[string]types.KeysAndAttributes{table: {Keys: keys}}
	backoff := s.config.RetryBackoff

	for attempt := 0; ; attempt++ {
		result, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: request,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, result.Responses[table]...)

		pending, ok := result.UnprocessedKeys[table]
		if !ok || len(pending.Keys) == 0 {
			return items, nil
		}
		if attempt >= s.config.MaxUnprocessedRetries {
			return nil, fmt.Errorf("%w: %d keys after %d retries", ErrUnprocessedKeys, len(pending.Keys), attempt)
		}

		s.logger.Debug("retrying unprocessed keys",
			"table", table,
			"keys", len(pending.Keys),
			"attempt", attempt+1,
		)
		request = map[string]types.KeysAndAttributes{table: pending}
		if err := sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
}

// Put writes a document to a collection, replacing any existing item.
func (s *Store) Put(ctx context.Context, collection string, doc *document.Document) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.TableName(collection)),
		Item:      doc.Item(),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", collection, err)
	}
	return nil
}

// Delete removes the item stored under id. With SoftDelete the item's TTL is
// set to now instead; deleting an already deleted item is not an error.
func (s *Store) Delete(ctx context.Context, collection string, id document.Value) error {
	if s.config.SoftDelete {
		return s.setTTL(ctx, collection, id, time.Now())
	}
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.TableName(collection)),
		Key:       s.Key(id),
	})
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", collection, id.Key(), err)
	}
	return nil
}

// setTTL marks an item for deletion by setting its TTL.
func (s *Store) setTTL(ctx context.Context, collection string, id document.Value, at time.Time) error {
	values := TTLFilterValues()
	values[":ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(at.Unix(), 10)}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.TableName(collection)),
		Key:                       s.Key(id),
		UpdateExpression:          aws.String("SET #ttl = :ttl"),
		ConditionExpression:       aws.String("attribute_exists(#id) AND (" + NotDeletedCondition() + ")"),
		ExpressionAttributeNames:  mergeExprNames(TTLFilterNames(), map[string]string{"#id": s.config.IDAttribute}),
		ExpressionAttributeValues: values,
	})

	// Ignore condition failure - missing or already deleted
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("soft delete %s %s: %w", collection, id.Key(), err)
	}
	return nil
}

// mergeExprNames merges multiple expression attribute name maps.
func mergeExprNames(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
