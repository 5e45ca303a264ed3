package store_test

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/espalier/document"
)

// fakeClient is an in-memory DynamoDB keyed by the "id" attribute.
type fakeClient struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue

	// throttle leaves that many keys of a BatchGetItem request unprocessed,
	// once per call, for throttleCalls calls.
	throttle      int
	throttleCalls int

	batchCalls int
	batchSizes []int
	err        error
}

func newFakeClient() *fakeClient {
	return &fakeClient{tables: make(map[string]map[string]map[string]types.AttributeValue)}
}

func keyOf(key map[string]types.AttributeValue) string {
	v, err := document.FromAttributeValue(key["id"])
	if err != nil {
		panic(err)
	}
	return v.Key()
}

func (f *fakeClient) put(table string, item map[string]types.AttributeValue) {
	if f.tables[table] == nil {
		f.tables[table] = make(map[string]map[string]types.AttributeValue)
	}
	f.tables[table][keyOf(item)] = item
}

func (f *fakeClient) get(table string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, bool) {
	item, ok := f.tables[table][keyOf(key)]
	return item, ok
}

func (f *fakeClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	item, _ := f.get(*in.TableName, in.Key)
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeClient) BatchGetItem(_ context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := &dynamodb.BatchGetItemOutput{
		Responses:       make(map[string][]map[string]types.AttributeValue),
		UnprocessedKeys: make(map[string]types.KeysAndAttributes),
	}
	for table, ka := range in.RequestItems {
		f.batchSizes = append(f.batchSizes, len(ka.Keys))
		keys := ka.Keys
		if f.throttleCalls > 0 && f.throttle > 0 {
			f.throttleCalls--
			n := min(f.throttle, len(keys))
			out.UnprocessedKeys[table] = types.KeysAndAttributes{Keys: keys[:n]}
			keys = keys[n:]
		}
		for _, k := range keys {
			if item, ok := f.get(table, k); ok {
				out.Responses[table] = append(out.Responses[table], item)
			}
		}
	}
	return out, nil
}

func (f *fakeClient) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.put(*in.TableName, in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeClient) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	delete(f.tables[*in.TableName], keyOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

// UpdateItem supports the soft delete expression only.
func (f *fakeClient) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	item, ok := f.get(*in.TableName, in.Key)
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if _, deleted := item["ttl"]; deleted {
		return nil, &types.ConditionalCheckFailedException{}
	}
	item["ttl"] = in.ExpressionAttributeValues[":ttl"]
	return &dynamodb.UpdateItemOutput{}, nil
}
