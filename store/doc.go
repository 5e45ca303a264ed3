// Package store connects the entity mapper to DynamoDB.
//
// [Store] keeps one table per collection, keyed by a single identifier
// attribute, and implements [reference.Finder] so references of decoded
// entities resolve against DynamoDB. Single references use GetItem and
// collection references use BatchGetItem, chunked and with bounded retries of
// unprocessed keys.
//
// [Datastore] combines a Store with a [mapping.Mapper]:
//
//	m := mapping.New(nil, mapping.DefaultConfig())
//	m.MustRegister(&Customer{})
//	m.MustRegister(&Order{})
//
//	ds := store.NewDatastore(store.New(dynamodb.NewFromConfig(cfg), store.DefaultConfig(), nil), m, nil)
//	if err := ds.Save(ctx, &Order{Customer: reference.To(customer)}); err != nil {
//	    return err
//	}
//
//	var o Order
//	err := ds.Load(ctx, "o1", &o)
//	if errors.Is(err, store.ErrNotFound) {
//	    ...
//	}
//
// # Deletion
//
// Items whose "ttl" attribute lies in the past are treated as deleted by every
// read, matching DynamoDB TTL expiry. With Config.SoftDelete, Delete sets the
// TTL instead of removing the item, so DynamoDB Streams observe a MODIFY.
//
// # Errors
//
//   - [ErrNotFound] - entity doesn't exist or is deleted
//   - [ErrNoIdentifier] - entity identifier is unset and cannot be generated
//   - [ErrUnprocessedKeys] - batch reads kept being throttled
package store
