package store_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/espalier/cache"
	"github.com/jacentio/espalier/document"
	"github.com/jacentio/espalier/mapping"
	"github.com/jacentio/espalier/reference"
	"github.com/jacentio/espalier/store"
)

type Customer struct {
	ID   string `doc:"id,id"`
	Name string `doc:"name"`
}

func (Customer) TableName() string { return "customers" }

type Order struct {
	ID       string                   `doc:"id,id"`
	Total    int                      `doc:"total"`
	Customer reference.Ref[*Customer] `doc:"customer,ref,lazy"`
}

func (Order) TableName() string { return "orders" }

type Counter struct {
	ID    int `doc:"id,id"`
	Value int `doc:"value"`
}

func newDatastore(t *testing.T, c cache.Cache) (*store.Datastore, *fakeClient) {
	t.Helper()
	m := mapping.New(nil, mapping.DefaultConfig())
	require.NoError(t, m.Register(&Customer{}, mapping.WithoutDiscriminator()))
	require.NoError(t, m.Register(&Order{}, mapping.WithoutDiscriminator()))
	require.NoError(t, m.Register(&Counter{}))
	client := newFakeClient()
	return store.NewDatastore(store.New(client, testConfig(), nil), m, c), client
}

func TestDatastore_SaveGeneratesIdentifier(t *testing.T) {
	ds, client := newDatastore(t, nil)
	ctx := context.Background()

	c := &Customer{Name: "Ann"}
	require.NoError(t, ds.Save(ctx, c))
	_, err := uuid.Parse(c.ID)
	require.NoError(t, err)

	raw, ok := client.get("customers", map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: c.ID},
	})
	require.True(t, ok)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "Ann"}, raw["name"])
}

func TestDatastore_SaveWithoutGeneratableIdentifier(t *testing.T) {
	ds, _ := newDatastore(t, nil)
	err := ds.Save(context.Background(), &Counter{Value: 1})
	assert.ErrorIs(t, err, store.ErrNoIdentifier)

	err = ds.Save(context.Background(), Customer{Name: "by value"})
	assert.ErrorIs(t, err, store.ErrNoIdentifier)
}

func TestDatastore_LoadResolvesLazyReference(t *testing.T) {
	ds, client := newDatastore(t, nil)
	ctx := context.Background()

	ann := &Customer{ID: "c1", Name: "Ann"}
	require.NoError(t, ds.Save(ctx, ann))
	require.NoError(t, ds.Save(ctx, &Order{ID: "o1", Total: 42, Customer: reference.To(ann)}))

	raw, _ := client.get("orders", map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: "o1"},
	})
	assert.Equal(t, &types.AttributeValueMemberS{Value: "c1"}, raw["customer"])

	var o Order
	require.NoError(t, ds.Load(ctx, "o1", &o))
	assert.Equal(t, 42, o.Total)
	assert.False(t, o.Customer.IsResolved())

	got, err := o.Customer.Get()
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)
}

func TestDatastore_LoadNotFound(t *testing.T) {
	ds, _ := newDatastore(t, nil)
	var c Customer
	err := ds.Load(context.Background(), "nope", &c)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDatastore_NumericIdentifier(t *testing.T) {
	ds, _ := newDatastore(t, nil)
	ctx := context.Background()

	require.NoError(t, ds.Save(ctx, &Counter{ID: 7, Value: 3}))
	var c Counter
	require.NoError(t, ds.Load(ctx, 7, &c))
	assert.Equal(t, Counter{ID: 7, Value: 3}, c)
}

func TestDatastore_DeleteEvictsSharedCache(t *testing.T) {
	shared := cache.New()
	ds, _ := newDatastore(t, shared)
	ctx := context.Background()

	c := &Customer{ID: "c1", Name: "Ann"}
	require.NoError(t, ds.Save(ctx, c))
	key := cache.KeyOf("customers", document.String("c1"))
	shared.Set(key, c)

	require.NoError(t, ds.Delete(ctx, c))
	_, ok := shared.Get(key)
	assert.False(t, ok)

	var loaded Customer
	assert.ErrorIs(t, ds.Load(ctx, "c1", &loaded), store.ErrNotFound)

	assert.ErrorIs(t, ds.Delete(ctx, &Customer{}), store.ErrNoIdentifier)
}
