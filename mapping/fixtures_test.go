package mapping

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacentio/espalier/document"
	"github.com/jacentio/espalier/reference"
)

type Party interface {
	PartyName() string
}

type Customer struct {
	ID   string `doc:"id,id"`
	Name string `doc:"name"`
}

func (Customer) TableName() string   { return "customers" }
func (c Customer) PartyName() string { return c.Name }

type Vendor struct {
	ID      string `doc:"id,id"`
	Company string `doc:"company"`
}

func (Vendor) TableName() string   { return "vendors" }
func (v Vendor) PartyName() string { return v.Company }

type Order struct {
	ID       string                   `doc:"id,id"`
	Customer reference.Ref[*Customer] `doc:"customer,ref,lazy"`
}

func (Order) TableName() string { return "orders" }

// memFinder serves documents from memory and counts fetches.
type memFinder struct {
	mu    sync.Mutex
	docs  map[string]map[string]*document.Document
	one   int
	many  int
	batch [][]document.Value
	err   error
}

func newMemFinder() *memFinder {
	return &memFinder{docs: make(map[string]map[string]*document.Document)}
}

func (f *memFinder) put(t *testing.T, collection string, doc *document.Document) {
	t.Helper()
	id, ok := doc.Get("id")
	require.True(t, ok, "document has no id")
	if f.docs[collection] == nil {
		f.docs[collection] = make(map[string]*document.Document)
	}
	f.docs[collection][id.Key()] = doc
}

func (f *memFinder) FindOne(_ context.Context, collection string, id document.Value) (*document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.one++
	if f.err != nil {
		return nil, f.err
	}
	return f.docs[collection][id.Key()], nil
}

// FindMany returns hits in reverse request order.
func (f *memFinder) FindMany(_ context.Context, collection string, ids []document.Value) ([]*document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.many++
	f.batch = append(f.batch, ids)
	if f.err != nil {
		return nil, f.err
	}
	var out []*document.Document
	for i := len(ids) - 1; i >= 0; i-- {
		if d, ok := f.docs[collection][ids[i].Key()]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *memFinder) calls() (one, many int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.one, f.many
}

var errBoom = errors.New("boom")

func newTestMapper(t *testing.T, f reference.Finder, protos ...any) *Mapper {
	t.Helper()
	m := New(f, DefaultConfig())
	for _, p := range protos {
		require.NoError(t, m.Register(p))
	}
	return m
}

func encode(t *testing.T, m *Mapper, v any) *document.Document {
	t.Helper()
	doc, err := m.Encode(v)
	require.NoError(t, err)
	return doc
}
