package document

import (
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// FromItem converts a DynamoDB item into a document.
// DynamoDB maps carry no order, so fields are sorted by name.
func FromItem(item map[string]types.AttributeValue) (*Document, error) {
	names := make([]string, 0, len(item))
	for k := range item {
		names = append(names, k)
	}
	sort.Strings(names)

	d := &Document{fields: make([]Field, 0, len(names))}
	for _, name := range names {
		v, err := FromAttributeValue(item[name])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		d.fields = append(d.fields, Field{Name: name, Value: v})
	}
	return d, nil
}

// FromAttributeValue converts a single DynamoDB attribute. Sets become arrays.
func FromAttributeValue(av types.AttributeValue) (Value, error) {
	switch a := av.(type) {
	case nil:
		return Null(), nil
	case *types.AttributeValueMemberNULL:
		return Null(), nil
	case *types.AttributeValueMemberS:
		return String(a.Value), nil
	case *types.AttributeValueMemberN:
		return Number(a.Value)
	case *types.AttributeValueMemberBOOL:
		return Bool(a.Value), nil
	case *types.AttributeValueMemberB:
		return Binary(a.Value), nil
	case *types.AttributeValueMemberM:
		d, err := FromItem(a.Value)
		if err != nil {
			return Value{}, err
		}
		return Doc(d), nil
	case *types.AttributeValueMemberL:
		out := make([]Value, len(a.Value))
		for i, e := range a.Value {
			v, err := FromAttributeValue(e)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = v
		}
		return Array(out...), nil
	case *types.AttributeValueMemberSS:
		out := make([]Value, len(a.Value))
		for i, s := range a.Value {
			out[i] = String(s)
		}
		return Array(out...), nil
	case *types.AttributeValueMemberNS:
		out := make([]Value, len(a.Value))
		for i, s := range a.Value {
			n, err := Number(s)
			if err != nil {
				return Value{}, err
			}
			out[i] = n
		}
		return Array(out...), nil
	case *types.AttributeValueMemberBS:
		out := make([]Value, len(a.Value))
		for i, b := range a.Value {
			out[i] = Binary(b)
		}
		return Array(out...), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported attribute %T", ErrKind, av)
	}
}

// Item converts the document into a DynamoDB item.
func (d *Document) Item() map[string]types.AttributeValue {
	item := make(map[string]types.AttributeValue, d.Len())
	for _, f := range d.Fields() {
		item[f.Name] = ToAttributeValue(f.Value)
	}
	return item
}

// ToAttributeValue converts a value into a DynamoDB attribute.
func ToAttributeValue(v Value) types.AttributeValue {
	switch v.kind {
	case KindString:
		return &types.AttributeValueMemberS{Value: v.str}
	case KindNumber:
		return &types.AttributeValueMemberN{Value: v.str}
	case KindBool:
		return &types.AttributeValueMemberBOOL{Value: v.b}
	case KindBinary:
		return &types.AttributeValueMemberB{Value: v.bin}
	case KindDocument:
		return &types.AttributeValueMemberM{Value: v.doc.Item()}
	case KindArray:
		out := make([]types.AttributeValue, len(v.arr))
		for i, e := range v.arr {
			out[i] = ToAttributeValue(e)
		}
		return &types.AttributeValueMemberL{Value: out}
	default:
		return &types.AttributeValueMemberNULL{Value: true}
	}
}

// ValueOf encodes a free-form Go value (maps, slices, scalars, plain structs)
// using the DynamoDB attribute marshaler.
func ValueOf(x any) (Value, error) {
	if v, ok := x.(Value); ok {
		return v, nil
	}
	if d, ok := x.(*Document); ok {
		return Doc(d), nil
	}
	av, err := attributevalue.Marshal(x)
	if err != nil {
		return Value{}, fmt.Errorf("marshal %T: %w", x, err)
	}
	return FromAttributeValue(av)
}
