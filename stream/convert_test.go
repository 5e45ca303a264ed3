package stream

import (
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/espalier/document"
)

func TestConvertStreamKey(t *testing.T) {
	tests := []struct {
		name string
		key  map[string]events.DynamoDBAttributeValue
		want map[string]types.AttributeValue
	}{
		{"nil", nil, map[string]types.AttributeValue{}},
		{
			"string",
			map[string]events.DynamoDBAttributeValue{"id": events.NewStringAttribute("test-id")},
			map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "test-id"}},
		},
		{
			"number",
			map[string]events.DynamoDBAttributeValue{"version": events.NewNumberAttribute("-42.5")},
			map[string]types.AttributeValue{"version": &types.AttributeValueMemberN{Value: "-42.5"}},
		},
		{
			"binary",
			map[string]events.DynamoDBAttributeValue{"hash": events.NewBinaryAttribute([]byte{0x01, 0x02})},
			map[string]types.AttributeValue{"hash": &types.AttributeValueMemberB{Value: []byte{0x01, 0x02}}},
		},
		{
			"composite",
			map[string]events.DynamoDBAttributeValue{
				"pk": events.NewStringAttribute("parent#123"),
				"sk": events.NewStringAttribute("child#456"),
			},
			map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: "parent#123"},
				"sk": &types.AttributeValueMemberS{Value: "child#456"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pk := ConvertStreamKey(tt.key)
			require.NotNil(t, pk)
			assert.Equal(t, tt.want, map[string]types.AttributeValue(pk))
		})
	}
}

func TestConvertImage(t *testing.T) {
	img := map[string]events.DynamoDBAttributeValue{
		"id":     events.NewStringAttribute("c1"),
		"age":    events.NewNumberAttribute("41"),
		"active": events.NewBooleanAttribute(true),
		"note":   events.NewNullAttribute(),
		"tags":   events.NewStringSetAttribute([]string{"a", "b"}),
		"scores": events.NewNumberSetAttribute([]string{"1", "2"}),
		"blobs":  events.NewBinarySetAttribute([][]byte{{0x01}}),
		"list":   events.NewListAttribute([]events.DynamoDBAttributeValue{events.NewStringAttribute("x")}),
	}
	img["address"] = events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
		"town": events.NewStringAttribute("Leeds"),
	})

	doc, err := ConvertImage(img)
	require.NoError(t, err)
	assert.Equal(t, []string{"active", "address", "age", "blobs", "id", "list", "note", "scores", "tags"}, doc.Names())

	want := document.New(
		document.Field{Name: "active", Value: document.Bool(true)},
		document.Field{Name: "address", Value: document.Doc(document.New(
			document.Field{Name: "town", Value: document.String("Leeds")},
		))},
		document.Field{Name: "age", Value: document.Int(41)},
		document.Field{Name: "blobs", Value: document.Array(document.Binary([]byte{0x01}))},
		document.Field{Name: "id", Value: document.String("c1")},
		document.Field{Name: "list", Value: document.Array(document.String("x"))},
		document.Field{Name: "note", Value: document.Null()},
		document.Field{Name: "scores", Value: document.Array(document.Int(1), document.Int(2))},
		document.Field{Name: "tags", Value: document.Array(document.String("a"), document.String("b"))},
	)
	assert.True(t, want.Equal(doc), "got %s", doc)
}

func TestConvertImage_BadNumber(t *testing.T) {
	_, err := ConvertImage(map[string]events.DynamoDBAttributeValue{
		"age": events.NewNumberAttribute("forty"),
	})
	assert.Error(t, err)
}

func TestGetNumberAttr(t *testing.T) {
	tests := []struct {
		name  string
		image map[string]events.DynamoDBAttributeValue
		want  int64
	}{
		{"valid", map[string]events.DynamoDBAttributeValue{"ttl": events.NewNumberAttribute("1700000000")}, 1700000000},
		{"negative", map[string]events.DynamoDBAttributeValue{"ttl": events.NewNumberAttribute("-5")}, -5},
		{"missing", map[string]events.DynamoDBAttributeValue{"other": events.NewNumberAttribute("1")}, 0},
		{"nil image", nil, 0},
		{"string attribute", map[string]events.DynamoDBAttributeValue{"ttl": events.NewStringAttribute("12")}, 0},
		{"not an integer", map[string]events.DynamoDBAttributeValue{"ttl": events.NewNumberAttribute("1.5")}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getNumberAttr(tt.image, "ttl"))
		})
	}
}

func BenchmarkConvertImage(b *testing.B) {
	img := map[string]events.DynamoDBAttributeValue{
		"id":   events.NewStringAttribute("c1"),
		"name": events.NewStringAttribute("Ann"),
		"tags": events.NewListAttribute([]events.DynamoDBAttributeValue{events.NewStringAttribute("x")}),
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ConvertImage(img)
	}
}
