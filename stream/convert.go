package stream

import (
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/espalier/document"
	"github.com/jacentio/espalier/store"
)

// ConvertImage converts a stream image to a document.
func ConvertImage(image map[string]events.DynamoDBAttributeValue) (*document.Document, error) {
	return document.FromItem(convertMap(image))
}

// ConvertStreamKey converts a DynamoDB stream key to a store.PK.
// Use this when you need to convert keys from stream records to store operations.
func ConvertStreamKey(streamKey map[string]events.DynamoDBAttributeValue) store.PK {
	return store.PK(convertMap(streamKey))
}

func convertMap(m map[string]events.DynamoDBAttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue, len(m))
	for k, v := range m {
		result[k] = convertAttribute(v)
	}
	return result
}

// convertAttribute converts a stream attribute to its DynamoDB API form.
func convertAttribute(v events.DynamoDBAttributeValue) types.AttributeValue {
	switch v.DataType() {
	case events.DataTypeString:
		return &types.AttributeValueMemberS{Value: v.String()}
	case events.DataTypeNumber:
		return &types.AttributeValueMemberN{Value: v.Number()}
	case events.DataTypeBinary:
		return &types.AttributeValueMemberB{Value: v.Binary()}
	case events.DataTypeBoolean:
		return &types.AttributeValueMemberBOOL{Value: v.Boolean()}
	case events.DataTypeStringSet:
		return &types.AttributeValueMemberSS{Value: v.StringSet()}
	case events.DataTypeNumberSet:
		return &types.AttributeValueMemberNS{Value: v.NumberSet()}
	case events.DataTypeBinarySet:
		return &types.AttributeValueMemberBS{Value: v.BinarySet()}
	case events.DataTypeList:
		list := v.List()
		out := make([]types.AttributeValue, len(list))
		for i, e := range list {
			out[i] = convertAttribute(e)
		}
		return &types.AttributeValueMemberL{Value: out}
	case events.DataTypeMap:
		return &types.AttributeValueMemberM{Value: convertMap(v.Map())}
	default:
		return &types.AttributeValueMemberNULL{Value: true}
	}
}
