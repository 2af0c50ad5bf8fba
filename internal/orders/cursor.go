package orders

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type cursorPayload struct {
	Index string            `json:"i"`
	Value string            `json:"v"`
	Key   map[string]string `json:"k"`
}

// encodeCursor turns a LastEvaluatedKey into an opaque, URL-safe token bound to
// index and the partition value it was queried with.
func encodeCursor(index, value string, key map[string]types.AttributeValue) (string, error) {
	if len(key) == 0 {
		return "", nil
	}
	var flat map[string]string
	if err := attributevalue.UnmarshalMap(key, &flat); err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	raw, err := json.Marshal(cursorPayload{Index: index, Value: value, Key: flat})
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// decodeCursor returns the ExclusiveStartKey for a query on index and value.
// An empty token means the first page.
func decodeCursor(index, value, token string) (map[string]types.AttributeValue, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrInvalidCursor
	}
	if payload.Index != index || payload.Value != value || payload.Key["order_id"] == "" || payload.Key["created_sk"] == "" {
		return nil, ErrInvalidCursor
	}
	key, err := attributevalue.MarshalMap(payload.Key)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return key, nil
}
