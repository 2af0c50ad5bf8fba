package orders

import (
	"encoding/base64"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_RoundTrip(t *testing.T) {
	key := map[string]types.AttributeValue{
		"order_id":       &types.AttributeValueMemberS{Value: "o-1"},
		"created_sk":     &types.AttributeValueMemberS{Value: "2024-01-01T00:00:00.000000000Z#o-1"},
		"customer_email": &types.AttributeValueMemberS{Value: "a@example.com"},
	}

	token, err := encodeCursor(IndexByCustomerEmail, "a@example.com", key)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := decodeCursor(IndexByCustomerEmail, "a@example.com", token)
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestCursor_Empty(t *testing.T) {
	token, err := encodeCursor(IndexByStatus, "PENDING", nil)
	require.NoError(t, err)
	assert.Empty(t, token)

	key, err := decodeCursor(IndexByStatus, "PENDING", "")
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestCursor_Invalid(t *testing.T) {
	valid, err := encodeCursor(IndexByType, "album", map[string]types.AttributeValue{
		"order_id":   &types.AttributeValueMemberS{Value: "o-1"},
		"created_sk": &types.AttributeValueMemberS{Value: "sk"},
	})
	require.NoError(t, err)

	cases := []struct {
		name  string
		index string
		value string
		token string
	}{
		{"not base64", IndexByType, "album", "%%%"},
		{"not json", IndexByType, "album", base64.RawURLEncoding.EncodeToString([]byte("hello"))},
		{"missing keys", IndexByType, "album", base64.RawURLEncoding.EncodeToString([]byte(`{"i":"byType","v":"album","k":{"order_id":"o-1"}}`))},
		{"another index", IndexByStatus, "album", valid},
		{"another value", IndexByType, "collage", valid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeCursor(tc.index, tc.value, tc.token)
			assert.ErrorIs(t, err, ErrInvalidCursor)
		})
	}

	_, err = decodeCursor(IndexByType, "album", valid)
	assert.NoError(t, err)
}
