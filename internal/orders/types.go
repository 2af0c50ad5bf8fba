package orders

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

type Status string

// Order statuses
const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Type string

const (
	TypeAlbum   Type = "album"
	TypeCollage Type = "collage"
)

// entityOrder partitions the index that lists every order.
const entityOrder = "ORDER"

// Money is a decimal amount stored as a DynamoDB number and rendered with two decimals.
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money { return Money{Decimal: d} }

func (m Money) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: m.StringFixed(2)}, nil
}

func (m *Money) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	var raw string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		raw = v.Value
	case *types.AttributeValueMemberS:
		raw = v.Value
	case *types.AttributeValueMemberNULL:
		m.Decimal = decimal.Zero
		return nil
	default:
		return fmt.Errorf("money: unsupported attribute type %T", av)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("money: %w", err)
	}
	m.Decimal = d
	return nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.StringFixed(2)), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	return m.Decimal.UnmarshalJSON(b)
}

// LineItem is an itemized order line, copied from the create request.
type LineItem struct {
	ID       string `dynamodbav:"id" json:"id"`
	Name     string `dynamodbav:"name" json:"name"`
	Quantity int    `dynamodbav:"quantity" json:"quantity"`
	Price    Money  `dynamodbav:"price" json:"price"`
}

// UserDetails is a contact snapshot taken when the order was created.
type UserDetails struct {
	Name         string `dynamodbav:"name" json:"name"`
	Email        string `dynamodbav:"email" json:"email"`
	Phone        string `dynamodbav:"phone" json:"phone"`
	Address      string `dynamodbav:"address" json:"address"`
	City         string `dynamodbav:"city" json:"city"`
	PostalCode   string `dynamodbav:"postal_code" json:"postalCode"`
	Instructions string `dynamodbav:"instructions,omitempty" json:"instructions,omitempty"`
}

type AlbumMetadata struct {
	Orientation string `dynamodbav:"orientation,omitempty" json:"orientation,omitempty"`
	PageCount   int    `dynamodbav:"page_count,omitempty" json:"pageCount,omitempty"`
	Dimensions  string `dynamodbav:"dimensions,omitempty" json:"dimensions,omitempty"`
}

type CollageMetadata struct {
	Orientation string `dynamodbav:"orientation,omitempty" json:"orientation,omitempty"`
	Layout      string `dynamodbav:"layout,omitempty" json:"layout,omitempty"`
	Dimensions  string `dynamodbav:"dimensions,omitempty" json:"dimensions,omitempty"`
}

// Metadata carries the production parameters for the order type. Only the
// variant matching Order.Type is set.
type Metadata struct {
	Album   *AlbumMetadata   `dynamodbav:"album,omitempty" json:"album,omitempty"`
	Collage *CollageMetadata `dynamodbav:"collage,omitempty" json:"collage,omitempty"`
}

// Order represents the item stored in the Orders DynamoDB table.
type Order struct {
	OrderID       string      `dynamodbav:"order_id" json:"orderId"` // PK
	EntityType    string      `dynamodbav:"entity_type" json:"-"`
	CustomerEmail string      `dynamodbav:"customer_email" json:"customerEmail"`
	CustomerID    string      `dynamodbav:"customer_id,omitempty" json:"customerId,omitempty"`
	Type          Type        `dynamodbav:"order_type" json:"type"`
	Status        Status      `dynamodbav:"status" json:"status"`
	TotalPrice    Money       `dynamodbav:"total_price" json:"totalPrice"`
	Currency      string      `dynamodbav:"currency" json:"currency"`
	PaymentMethod string      `dynamodbav:"payment_method,omitempty" json:"paymentMethod,omitempty"`
	ImageCount    int         `dynamodbav:"image_count" json:"imageCount"`
	Images        []string    `dynamodbav:"images" json:"images"`
	Items         []LineItem  `dynamodbav:"items,omitempty" json:"items,omitempty"`
	UserDetails   UserDetails `dynamodbav:"user_details" json:"userDetails"`
	SpecialNote   string      `dynamodbav:"special_note,omitempty" json:"specialNote,omitempty"`
	Metadata      *Metadata   `dynamodbav:"metadata,omitempty" json:"metadata,omitempty"`
	ErrorMessage  string      `dynamodbav:"error_message,omitempty" json:"errorMessage,omitempty"`
	ExpiresAt     int64       `dynamodbav:"expires_at,omitempty" json:"expiresAt,omitempty"` // TTL epoch seconds
	CreatedAt     time.Time   `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt     time.Time   `dynamodbav:"updated_at" json:"updatedAt"`
	CreatedSK     string      `dynamodbav:"created_sk" json:"-"` // GSI sort key

	// diagnostics, written by the processor
	Attempts             int    `dynamodbav:"attempts,omitempty" json:"attempts,omitempty"`
	ProcessingToken      string `dynamodbav:"processing_token,omitempty" json:"-"`
	ProcessingLeaseUntil int64  `dynamodbav:"processing_lease_until,omitempty" json:"-"` // epoch millis
}

// sortKeyLayout is fixed width so that keys order lexicographically by time.
const sortKeyLayout = "2006-01-02T15:04:05.000000000Z"

// SortKey builds the created_sk value: newest-first ordering is a descending scan on it.
func SortKey(createdAt time.Time, orderID string) string {
	return createdAt.UTC().Format(sortKeyLayout) + "#" + orderID
}
