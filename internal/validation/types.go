package validation

import "github.com/shopspring/decimal"

// Item is a single itemized order line.
type Item struct {
	ID       string           `json:"id" validate:"required,notblank"`
	Name     string           `json:"name" validate:"required,notblank"`
	Quantity int              `json:"quantity" validate:"gt=0"`
	Price    *decimal.Decimal `json:"price" validate:"required,gte=0"`
}

// UserDetails is the contact snapshot stored with the order.
type UserDetails struct {
	Name         string `json:"name" validate:"required,notblank"`
	Email        string `json:"email" validate:"required,notblank,email"`
	Phone        string `json:"phone" validate:"required,notblank"`
	Address      string `json:"address" validate:"required,notblank"`
	City         string `json:"city" validate:"required,notblank"`
	PostalCode   string `json:"postalCode" validate:"required,notblank"`
	Instructions string `json:"instructions,omitempty" validate:"max=1000"`
}

type AlbumMetadata struct {
	Orientation string `json:"orientation,omitempty" validate:"omitempty,oneof=portrait landscape square"`
	PageCount   int    `json:"pageCount,omitempty" validate:"omitempty,min=1,max=500"`
	Dimensions  string `json:"dimensions,omitempty" validate:"max=32"`
}

type CollageMetadata struct {
	Orientation string `json:"orientation,omitempty" validate:"omitempty,oneof=portrait landscape square"`
	Layout      string `json:"layout,omitempty" validate:"omitempty,oneof=grid mosaic freeform"`
	Dimensions  string `json:"dimensions,omitempty" validate:"max=32"`
}

// Metadata holds exactly one variant, matching the order type.
type Metadata struct {
	Album   *AlbumMetadata   `json:"album,omitempty"`
	Collage *CollageMetadata `json:"collage,omitempty"`
}

// CreateOrderRequest is the payload for POST /orders.
type CreateOrderRequest struct {
	CustomerEmail string           `json:"customerEmail" validate:"required,email"`
	CustomerID    string           `json:"customerId,omitempty" validate:"max=128"`
	Type          string           `json:"type" validate:"required,oneof=album collage"`
	Images        []string         `json:"images" validate:"required,min=1,dive,required,notblank"`
	ImageCount    int              `json:"imageCount,omitempty" validate:"omitempty,min=1"`
	UserDetails   *UserDetails     `json:"userDetails" validate:"required"`
	Currency      string           `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
	PaymentMethod string           `json:"paymentMethod,omitempty" validate:"omitempty,oneof=bank_transfer card_payment"`
	SpecialNote   string           `json:"specialNote,omitempty" validate:"max=1000"`
	Metadata      *Metadata        `json:"metadata,omitempty"`
	Items         []Item           `json:"items,omitempty" validate:"omitempty,dive"`
	TotalPrice    *decimal.Decimal `json:"totalPrice,omitempty" validate:"omitempty,gte=0"`
}

// UpdateStatusRequest is the payload for PATCH /orders/:orderId/status.
type UpdateStatusRequest struct {
	Status       string `json:"status" validate:"required,oneof=PENDING PROCESSING COMPLETED FAILED"`
	ErrorMessage string `json:"errorMessage,omitempty" validate:"max=1000"`
}

// ListOrdersRequest carries the GET /orders query. At most one filter is used,
// customerEmail first, then status, then type.
type ListOrdersRequest struct {
	CustomerEmail string `json:"customerEmail,omitempty" validate:"omitempty,email"`
	Status        string `json:"status,omitempty" validate:"omitempty,oneof=PENDING PROCESSING COMPLETED FAILED"`
	Type          string `json:"type,omitempty" validate:"omitempty,oneof=album collage"`
	Limit         *int   `json:"limit,omitempty" validate:"omitempty,gt=0"`
	Cursor        string `json:"cursor,omitempty"`
}
