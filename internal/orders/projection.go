package orders

import "time"

// Projection is the album/collage bookkeeping record written alongside an order.
type Projection struct {
	ProjectionID  string    `dynamodbav:"projection_id"` // PK
	Kind          Type      `dynamodbav:"kind"`
	OrderID       string    `dynamodbav:"order_id"`
	CustomerID    string    `dynamodbav:"customer_id,omitempty"`
	CustomerEmail string    `dynamodbav:"customer_email"`
	StoragePrefix string    `dynamodbav:"storage_prefix"`
	ImageCount    int       `dynamodbav:"image_count"`
	Status        string    `dynamodbav:"status"`
	CreatedAt     time.Time `dynamodbav:"created_at"`
}

// NewProjection derives the projection for o. Uploads for the order live under
// "{kind}s/{owner}/", owner being the customer id when known.
func NewProjection(o Order) Projection {
	owner := o.CustomerID
	if owner == "" {
		owner = o.OrderID
	}
	status := "READY"
	if o.Type == TypeCollage {
		status = "DRAFT"
	}
	return Projection{
		ProjectionID:  string(o.Type) + "#" + o.OrderID,
		Kind:          o.Type,
		OrderID:       o.OrderID,
		CustomerID:    o.CustomerID,
		CustomerEmail: o.CustomerEmail,
		StoragePrefix: string(o.Type) + "s/" + owner + "/",
		ImageCount:    o.ImageCount,
		Status:        status,
		CreatedAt:     o.CreatedAt,
	}
}
