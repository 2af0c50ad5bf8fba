package idempotency

import "time"

// MaxKeyLength bounds client supplied Idempotency-Key values.
const MaxKeyLength = 255

// Record is the shape persisted in the idempotency DynamoDB table. It is
// written in the same transaction as the order it points to.
type Record struct {
	Key         string    `dynamodbav:"idempotency_key"` // PK
	OrderID     string    `dynamodbav:"order_id"`
	Fingerprint string    `dynamodbav:"fingerprint"` // sha256 of the create request
	CreatedAt   time.Time `dynamodbav:"created_at"`
	ExpiresAt   int64     `dynamodbav:"expires_at"` // TTL epoch seconds
}
