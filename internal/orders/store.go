package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-photobook-orderflow/internal/aws"
	"github.com/imrishuroy/go-photobook-orderflow/internal/idempotency"
)

// Global secondary indexes on the orders table, all sorted by created_sk.
const (
	IndexByCustomerEmail = "byCustomerEmail"
	IndexByStatus        = "byStatus"
	IndexByType          = "byType"
	IndexByCreatedAt     = "byCreatedAt"
)

const (
	condOrderNotExists      = "attribute_not_exists(order_id)"
	condProjectionNotExists = "attribute_not_exists(projection_id)"
	condStatusEquals        = "#s = :expected"
	condStatusAndClaim      = "#s = :expected AND processing_token = :tok"
	condClaimable           = "#s = :processing AND (attribute_not_exists(processing_token) OR processing_lease_until < :now)"

	claimUpdate = "SET processing_token = :tok, processing_lease_until = :until ADD attempts :one"
)

// Repository is the persistence contract used by the service and the processor.
type Repository interface {
	// Get returns (nil, nil) when the order does not exist.
	Get(ctx context.Context, orderID string) (*Order, error)
	// Create persists a new order, plus rec when non-nil, atomically.
	Create(ctx context.Context, order Order, rec *idempotency.Record) error
	// UpdateStatus writes upd only if the stored status is still expected.
	UpdateStatus(ctx context.Context, orderID string, expected Status, upd StatusUpdate) (*Order, error)
	// ClaimProcessing takes the processing lease on a PROCESSING order.
	ClaimProcessing(ctx context.Context, orderID, token string, now time.Time, lease time.Duration) (*Order, error)
	Query(ctx context.Context, q Query) (*Page, error)
}

// IdempotencyWriter builds the idempotency put that joins the create transaction.
type IdempotencyWriter interface {
	TransactPut(rec idempotency.Record) (types.TransactWriteItem, error)
}

type StatusUpdate struct {
	Status       Status
	ErrorMessage string
	UpdatedAt    time.Time
	// ClaimToken, when set, additionally requires the processing lease to be held with this token.
	ClaimToken string
}

type Filter struct {
	CustomerEmail string
	Status        Status
	Type          Type
}

// index picks the GSI serving f: customerEmail, then status, then type, then all orders.
func (f Filter) index() (name, attr, value string) {
	switch {
	case f.CustomerEmail != "":
		return IndexByCustomerEmail, "customer_email", f.CustomerEmail
	case f.Status != "":
		return IndexByStatus, "status", string(f.Status)
	case f.Type != "":
		return IndexByType, "order_type", string(f.Type)
	default:
		return IndexByCreatedAt, "entity_type", entityOrder
	}
}

type Query struct {
	Filter Filter
	Limit  int
	Cursor string
}

type Page struct {
	Orders     []Order
	NextCursor string
}

// Store encapsulates operations on the orders table.
type Store struct {
	client           aws.DynamoDBAPI
	tableName        string
	projectionsTable string
	idem             IdempotencyWriter
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
	}
}

// WithProjections makes Create also write the album/collage projection to table.
func (s *Store) WithProjections(table string) *Store {
	s.projectionsTable = table
	return s
}

func (s *Store) WithIdempotency(w IdempotencyWriter) *Store {
	s.idem = w
	return s
}

// Create atomically writes the order, its projection and the idempotency record
// with TransactWriteItems. A taken idempotency key yields ErrDuplicateIdempotencyKey.
func (s *Store) Create(ctx context.Context, order Order, rec *idempotency.Record) error {
	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}

	transactItems := []types.TransactWriteItem{
		{
			Put: &types.Put{
				TableName:           awsString(s.tableName),
				Item:                orderMap,
				ConditionExpression: awsString(condOrderNotExists),
			},
		},
	}

	if s.projectionsTable != "" {
		projMap, err := attributevalue.MarshalMap(NewProjection(order))
		if err != nil {
			return fmt.Errorf("marshal projection item: %w", err)
		}
		transactItems = append(transactItems, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           awsString(s.projectionsTable),
				Item:                projMap,
				ConditionExpression: awsString(condProjectionNotExists),
			},
		})
	}

	idemIndex := -1
	if rec != nil {
		if s.idem == nil {
			return fmt.Errorf("create order %s: idempotency store is not configured", order.OrderID)
		}
		put, err := s.idem.TransactPut(*rec)
		if err != nil {
			return err
		}
		idemIndex = len(transactItems)
		transactItems = append(transactItems, put)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: transactItems,
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			if idemIndex >= 0 && (len(tce.CancellationReasons) == 0 || conditionFailedAt(tce.CancellationReasons, idemIndex)) {
				return ErrDuplicateIdempotencyKey
			}
			return fmt.Errorf("transaction canceled: %w", err)
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      awsString(s.tableName),
		Key:            orderKey(orderID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// UpdateStatus conditionally moves the order from expected to upd.Status and
// releases any processing lease. Returns ErrStatusMismatch if the condition failed.
func (s *Store) UpdateStatus(ctx context.Context, orderID string, expected Status, upd StatusUpdate) (*Order, error) {
	set := []string{"#s = :new", "updated_at = :ua"}
	remove := []string{"processing_token", "processing_lease_until"}
	values := map[string]types.AttributeValue{
		":new":      &types.AttributeValueMemberS{Value: string(upd.Status)},
		":ua":       &types.AttributeValueMemberS{Value: upd.UpdatedAt.UTC().Format(time.RFC3339Nano)},
		":expected": &types.AttributeValueMemberS{Value: string(expected)},
	}
	if upd.ErrorMessage != "" {
		set = append(set, "error_message = :em")
		values[":em"] = &types.AttributeValueMemberS{Value: upd.ErrorMessage}
	} else {
		remove = append(remove, "error_message")
	}

	condition := condStatusEquals
	if upd.ClaimToken != "" {
		condition = condStatusAndClaim
		values[":tok"] = &types.AttributeValueMemberS{Value: upd.ClaimToken}
	}

	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 awsString(s.tableName),
		Key:                       orderKey(orderID),
		UpdateExpression:          awsString("SET " + strings.Join(set, ", ") + " REMOVE " + strings.Join(remove, ", ")),
		ConditionExpression:       awsString(condition),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, ErrStatusMismatch
		}
		return nil, fmt.Errorf("update item: %w", err)
	}
	return unmarshalAttributes(out.Attributes)
}

// ClaimProcessing records a processing lease on a PROCESSING order and bumps attempts.
// It fails with ErrStatusMismatch when the order left PROCESSING or another live lease exists.
func (s *Store) ClaimProcessing(ctx context.Context, orderID, token string, now time.Time, lease time.Duration) (*Order, error) {
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                awsString(s.tableName),
		Key:                      orderKey(orderID),
		UpdateExpression:         awsString(claimUpdate),
		ConditionExpression:      awsString(condClaimable),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":processing": &types.AttributeValueMemberS{Value: string(StatusProcessing)},
			":tok":        &types.AttributeValueMemberS{Value: token},
			":until":      &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(lease).UnixMilli(), 10)},
			":now":        &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
			":one":        &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, ErrStatusMismatch
		}
		return nil, fmt.Errorf("claim processing: %w", err)
	}
	return unmarshalAttributes(out.Attributes)
}

// Query returns one page of orders, newest first, from the index matching q.Filter.
func (s *Store) Query(ctx context.Context, q Query) (*Page, error) {
	index, attr, value := q.Filter.index()

	startKey, err := decodeCursor(index, value, q.Cursor)
	if err != nil {
		return nil, err
	}

	input := &dyn.QueryInput{
		TableName:                awsString(s.tableName),
		IndexName:                awsString(index),
		KeyConditionExpression:   awsString("#pk = :pk"),
		ExpressionAttributeNames: map[string]string{"#pk": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: value},
		},
		ScanIndexForward:  awsBool(false),
		ExclusiveStartKey: startKey,
	}
	if q.Limit > 0 {
		limit := int32(q.Limit)
		input.Limit = &limit
	}

	out, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", index, err)
	}

	page := &Page{Orders: make([]Order, 0, len(out.Items))}
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &page.Orders); err != nil {
		return nil, fmt.Errorf("unmarshal orders: %w", err)
	}
	if page.Orders == nil {
		page.Orders = []Order{}
	}
	if page.NextCursor, err = encodeCursor(index, value, out.LastEvaluatedKey); err != nil {
		return nil, err
	}
	return page, nil
}

func orderKey(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
}

func unmarshalAttributes(attrs map[string]types.AttributeValue) (*Order, error) {
	var o Order
	if err := attributevalue.UnmarshalMap(attrs, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}

func conditionFailedAt(reasons []types.CancellationReason, idx int) bool {
	return idx < len(reasons) && reasons[idx].Code != nil && *reasons[idx].Code == "ConditionalCheckFailed"
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
