package orders

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is an in-memory DynamoDB that understands the condition and update
// expressions issued by Store and idempotency.Store.
// It stores items per table in a nested map: table -> pkValue -> item map.
type mockDynamo struct {
	mu        sync.Mutex
	tables    map[string]map[string]map[string]types.AttributeValue
	errs      map[string]error // injected failures per operation name
	blockGets bool             // GetItem waits for ctx cancellation
	queries   []*dyn.QueryInput
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{
		tables: map[string]map[string]map[string]types.AttributeValue{},
		errs:   map[string]error{},
	}
}

func (m *mockDynamo) table(name string) map[string]map[string]types.AttributeValue {
	if _, ok := m.tables[name]; !ok {
		m.tables[name] = map[string]map[string]types.AttributeValue{}
	}
	return m.tables[name]
}

func pkOf(item map[string]types.AttributeValue) (string, error) {
	for _, attr := range []string{"projection_id", "idempotency_key", "order_id"} {
		if v, ok := item[attr].(*types.AttributeValueMemberS); ok {
			return v.Value, nil
		}
	}
	return "", errors.New("no primary key")
}

func str(av types.AttributeValue) string {
	if v, ok := av.(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func num(av types.AttributeValue) int64 {
	if v, ok := av.(*types.AttributeValueMemberN); ok {
		n, _ := strconv.ParseInt(v.Value, 10, 64)
		return n
	}
	return 0
}

func clone(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func (m *mockDynamo) condition(expr *string, item map[string]types.AttributeValue, values map[string]types.AttributeValue) (bool, error) {
	if expr == nil {
		return true, nil
	}
	switch *expr {
	case condOrderNotExists, condProjectionNotExists, "attribute_not_exists(idempotency_key)":
		return item == nil, nil
	case condStatusEquals:
		return item != nil && str(item["status"]) == str(values[":expected"]), nil
	case condStatusAndClaim:
		return item != nil && str(item["status"]) == str(values[":expected"]) &&
			str(item["processing_token"]) == str(values[":tok"]), nil
	case condClaimable:
		if item == nil || str(item["status"]) != str(values[":processing"]) {
			return false, nil
		}
		_, held := item["processing_token"]
		return !held || num(item["processing_lease_until"]) < num(values[":now"]), nil
	default:
		return false, fmt.Errorf("mock: unsupported condition %q", *expr)
	}
}

var updateClause = regexp.MustCompile(`\b(SET|REMOVE|ADD)\s+`)

func applyUpdate(item map[string]types.AttributeValue, expr string, names map[string]string, values map[string]types.AttributeValue) {
	resolve := func(n string) string {
		n = strings.TrimSpace(n)
		if strings.HasPrefix(n, "#") {
			return names[n]
		}
		return n
	}
	locs := updateClause.FindAllStringSubmatchIndex(expr, -1)
	for i, loc := range locs {
		action := expr[loc[2]:loc[3]]
		end := len(expr)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		for _, part := range strings.Split(expr[loc[1]:end], ",") {
			part = strings.TrimSpace(part)
			switch action {
			case "SET":
				kv := strings.SplitN(part, "=", 2)
				item[resolve(kv[0])] = values[strings.TrimSpace(kv[1])]
			case "REMOVE":
				delete(item, resolve(part))
			case "ADD":
				f := strings.Fields(part)
				name := resolve(f[0])
				item[name] = &types.AttributeValueMemberN{Value: strconv.FormatInt(num(item[name])+num(values[f[1]]), 10)}
			}
		}
	}
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk, err := pkOf(params.Item)
	if err != nil {
		return nil, err
	}
	tbl := m.table(*params.TableName)
	ok, err := m.condition(params.ConditionExpression, tbl[pk], params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	tbl[pk] = clone(params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	if m.blockGets {
		<-ctx.Done()
		return nil, fmt.Errorf("operation error DynamoDB: GetItem: %w", ctx.Err())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs["GetItem"]; err != nil {
		return nil, err
	}
	pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.table(*params.TableName)[pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: clone(item)}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs["UpdateItem"]; err != nil {
		return nil, err
	}
	pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	tbl := m.table(*params.TableName)
	current := tbl[pk]
	ok, err := m.condition(params.ConditionExpression, current, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	next := clone(current)
	applyUpdate(next, *params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	tbl[pk] = next
	return &dyn.UpdateItemOutput{Attributes: clone(next)}, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs["TransactWriteItems"]; err != nil {
		return nil, err
	}

	reasons := make([]types.CancellationReason, len(params.TransactItems))
	canceled := false
	for i, it := range params.TransactItems {
		p := it.Put
		pk, err := pkOf(p.Item)
		if err != nil {
			return nil, err
		}
		ok, err := m.condition(p.ConditionExpression, m.table(*p.TableName)[pk], p.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		code := "None"
		if !ok {
			code = "ConditionalCheckFailed"
			canceled = true
		}
		reasons[i] = types.CancellationReason{Code: &code}
	}
	if canceled {
		return nil, &types.TransactionCanceledException{CancellationReasons: reasons}
	}

	for _, it := range params.TransactItems {
		pk, _ := pkOf(it.Put.Item)
		m.table(*it.Put.TableName)[pk] = clone(it.Put.Item)
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (m *mockDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, params)

	attr := params.ExpressionAttributeNames["#pk"]
	value := str(params.ExpressionAttributeValues[":pk"])

	var matches []map[string]types.AttributeValue
	for _, item := range m.table(*params.TableName) {
		if str(item[attr]) == value {
			matches = append(matches, item)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return str(matches[i]["created_sk"]) > str(matches[j]["created_sk"])
	})

	if start := params.ExclusiveStartKey; start != nil {
		after := str(start["created_sk"])
		filtered := matches[:0]
		for _, item := range matches {
			if str(item["created_sk"]) < after {
				filtered = append(filtered, item)
			}
		}
		matches = filtered
	}

	out := &dyn.QueryOutput{}
	if params.Limit != nil && len(matches) > int(*params.Limit) {
		matches = matches[:*params.Limit]
		last := matches[len(matches)-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"order_id":   last["order_id"],
			"created_sk": last["created_sk"],
			attr:         last[attr],
		}
	}
	for _, item := range matches {
		out.Items = append(out.Items, clone(item))
	}
	return out, nil
}
