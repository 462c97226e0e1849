// Package testutil provides an in-memory DynamoDB stand-in for unit tests.
//
// FakeDynamo understands exactly the condition and filter expressions the
// stores in this module issue; anything else is rejected so a test never
// passes against an expression the fake silently ignored.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// KeySchema names a table's key attributes. SortKey may be empty.
type KeySchema struct {
	PartitionKey string
	SortKey      string
}

// FakeDynamo is a mutex-guarded map of tables: table -> composite key -> item.
type FakeDynamo struct {
	mu      sync.Mutex
	schemas map[string]KeySchema
	tables  map[string]map[string]map[string]types.AttributeValue

	// Err, when set, is returned by every call.
	Err error

	PutCalls      int
	GetCalls      int
	QueryCalls    int
	TransactCalls int
}

func NewFakeDynamo() *FakeDynamo {
	return &FakeDynamo{
		schemas: map[string]KeySchema{},
		tables:  map[string]map[string]map[string]types.AttributeValue{},
	}
}

// CreateTable registers a table and its key schema.
func (f *FakeDynamo) CreateTable(name string, schema KeySchema) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schemas[name] = schema
	f.tables[name] = map[string]map[string]types.AttributeValue{}
}

// Items returns a snapshot of every item in table, ordered by key.
func (f *FakeDynamo) Items(table string) []map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.tables[table]))
	for k := range f.tables[table] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]map[string]types.AttributeValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, f.tables[table][k])
	}
	return out
}

// Seed writes item unconditionally.
func (f *FakeDynamo) Seed(table string, item map[string]types.AttributeValue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, err := f.keyOf(table, item)
	if err != nil {
		return err
	}
	f.tables[table][k] = item
	return nil
}

func (f *FakeDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PutCalls++
	if f.Err != nil {
		return nil, f.Err
	}

	table := aws.ToString(params.TableName)
	k, err := f.keyOf(table, params.Item)
	if err != nil {
		return nil, err
	}
	ok, err := f.check(f.tables[table][k], params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	f.tables[table][k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (f *FakeDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetCalls++
	if f.Err != nil {
		return nil, f.Err
	}

	table := aws.ToString(params.TableName)
	k, err := f.keyOf(table, params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := f.tables[table][k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

// Query supports "#pk = :pk" key conditions and an optional "#ttl > :now" filter.
func (f *FakeDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.QueryCalls++
	if f.Err != nil {
		return nil, f.Err
	}

	table := aws.ToString(params.TableName)
	schema, ok := f.schemas[table]
	if !ok {
		return nil, fmt.Errorf("fake dynamo: unknown table %q", table)
	}
	if aws.ToString(params.KeyConditionExpression) != "#pk = :pk" || params.ExpressionAttributeNames["#pk"] != schema.PartitionKey {
		return nil, fmt.Errorf("fake dynamo: unsupported key condition %q", aws.ToString(params.KeyConditionExpression))
	}
	want, ok := params.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("fake dynamo: :pk must be a string")
	}

	var items []map[string]types.AttributeValue
	for _, item := range f.tables[table] {
		pk, ok := item[schema.PartitionKey].(*types.AttributeValueMemberS)
		if !ok || pk.Value != want.Value {
			continue
		}
		keep, err := f.filter(item, params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if keep {
			items = append(items, item)
		}
	}
	if schema.SortKey != "" {
		sort.Slice(items, func(i, j int) bool {
			return stringAttr(items[i][schema.SortKey]) < stringAttr(items[j][schema.SortKey])
		})
	}
	return &dyn.QueryOutput{Items: items, Count: int32(len(items))}, nil
}

// TransactWriteItems applies Put entries all-or-nothing.
func (f *FakeDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TransactCalls++
	if f.Err != nil {
		return nil, f.Err
	}

	type write struct {
		table, key string
		item       map[string]types.AttributeValue
	}
	writes := make([]write, 0, len(params.TransactItems))
	reasons := make([]types.CancellationReason, len(params.TransactItems))
	failed := false
	seen := map[string]bool{}

	for i, it := range params.TransactItems {
		p := it.Put
		if p == nil {
			return nil, errors.New("fake dynamo: only Put transact items are supported")
		}
		table := aws.ToString(p.TableName)
		k, err := f.keyOf(table, p.Item)
		if err != nil {
			return nil, err
		}
		if seen[table+"/"+k] {
			return nil, errors.New("fake dynamo: transaction contains duplicate keys")
		}
		seen[table+"/"+k] = true

		ok, err := f.check(f.tables[table][k], p.ConditionExpression, p.ExpressionAttributeNames, p.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if ok {
			reasons[i] = types.CancellationReason{Code: aws.String("None")}
		} else {
			reasons[i] = types.CancellationReason{Code: aws.String("ConditionalCheckFailed")}
			failed = true
		}
		writes = append(writes, write{table: table, key: k, item: p.Item})
	}

	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}
	for _, w := range writes {
		f.tables[w.table][w.key] = w.item
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (f *FakeDynamo) keyOf(table string, item map[string]types.AttributeValue) (string, error) {
	schema, ok := f.schemas[table]
	if !ok {
		return "", fmt.Errorf("fake dynamo: unknown table %q", table)
	}
	pk, ok := item[schema.PartitionKey].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("fake dynamo: missing partition key %q", schema.PartitionKey)
	}
	if schema.SortKey == "" {
		return pk.Value, nil
	}
	sk, ok := item[schema.SortKey].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("fake dynamo: missing sort key %q", schema.SortKey)
	}
	return pk.Value + "\x00" + sk.Value, nil
}

// check evaluates the condition expressions the stores use, each term
// optionally joined with " OR ":
//
//	attribute_not_exists(<attr>)
//	#ttl <= :now
//	#v = :expected AND #ttl = :readTtl
func (f *FakeDynamo) check(existing map[string]types.AttributeValue, cond *string, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	if cond == nil {
		return true, nil
	}
	for _, alt := range strings.Split(*cond, " OR ") {
		all := true
		for _, term := range strings.Split(alt, " AND ") {
			ok, err := f.term(existing, strings.TrimSpace(term), names, values)
			if err != nil {
				return false, err
			}
			all = all && ok
		}
		if all {
			return true, nil
		}
	}
	return false, nil
}

func (f *FakeDynamo) term(existing map[string]types.AttributeValue, expr string, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	switch {
	case strings.HasPrefix(expr, "attribute_not_exists(") && strings.HasSuffix(expr, ")"):
		return existing == nil, nil
	case expr == "#ttl <= :now":
		if existing == nil {
			return false, nil
		}
		cur, ok := existing[names["#ttl"]].(*types.AttributeValueMemberN)
		now, ok2 := values[":now"].(*types.AttributeValueMemberN)
		if !ok || !ok2 {
			return false, nil
		}
		a, err1 := strconv.ParseInt(cur.Value, 10, 64)
		b, err2 := strconv.ParseInt(now.Value, 10, 64)
		if err1 != nil || err2 != nil {
			return false, errors.New("fake dynamo: ttl comparison needs integers")
		}
		return a <= b, nil
	case expr == "#v = :expected", expr == "#ttl = :readTtl":
		if existing == nil {
			return false, nil
		}
		name, placeholder, _ := strings.Cut(expr, " = ")
		cur, ok := existing[names[name]].(*types.AttributeValueMemberN)
		want, ok2 := values[placeholder].(*types.AttributeValueMemberN)
		if !ok || !ok2 {
			return false, nil
		}
		return numEqual(cur.Value, want.Value), nil
	}
	return false, fmt.Errorf("fake dynamo: unsupported condition %q", expr)
}

func (f *FakeDynamo) filter(item map[string]types.AttributeValue, expr *string, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	if expr == nil {
		return true, nil
	}
	if *expr != "#ttl > :now" {
		return false, fmt.Errorf("fake dynamo: unsupported filter %q", *expr)
	}
	cur, ok := item[names["#ttl"]].(*types.AttributeValueMemberN)
	if !ok {
		return false, nil
	}
	now, ok := values[":now"].(*types.AttributeValueMemberN)
	if !ok {
		return false, errors.New("fake dynamo: :now must be a number")
	}
	a, err1 := strconv.ParseInt(cur.Value, 10, 64)
	b, err2 := strconv.ParseInt(now.Value, 10, 64)
	if err1 != nil || err2 != nil {
		return false, errors.New("fake dynamo: ttl comparison needs integers")
	}
	return a > b, nil
}

func numEqual(a, b string) bool {
	x, err1 := strconv.ParseInt(a, 10, 64)
	y, err2 := strconv.ParseInt(b, 10, 64)
	if err1 != nil || err2 != nil {
		return a == b
	}
	return x == y
}

func stringAttr(v types.AttributeValue) string {
	if s, ok := v.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}
