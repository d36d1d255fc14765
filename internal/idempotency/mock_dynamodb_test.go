package idempotency

import (
	"context"
	"errors"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// simpleMock is a small in-memory table understanding the expressions Store issues.
type simpleMock struct {
	mu          sync.Mutex
	table       map[string]map[string]types.AttributeValue
	putCalls    int
	getCalls    int
	updateCalls int
	failNext    error
}

func newSimpleMock() *simpleMock {
	return &simpleMock{
		table: map[string]map[string]types.AttributeValue{},
	}
}

func keyOf(m map[string]types.AttributeValue) (string, error) {
	attr, ok := m["idempotency_key"].(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("missing key")
	}
	return attr.Value, nil
}

func (m *simpleMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	k, err := keyOf(params.Item)
	if err != nil {
		return nil, err
	}
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(idempotency_key)" {
		if _, ok := m.table[k]; ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.table[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *simpleMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	k, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.table[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

// setAttrs maps value placeholders to the attribute they SET.
var setAttrs = map[string]string{
	":status":   "status",
	":order_id": "order_id",
	":total":    "total",
	":note":     "note",
	":ua":       "updated_at",
}

func (m *simpleMock) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	k, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.table[k]
	if !ok {
		return nil, errors.New("item not found")
	}

	vals := params.ExpressionAttributeValues
	if cond := params.ConditionExpression; cond != nil {
		for _, part := range strings.Split(*cond, " AND ") {
			if !holds(item, vals, part) {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}

	// ADD and DELETE clauses are "<set attribute> <placeholder>"
	for _, c := range setClauses(*params.UpdateExpression) {
		items, ok := vals[c.placeholder].(*types.AttributeValueMemberSS)
		if !ok {
			continue
		}
		set := stringSet(item, c.attr)
		if c.op == "ADD" {
			for _, id := range items.Value {
				if !contains(set, id) {
					set = append(set, id)
				}
			}
		} else {
			kept := set[:0]
			for _, id := range set {
				if !contains(items.Value, id) {
					kept = append(kept, id)
				}
			}
			set = kept
		}
		// DynamoDB drops a set attribute once it is empty
		if len(set) == 0 {
			delete(item, c.attr)
		} else {
			item[c.attr] = &types.AttributeValueMemberSS{Value: set}
		}
	}
	for placeholder, attr := range setAttrs {
		if v, ok := vals[placeholder]; ok {
			item[attr] = v
		}
	}
	m.table[k] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *simpleMock) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

type setClause struct {
	op, attr, placeholder string
}

func setClauses(expr string) []setClause {
	var out []setClause
	fields := strings.Fields(expr)
	for i := 0; i+2 < len(fields); i++ {
		if fields[i] == "ADD" || fields[i] == "DELETE" {
			out = append(out, setClause{op: fields[i], attr: fields[i+1], placeholder: fields[i+2]})
		}
	}
	return out
}

// holds evaluates the condition functions Store uses.
func holds(item map[string]types.AttributeValue, vals map[string]types.AttributeValue, cond string) bool {
	cond = strings.TrimSpace(cond)
	switch {
	case strings.HasPrefix(cond, "attribute_exists("):
		_, ok := item[strings.TrimSuffix(strings.TrimPrefix(cond, "attribute_exists("), ")")]
		return ok
	case strings.HasPrefix(cond, "attribute_not_exists("):
		_, ok := item[strings.TrimSuffix(strings.TrimPrefix(cond, "attribute_not_exists("), ")")]
		return !ok
	case strings.HasPrefix(cond, "contains("):
		args := strings.Split(strings.TrimSuffix(strings.TrimPrefix(cond, "contains("), ")"), ",")
		id := vals[strings.TrimSpace(args[1])].(*types.AttributeValueMemberS).Value
		return contains(stringSet(item, strings.TrimSpace(args[0])), id)
	}
	return true
}

func stringSet(item map[string]types.AttributeValue, attr string) []string {
	if ss, ok := item[attr].(*types.AttributeValueMemberSS); ok {
		return append([]string(nil), ss.Value...)
	}
	return nil
}

func contains(set []string, id string) bool {
	for _, s := range set {
		if s == id {
			return true
		}
	}
	return false
}
