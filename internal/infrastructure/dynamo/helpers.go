package dynamo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// updateExpr is a SET expression with its placeholder maps.
type updateExpr struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// exprBuilder allocates #fN / :vN placeholders for update and condition
// expressions that share one set of attribute maps.
type exprBuilder struct {
	names  map[string]string
	values map[string]types.AttributeValue
	sets   []string
	conds  []string
}

func newExprBuilder() *exprBuilder {
	return &exprBuilder{
		names:  make(map[string]string),
		values: make(map[string]types.AttributeValue),
	}
}

// path returns a placeholder document path such as "#f0.#f1".
func (b *exprBuilder) path(segments ...string) string {
	parts := make([]string, len(segments))
	for i, s := range segments {
		key := fmt.Sprintf("#f%d", len(b.names))
		b.names[key] = s
		parts[i] = key
	}
	return strings.Join(parts, ".")
}

// value marshals v and returns its placeholder.
func (b *exprBuilder) value(v interface{}) (string, error) {
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf(":v%d", len(b.values))
	b.values[key] = av
	return key, nil
}

// set appends "path = value" to the SET clause.
func (b *exprBuilder) set(v interface{}, segments ...string) error {
	p := b.path(segments...)
	val, err := b.value(v)
	if err != nil {
		return fmt.Errorf("marshal field %s: %w", strings.Join(segments, "."), err)
	}
	b.sets = append(b.sets, p+" = "+val)
	return nil
}

// increment appends "path = path + 1" to the SET clause.
func (b *exprBuilder) increment(segments ...string) error {
	p := b.path(segments...)
	one, err := b.value(1)
	if err != nil {
		return err
	}
	b.sets = append(b.sets, p+" = "+p+" + "+one)
	return nil
}

// when appends a condition clause; all clauses are ANDed.
func (b *exprBuilder) when(cond string) {
	b.conds = append(b.conds, cond)
}

func (b *exprBuilder) update() (updateExpr, error) {
	if len(b.sets) == 0 {
		return updateExpr{}, errors.New("no fields to update")
	}
	return updateExpr{
		Expr:   "SET " + strings.Join(b.sets, ", "),
		Names:  b.names,
		Values: b.values,
	}, nil
}

// condition returns the ANDed condition, or nil when there is none.
func (b *exprBuilder) condition() *string {
	if len(b.conds) == 0 {
		return nil
	}
	c := strings.Join(b.conds, " AND ")
	return &c
}

// valuesOrNil avoids sending an empty ExpressionAttributeValues map, which
// DynamoDB rejects.
func (b *exprBuilder) valuesOrNil() map[string]types.AttributeValue {
	if len(b.values) == 0 {
		return nil
	}
	return b.values
}
