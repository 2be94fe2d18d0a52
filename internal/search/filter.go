package search

import (
	"fmt"
	"strings"

	"github.com/apidex/apidex/internal/apperrors"
)

// FilterOp is a predicate operator.
type FilterOp string

const (
	OpEq       FilterOp = "eq"
	OpNe       FilterOp = "ne"
	OpGt       FilterOp = "gt"
	OpLt       FilterOp = "lt"
	OpContains FilterOp = "contains"
	OpIn       FilterOp = "in"
	OpNin      FilterOp = "nin"
	OpExists   FilterOp = "exists"
)

// CombinatorOp joins child expressions.
type CombinatorOp string

const (
	CombAnd CombinatorOp = "and"
	CombOr  CombinatorOp = "or"
	CombNot CombinatorOp = "not"
)

// MaxFilterDepth bounds filter tree recursion. Trees deeper than this
// are rejected as too complex before retrieval starts.
const MaxFilterDepth = 32

// FilterExpression is one node of a filter tree: either a predicate
// leaf (Field/Op/Value set) or a combinator (Combinator/Children set).
// A node with both or neither is invalid.
type FilterExpression struct {
	// Predicate leaf.
	Field string   `json:"field,omitempty" yaml:"field,omitempty"`
	Op    FilterOp `json:"op,omitempty" yaml:"op,omitempty"`
	Value any      `json:"value,omitempty" yaml:"value,omitempty"`

	// Combinator node. NOT takes exactly one child; AND and OR take
	// at least one.
	Combinator CombinatorOp        `json:"combinator,omitempty" yaml:"combinator,omitempty"`
	Children   []*FilterExpression `json:"children,omitempty" yaml:"children,omitempty"`
}

// IsPredicate reports whether the node is a predicate leaf.
func (e *FilterExpression) IsPredicate() bool {
	return e.Combinator == ""
}

// Validate checks structural well-formedness and depth. It runs once
// per request before any retrieval work.
func (e *FilterExpression) Validate(maxDepth int) error {
	if maxDepth <= 0 {
		maxDepth = MaxFilterDepth
	}
	return e.validate(1, maxDepth)
}

func (e *FilterExpression) validate(depth, maxDepth int) error {
	if e == nil {
		return apperrors.New(apperrors.ErrCodeInvalidFilter, "filter contains a nil node", nil)
	}
	if depth > maxDepth {
		return apperrors.FilterTooComplex(depth, maxDepth)
	}

	if e.IsPredicate() {
		if e.Field == "" {
			return apperrors.New(apperrors.ErrCodeInvalidFilter, "predicate missing field", nil)
		}
		switch e.Op {
		case OpEq, OpNe, OpGt, OpLt, OpContains, OpIn, OpNin, OpExists:
		default:
			return apperrors.New(apperrors.ErrCodeInvalidFilter,
				fmt.Sprintf("unknown filter operator %q", e.Op), nil)
		}
		if len(e.Children) > 0 {
			return apperrors.New(apperrors.ErrCodeInvalidFilter, "predicate cannot have children", nil)
		}
		return nil
	}

	switch e.Combinator {
	case CombNot:
		if len(e.Children) != 1 {
			return apperrors.New(apperrors.ErrCodeInvalidFilter,
				fmt.Sprintf("NOT requires exactly one child, got %d", len(e.Children)), nil)
		}
	case CombAnd, CombOr:
		if len(e.Children) == 0 {
			return apperrors.New(apperrors.ErrCodeInvalidFilter,
				fmt.Sprintf("%s requires at least one child", strings.ToUpper(string(e.Combinator))), nil)
		}
	default:
		return apperrors.New(apperrors.ErrCodeInvalidFilter,
			fmt.Sprintf("unknown combinator %q", e.Combinator), nil)
	}

	for _, child := range e.Children {
		if err := child.validate(depth+1, maxDepth); err != nil {
			return err
		}
	}
	return nil
}

// Matches evaluates the expression against a document's metadata.
// Callers must Validate the expression first; Matches assumes a
// well-formed tree and evaluates AND/OR with short-circuiting.
func (e *FilterExpression) Matches(metadata map[string]any) bool {
	if e == nil {
		return true
	}

	if e.IsPredicate() {
		return evalPredicate(metadata, e.Field, e.Op, e.Value)
	}

	switch e.Combinator {
	case CombAnd:
		for _, child := range e.Children {
			if !child.Matches(metadata) {
				return false
			}
		}
		return true
	case CombOr:
		for _, child := range e.Children {
			if child.Matches(metadata) {
				return true
			}
		}
		return false
	case CombNot:
		return !e.Children[0].Matches(metadata)
	}
	return false
}

// evalPredicate applies one operator to the metadata value. A missing
// field makes every predicate false.
func evalPredicate(metadata map[string]any, field string, op FilterOp, value any) bool {
	actual, ok := metadata[field]
	if !ok || actual == nil {
		return false
	}

	switch op {
	case OpExists:
		return true
	case OpEq:
		return valuesEqual(actual, value)
	case OpNe:
		return !valuesEqual(actual, value)
	case OpGt:
		cmp, ok := compareValues(actual, value)
		return ok && cmp > 0
	case OpLt:
		cmp, ok := compareValues(actual, value)
		return ok && cmp < 0
	case OpContains:
		return evalContains(actual, value)
	case OpIn:
		return evalIn(actual, value)
	case OpNin:
		return !evalIn(actual, value)
	}
	return false
}

// valuesEqual compares two scalars, treating all numeric types as
// float64 since metadata round-trips through JSON.
func valuesEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return a == b
}

// compareValues orders two values: numerically when both are numbers,
// lexicographically when both are strings. The second return is false
// when the values are not comparable.
func compareValues(a, b any) (int, bool) {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

// evalContains is substring match for string fields and membership for
// list fields.
func evalContains(actual, value any) bool {
	if s, ok := actual.(string); ok {
		sub, ok := value.(string)
		return ok && strings.Contains(s, sub)
	}
	for _, elem := range toList(actual) {
		if valuesEqual(elem, value) {
			return true
		}
	}
	return false
}

// evalIn is true when the field value appears in the candidate list.
// For list-valued fields, any overlap counts.
func evalIn(actual, value any) bool {
	candidates := toList(value)
	if candidates == nil {
		return false
	}
	actuals := toList(actual)
	if actuals == nil {
		actuals = []any{actual}
	}
	for _, a := range actuals {
		for _, c := range candidates {
			if valuesEqual(a, c) {
				return true
			}
		}
	}
	return false
}

// toList normalizes the slice types metadata can carry after JSON or
// YAML decoding.
func toList(v any) []any {
	switch list := v.(type) {
	case []any:
		return list
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	case []float64:
		out := make([]any, len(list))
		for i, f := range list {
			out[i] = f
		}
		return out
	case []int:
		out := make([]any, len(list))
		for i, n := range list {
			out[i] = n
		}
		return out
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// Predicate builds a leaf node.
func Predicate(field string, op FilterOp, value any) *FilterExpression {
	return &FilterExpression{Field: field, Op: op, Value: value}
}

// And, Or, and Not build combinator nodes.
func And(children ...*FilterExpression) *FilterExpression {
	return &FilterExpression{Combinator: CombAnd, Children: children}
}

func Or(children ...*FilterExpression) *FilterExpression {
	return &FilterExpression{Combinator: CombOr, Children: children}
}

func Not(child *FilterExpression) *FilterExpression {
	return &FilterExpression{Combinator: CombNot, Children: []*FilterExpression{child}}
}
