package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apidex/apidex/internal/apperrors"
)

var filterDoc = map[string]any{
	"method":  "GET",
	"source":  "openapi",
	"status":  float64(200),
	"tags":    []any{"web", "api"},
	"beta":    true,
	"version": "v2",
}

func TestFilterPredicates(t *testing.T) {
	tests := []struct {
		name  string
		field string
		op    FilterOp
		value any
		want  bool
	}{
		{"eq string match", "method", OpEq, "GET", true},
		{"eq string miss", "method", OpEq, "POST", false},
		{"eq number match", "status", OpEq, 200, true},
		{"eq bool", "beta", OpEq, true, true},
		{"ne", "method", OpNe, "POST", true},
		{"ne miss", "method", OpNe, "GET", false},
		{"gt number", "status", OpGt, 100, true},
		{"gt number miss", "status", OpGt, 200, false},
		{"lt number", "status", OpLt, 300, true},
		{"gt string", "version", OpGt, "v1", true},
		{"lt string miss", "version", OpLt, "v1", false},
		{"gt incomparable", "method", OpGt, 5, false},
		{"contains substring", "source", OpContains, "open", true},
		{"contains substring miss", "source", OpContains, "graphql", false},
		{"contains list member", "tags", OpContains, "api", true},
		{"contains list miss", "tags", OpContains, "cli", false},
		{"in scalar", "method", OpIn, []any{"GET", "HEAD"}, true},
		{"in scalar miss", "method", OpIn, []any{"POST", "PUT"}, false},
		{"in list overlap", "tags", OpIn, []any{"api", "cli"}, true},
		{"in string slice", "method", OpIn, []string{"GET"}, true},
		{"nin", "method", OpNin, []any{"POST"}, true},
		{"nin miss", "method", OpNin, []any{"GET"}, false},
		{"exists present", "method", OpExists, nil, true},
		{"exists missing", "missing", OpExists, nil, false},
		{"missing field eq", "missing", OpEq, "x", false},
		{"missing field ne", "missing", OpNe, "x", false},
		{"missing field nin", "missing", OpNin, []any{"x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr := Predicate(tt.field, tt.op, tt.value)
			assert.Equal(t, tt.want, expr.Matches(filterDoc))
		})
	}
}

func TestFilterCombinators(t *testing.T) {
	get := Predicate("method", OpEq, "GET")
	post := Predicate("method", OpEq, "POST")
	beta := Predicate("beta", OpEq, true)

	assert.True(t, And(get, beta).Matches(filterDoc))
	assert.False(t, And(get, post).Matches(filterDoc))
	assert.True(t, Or(post, get).Matches(filterDoc))
	assert.False(t, Or(post, post).Matches(filterDoc))
	assert.False(t, Not(get).Matches(filterDoc))
	assert.True(t, Not(post).Matches(filterDoc))

	// Nesting: method=GET AND NOT(beta AND status>100)
	expr := And(get, Not(And(beta, Predicate("status", OpGt, 100))))
	assert.False(t, expr.Matches(filterDoc))
}

func TestFilterDeMorganEquivalence(t *testing.T) {
	p1 := Predicate("method", OpEq, "GET")
	p2 := Predicate("source", OpContains, "open")

	combined := And(p1, Not(p2)).Matches(filterDoc)
	manual := p1.Matches(filterDoc) && !p2.Matches(filterDoc)
	assert.Equal(t, manual, combined)
}

func TestFilterValidate(t *testing.T) {
	t.Run("valid tree", func(t *testing.T) {
		expr := And(
			Predicate("method", OpEq, "GET"),
			Or(Predicate("tags", OpContains, "api"), Not(Predicate("beta", OpEq, true))),
		)
		assert.NoError(t, expr.Validate(MaxFilterDepth))
	})

	t.Run("depth overflow", func(t *testing.T) {
		expr := Predicate("method", OpEq, "GET")
		for i := 0; i < MaxFilterDepth+1; i++ {
			expr = Not(expr)
		}
		err := expr.Validate(MaxFilterDepth)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeFilterTooComplex, apperrors.GetCode(err))
	})

	t.Run("depth at limit passes", func(t *testing.T) {
		expr := Predicate("method", OpEq, "GET")
		for i := 0; i < MaxFilterDepth-1; i++ {
			expr = Not(expr)
		}
		assert.NoError(t, expr.Validate(MaxFilterDepth))
	})

	structural := []struct {
		name string
		expr *FilterExpression
	}{
		{"empty field", Predicate("", OpEq, "x")},
		{"unknown op", Predicate("method", FilterOp("regex"), "x")},
		{"not with two children", &FilterExpression{Combinator: CombNot, Children: []*FilterExpression{
			Predicate("a", OpEq, 1), Predicate("b", OpEq, 2),
		}}},
		{"and with no children", &FilterExpression{Combinator: CombAnd}},
		{"unknown combinator", &FilterExpression{Combinator: CombinatorOp("xor"), Children: []*FilterExpression{
			Predicate("a", OpEq, 1),
		}}},
		{"nil child", &FilterExpression{Combinator: CombAnd, Children: []*FilterExpression{nil}}},
	}
	for _, tt := range structural {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.expr.Validate(MaxFilterDepth)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeInvalidFilter, apperrors.GetCode(err))
		})
	}
}

func TestFilterNilMatchesEverything(t *testing.T) {
	var expr *FilterExpression
	assert.True(t, expr.Matches(filterDoc))
}
