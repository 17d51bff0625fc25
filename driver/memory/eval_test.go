package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loamdb/loam/core"
)

func mustMatch(t *testing.T, row core.Row, condition *core.Condition) bool {
	t.Helper()
	matched, err := Matches(row, condition)
	require.NoError(t, err)
	return matched
}

func TestMatchesEmptyConditionIsVacuouslyTrue(t *testing.T) {
	row := core.Row{"a": 1}
	assert.True(t, mustMatch(t, row, nil))
	assert.True(t, mustMatch(t, row, core.And()))
	assert.True(t, mustMatch(t, row, core.Or()))
}

func TestMatchesOperatorTable(t *testing.T) {
	row := core.Row{
		"name":   "Alice",
		"age":    30,
		"score":  7.5,
		"active": true,
		"email":  "alice@example.com",
		"gone":   nil,
	}

	tests := []struct {
		name      string
		condition *core.Condition
		want      bool
	}{
		{"eq match", core.Field("age").Eq(30), true},
		{"eq type mismatch", core.Field("age").Eq(int64(30)), false},
		{"eq value mismatch", core.Field("age").Eq(31), false},
		{"eq nil both sides", core.Field("gone").Eq(nil), true},
		{"eq missing field vs nil", core.Field("absent").Eq(nil), true},
		{"eq array delegates to in", core.Cond("age", "=", []any{29, 30}), true},
		{"noteq", core.Field("age").NotEq(31), true},
		{"noteq nil", core.Field("name").NotEq(nil), true},
		{"gt", core.Field("age").Gt(29), true},
		{"gt equal is false", core.Field("age").Gt(30), false},
		{"gte boundary", core.Field("age").Gte(30), true},
		{"lt", core.Field("age").Lt(31), true},
		{"lte boundary", core.Field("age").Lte(30), true},
		{"cross-type numeric compare", core.Field("age").Gt(29.5), true},
		{"ordering against nil is false", core.Field("gone").Gt(1), false},
		{"string ordering", core.Field("name").Lt("Bob"), true},
		{"like anchored", core.Field("name").Like("Ali%"), true},
		{"like needs full match", core.Field("name").Like("lice"), false},
		{"like infix", core.Field("email").Like("%@example%"), true},
		{"like case sensitive", core.Field("name").Like("ali%"), false},
		{"like metacharacters are literal", core.Field("email").Like("alice@example.com"), true},
		{"not like", core.Field("name").NotLike("Bob%"), true},
		{"like nil never matches", core.Field("gone").Like("%"), false},
		{"not like nil matches", core.Field("gone").NotLike("%"), true},
		{"in", core.Field("age").In(29, 30, 31), true},
		{"in strict typing", core.Field("age").In(int64(30)), false},
		{"not in", core.Field("age").NotIn(1, 2), true},
		{"in scalar operand degrades to eq", core.Cond("age", "IN", 30), true},
		{"regexp unanchored", core.Field("email").Regexp("@example\\."), true},
		{"regexp no match", core.Field("name").Regexp("^Bob"), false},
		{"not regexp", core.Field("name").NotRegexp("^Bob"), true},
		{"regexp nil never matches", core.Field("gone").Regexp(".*"), false},
		{"bool eq", core.Field("active").Eq(true), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustMatch(t, row, tt.condition))
		})
	}
}

func TestMatchesGroups(t *testing.T) {
	row := core.Row{"age": 30, "name": "Alice"}

	and := core.Field("age").Gt(18).And(core.Field("name").Eq("Alice"))
	assert.True(t, mustMatch(t, row, and))

	and = core.Field("age").Gt(18).And(core.Field("name").Eq("Bob"))
	assert.False(t, mustMatch(t, row, and))

	or := core.Field("name").Eq("Bob").Or(core.Field("age").Eq(30))
	assert.True(t, mustMatch(t, row, or))

	not := core.Field("name").Eq("Alice").Not()
	assert.False(t, mustMatch(t, row, not))
	assert.True(t, mustMatch(t, row, core.Field("name").Eq("Bob").Not()))

	nested := core.And(
		core.Field("age").Gte(18),
		core.Or(core.Field("name").Eq("Bob"), core.Field("name").Eq("Alice")),
	)
	assert.True(t, mustMatch(t, row, nested))
}

func TestMatchesTimeOrdering(t *testing.T) {
	now := time.Now()
	row := core.Row{"at": now}
	assert.True(t, mustMatch(t, row, core.Field("at").Gt(now.Add(-time.Hour))))
	assert.False(t, mustMatch(t, row, core.Field("at").Lt(now.Add(-time.Hour))))
}

func TestMatchesUnsupportedOperator(t *testing.T) {
	_, err := Matches(core.Row{"a": 1}, core.Cond("a", "BETWEEN", 2))
	var unsupported *core.UnsupportedOperatorError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "BETWEEN", unsupported.Operator)
}

func TestMatchesLeafWithoutField(t *testing.T) {
	_, err := Matches(core.Row{"a": 1}, &core.Condition{Operator: core.OpEq, Value: 1})
	var invalid *core.InvalidConditionError
	assert.ErrorAs(t, err, &invalid)
}

func TestMatchesBadRegexp(t *testing.T) {
	_, err := Matches(core.Row{"a": "x"}, core.Field("a").Regexp("["))
	var invalid *core.InvalidConditionError
	assert.ErrorAs(t, err, &invalid)
}

func TestMatchesNegationPairsAreComplements(t *testing.T) {
	rows := []core.Row{
		{"v": "alpha"},
		{"v": "beta"},
		{"v": nil},
		{},
	}
	pairs := [][2]*core.Condition{
		{core.Field("v").Like("a%"), core.Field("v").NotLike("a%")},
		{core.Field("v").In("alpha", "beta"), core.Field("v").NotIn("alpha", "beta")},
		{core.Field("v").Eq("alpha"), core.Field("v").NotEq("alpha")},
	}
	for _, row := range rows {
		for _, pair := range pairs {
			positive := mustMatch(t, row, pair[0])
			negative := mustMatch(t, row, pair[1])
			assert.NotEqual(t, positive, negative, "row %v", row)
		}
	}
}
