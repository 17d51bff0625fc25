package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loamdb/loam/core"
)

func sampleRows() []core.Row {
	return []core.Row{
		{"id": 1, "name": "Ann", "age": 30, "city": "Berlin"},
		{"id": 2, "name": "Bob", "age": 25, "city": "Berlin"},
		{"id": 3, "name": "Cid", "age": 30, "city": "Lisbon"},
		{"id": 4, "name": "Dee", "age": 19, "city": "Lisbon"},
		{"id": 5, "name": "Eli", "age": 25, "city": "Berlin"},
	}
}

func names(rows []core.Row) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row["name"].(string)
	}
	return out
}

func TestActionFilterSeesUnprojectedRows(t *testing.T) {
	rows, err := newAction(sampleRows(), &core.Where{
		Fields:    []string{"name"},
		Condition: core.Field("age").Gte(30),
	}).All()
	require.NoError(t, err)

	assert.Equal(t, []string{"Ann", "Cid"}, names(rows))
	for _, row := range rows {
		assert.NotContains(t, row, "age", "projection drops the filtered field after filtering")
	}
}

func TestActionProjectionSkipsAbsentFields(t *testing.T) {
	rows, err := newAction([]core.Row{{"a": 1}}, &core.Where{Fields: []string{"a", "missing"}}).All()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, core.Row{"a": 1}, rows[0])
}

func TestActionSortIsStableComposite(t *testing.T) {
	rows, err := newAction(sampleRows(), &core.Where{
		Sort: []core.Sort{{FieldName: "age", Order: -1}, {FieldName: "name", Order: 1}},
	}).All()
	require.NoError(t, err)
	assert.Equal(t, []string{"Ann", "Cid", "Bob", "Eli", "Dee"}, names(rows))
}

func TestActionSortTiesKeepInsertionOrder(t *testing.T) {
	rows, err := newAction(sampleRows(), &core.Where{
		Sort: []core.Sort{{FieldName: "city", Order: 1}},
	}).All()
	require.NoError(t, err)
	// Berlin rows keep 1,2,5 order, Lisbon rows keep 3,4 order.
	assert.Equal(t, []string{"Ann", "Bob", "Eli", "Cid", "Dee"}, names(rows))
}

func TestActionOffsetAndLimit(t *testing.T) {
	rows, err := newAction(sampleRows(), &core.Where{
		Sort:     []core.Sort{{FieldName: "id", Order: 1}},
		Offset:   1,
		Limit:    2,
		HasLimit: true,
	}).All()
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Cid"}, names(rows))
}

func TestActionOffsetPastEnd(t *testing.T) {
	rows, err := newAction(sampleRows(), &core.Where{Offset: 99}).All()
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestActionExplicitZeroLimit(t *testing.T) {
	a := newAction(sampleRows(), &core.Where{Limit: 0, HasLimit: true})
	rows, err := a.All()
	require.NoError(t, err)
	assert.Empty(t, rows)

	count, err := a.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestActionCountCoversLimitedWindow(t *testing.T) {
	count, err := newAction(sampleRows(), &core.Where{
		Condition: core.Field("city").Eq("Berlin"),
		Limit:     1,
		HasLimit:  true,
	}).Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "count reflects the window, not the full filtered set")
}

func TestActionRow(t *testing.T) {
	row, err := newAction(sampleRows(), &core.Where{
		Sort: []core.Sort{{FieldName: "age", Order: 1}},
	}).Row()
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "Dee", row["name"])

	row, err = newAction(sampleRows(), &core.Where{Condition: core.Field("age").Gt(99)}).Row()
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestActionExists(t *testing.T) {
	exists, err := newAction(sampleRows(), &core.Where{Condition: core.Field("age").Gt(29)}).Exists()
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = newAction(sampleRows(), &core.Where{Condition: core.Field("age").Gt(99)}).Exists()
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestActionFieldValue(t *testing.T) {
	value, err := newAction(sampleRows(), &core.Where{
		Sort: []core.Sort{{FieldName: "age", Order: -1}},
	}).FieldValue("name")
	require.NoError(t, err)
	assert.Equal(t, "Ann", value)

	value, err = newAction(nil, &core.Where{}).FieldValue("name")
	require.NoError(t, err)
	assert.Nil(t, value)

	_, err = newAction(sampleRows(), &core.Where{}).FieldValue("")
	assert.ErrorIs(t, err, core.ErrMissingFieldName)
}

func TestActionTerminalsAreIdempotent(t *testing.T) {
	a := newAction(sampleRows(), &core.Where{Condition: core.Field("city").Eq("Berlin")})
	first, err := a.All()
	require.NoError(t, err)
	second, err := a.All()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	count, err := a.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(len(first)), count)
}

func TestActionAggregateSum(t *testing.T) {
	sum, err := newAction(sampleRows(), &core.Where{}).Aggregate(core.AggregateSum, "age", false)
	require.NoError(t, err)
	assert.Equal(t, int64(129), sum, "whole-number columns sum to int64")

	floats := []core.Row{{"v": 1.5}, {"v": 2}}
	sum, err = newAction(floats, &core.Where{}).Aggregate(core.AggregateSum, "v", false)
	require.NoError(t, err)
	assert.Equal(t, 3.5, sum, "a float in the column makes the sum a float64")
}

func TestActionAggregateAvgSkipsNulls(t *testing.T) {
	rows := []core.Row{{"v": 30}, {"v": nil}, {"v": 25}}

	avg, err := newAction(rows, &core.Where{}).Aggregate(core.AggregateAvg, "v", false)
	require.NoError(t, err)
	assert.Equal(t, 27.5, avg, "nulls are excluded from the divisor")

	avg, err = newAction(rows, &core.Where{}).Aggregate(core.AggregateAvg, "v", true)
	require.NoError(t, err)
	assert.InDelta(t, 55.0/3.0, avg.(float64), 1e-9, "coalesce counts nulls as zero")
}

func TestActionAggregateAvgAllNull(t *testing.T) {
	rows := []core.Row{{"v": nil}, {"v": nil}}

	_, err := newAction(rows, &core.Where{}).Aggregate(core.AggregateAvg, "v", false)
	assert.ErrorIs(t, err, core.ErrAggregateEmpty)

	avg, err := newAction(rows, &core.Where{}).Aggregate(core.AggregateAvg, "v", true)
	require.NoError(t, err)
	assert.Equal(t, 0.0, avg)
}

func TestActionAggregateEmptyColumn(t *testing.T) {
	sum, err := newAction(nil, &core.Where{}).Aggregate(core.AggregateSum, "v", false)
	require.NoError(t, err)
	assert.Nil(t, sum)

	minimum, err := newAction(nil, &core.Where{}).Aggregate(core.AggregateMin, "v", false)
	require.NoError(t, err)
	assert.Nil(t, minimum)
}

func TestActionAggregateMinMax(t *testing.T) {
	minimum, err := newAction(sampleRows(), &core.Where{}).Aggregate(core.AggregateMin, "age", false)
	require.NoError(t, err)
	assert.Equal(t, 19, minimum, "min returns the raw stored value")

	maximum, err := newAction(sampleRows(), &core.Where{}).Aggregate(core.AggregateMax, "name", false)
	require.NoError(t, err)
	assert.Equal(t, "Eli", maximum, "min/max order strings too")
}

func TestActionAggregateErrors(t *testing.T) {
	_, err := newAction(sampleRows(), &core.Where{}).Aggregate("median", "age", false)
	var unsupported *core.UnsupportedAggregateError
	assert.ErrorAs(t, err, &unsupported)

	_, err = newAction(sampleRows(), &core.Where{}).Aggregate(core.AggregateSum, "", false)
	assert.ErrorIs(t, err, core.ErrMissingFieldName)

	_, err = newAction(sampleRows(), &core.Where{}).Aggregate(core.AggregateSum, "name", false)
	var invalid *core.InvalidConditionError
	assert.ErrorAs(t, err, &invalid)
}

func TestActionAggregateRespectsWindow(t *testing.T) {
	sum, err := newAction(sampleRows(), &core.Where{
		Sort:     []core.Sort{{FieldName: "age", Order: -1}},
		Limit:    2,
		HasLimit: true,
	}).Aggregate(core.AggregateSum, "age", false)
	require.NoError(t, err)
	assert.Equal(t, int64(60), sum, "aggregates run over the limited window")
}
