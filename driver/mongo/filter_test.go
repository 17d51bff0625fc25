package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/loamdb/loam/core"
)

func filterSchema() *core.Schema {
	return core.NewSchema("users",
		core.WithField("id", core.Identity(), core.Column("_id")),
		core.WithField("name"),
		core.WithField("age"),
	)
}

func mustFilter(t *testing.T, condition *core.Condition) bson.M {
	t.Helper()
	filter, err := buildFilter(filterSchema(), condition)
	require.NoError(t, err)
	return filter
}

func TestBuildFilterEmpty(t *testing.T) {
	assert.Equal(t, bson.M{}, mustFilter(t, nil))
	assert.Equal(t, bson.M{}, mustFilter(t, core.And()))
}

func TestBuildFilterMapsColumns(t *testing.T) {
	filter := mustFilter(t, core.Field("id").Eq("abc"))
	assert.Equal(t, bson.M{"_id": bson.M{"$eq": "abc"}}, filter)
}

func TestBuildFilterComparisons(t *testing.T) {
	assert.Equal(t, bson.M{"age": bson.M{"$gt": 18}}, mustFilter(t, core.Field("age").Gt(18)))
	assert.Equal(t, bson.M{"age": bson.M{"$gte": 18}}, mustFilter(t, core.Field("age").Gte(18)))
	assert.Equal(t, bson.M{"age": bson.M{"$lt": 18}}, mustFilter(t, core.Field("age").Lt(18)))
	assert.Equal(t, bson.M{"age": bson.M{"$lte": 18}}, mustFilter(t, core.Field("age").Lte(18)))
	assert.Equal(t, bson.M{"age": bson.M{"$ne": 18}}, mustFilter(t, core.Field("age").NotEq(18)))
}

func TestBuildFilterMembership(t *testing.T) {
	assert.Equal(t,
		bson.M{"age": bson.M{"$in": []any{1, 2}}},
		mustFilter(t, core.Field("age").In(1, 2)))
	assert.Equal(t,
		bson.M{"age": bson.M{"$nin": []any{1, 2}}},
		mustFilter(t, core.Field("age").NotIn(1, 2)))
	// Array equality delegates to membership; scalar IN degrades to equality.
	assert.Equal(t,
		bson.M{"age": bson.M{"$in": []any{1, 2}}},
		mustFilter(t, core.Cond("age", "=", []any{1, 2})))
	assert.Equal(t,
		bson.M{"age": bson.M{"$eq": 7}},
		mustFilter(t, core.Cond("age", "IN", 7)))
}

func TestBuildFilterLike(t *testing.T) {
	filter := mustFilter(t, core.Field("name").Like("An%"))
	assert.Equal(t, bson.M{"name": bson.M{"$regex": primitive.Regex{Pattern: "^An.*$"}}}, filter)

	filter = mustFilter(t, core.Field("name").NotLike("An%"))
	assert.Equal(t, bson.M{"name": bson.M{"$not": primitive.Regex{Pattern: "^An.*$"}}}, filter)
}

func TestBuildFilterLikeQuotesMetacharacters(t *testing.T) {
	filter := mustFilter(t, core.Field("name").Like("a.b%"))
	assert.Equal(t, bson.M{"name": bson.M{"$regex": primitive.Regex{Pattern: `^a\.b.*$`}}}, filter)
}

func TestBuildFilterRegexp(t *testing.T) {
	filter := mustFilter(t, core.Field("name").Regexp("^A"))
	assert.Equal(t, bson.M{"name": bson.M{"$regex": primitive.Regex{Pattern: "^A"}}}, filter)

	filter = mustFilter(t, core.Field("name").NotRegexp("^A"))
	assert.Equal(t, bson.M{"name": bson.M{"$not": primitive.Regex{Pattern: "^A"}}}, filter)
}

func TestBuildFilterGroups(t *testing.T) {
	filter := mustFilter(t, core.And(core.Field("age").Gt(18), core.Field("name").Eq("Ann")))
	assert.Equal(t, bson.M{"$and": []bson.M{
		{"age": bson.M{"$gt": 18}},
		{"name": bson.M{"$eq": "Ann"}},
	}}, filter)

	filter = mustFilter(t, core.Or(core.Field("age").Gt(65), core.Field("age").Lt(18)))
	assert.Equal(t, bson.M{"$or": []bson.M{
		{"age": bson.M{"$gt": 65}},
		{"age": bson.M{"$lt": 18}},
	}}, filter)

	filter = mustFilter(t, core.Field("age").Gt(18).Not())
	assert.Equal(t, bson.M{"$nor": []bson.M{
		{"$and": []bson.M{{"age": bson.M{"$gt": 18}}}},
	}}, filter)
}

func TestBuildFilterErrors(t *testing.T) {
	_, err := buildFilter(filterSchema(), core.Cond("age", "BETWEEN", 1))
	var unsupported *core.UnsupportedOperatorError
	assert.ErrorAs(t, err, &unsupported)

	_, err = buildFilter(filterSchema(), &core.Condition{Operator: core.OpEq, Value: 1})
	var invalid *core.InvalidConditionError
	assert.ErrorAs(t, err, &invalid)
}

func TestBuildProjectionSuppressesImplicitID(t *testing.T) {
	schema := filterSchema()
	projection := buildProjection(schema, []string{"name"})
	assert.Equal(t, bson.M{"name": 1, "_id": 0}, projection)

	projection = buildProjection(schema, []string{"name", "id"})
	assert.Equal(t, bson.M{"name": 1, "_id": 1}, projection)

	assert.Nil(t, buildProjection(schema, nil))
}

func TestBuildSort(t *testing.T) {
	schema := filterSchema()
	sortDoc := buildSort(schema, []core.Sort{{FieldName: "age", Order: -1}, {FieldName: "id", Order: 1}})
	assert.Equal(t, bson.D{{Key: "age", Value: -1}, {Key: "_id", Value: 1}}, sortDoc)
	assert.Nil(t, buildSort(schema, nil))
}
