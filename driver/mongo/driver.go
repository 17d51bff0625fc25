package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/loamdb/loam/core"
)

// Driver is the MongoDB storage backend. Conditions translate to filter
// documents and aggregates run through the aggregation pipeline.
type Driver struct {
	uri      string
	database string
	client   *mongo.Client
}

var _ core.Driver = (*Driver)(nil)

// New creates a driver for the given connection URI and database name. No
// connection is opened until Connect.
func New(uri, database string) *Driver {
	return &Driver{uri: uri, database: database}
}

// Connect opens the client and verifies it with a ping.
func (d *Driver) Connect(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(d.uri))
	if err != nil {
		return err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return err
	}
	d.client = client
	return nil
}

// Ping verifies the deployment is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (d *Driver) Close(ctx context.Context) error {
	if d.client != nil {
		return d.client.Disconnect(ctx)
	}
	return nil
}

// Transaction starts a session with an open transaction. Pair it with
// core.WithTransaction so subsequent operations on the derived context run
// inside it.
func (d *Driver) Transaction(ctx context.Context) (core.Transaction, error) {
	session, err := d.client.StartSession()
	if err != nil {
		return nil, err
	}
	if err := session.StartTransaction(); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Transaction{session: session}, nil
}

func (d *Driver) collection(schema *core.Schema) *mongo.Collection {
	return d.client.Database(d.database).Collection(schema.Table)
}

// opCtx binds the context to the session of an ongoing transaction, if any.
func opCtx(ctx context.Context) context.Context {
	if tx, ok := core.TransactionFrom(ctx).(*Transaction); ok {
		return mongo.NewSessionContext(ctx, tx.session)
	}
	return ctx
}

// execError wraps a backend failure with a printable rendition of the
// filter, the document driver's stand-in for statement text.
func execError(operation string, filter any, err error) error {
	return &core.QueryExecutionError{Query: fmt.Sprintf("%s %v", operation, filter), Err: err}
}

func buildProjection(schema *core.Schema, fields []string) bson.M {
	if len(fields) == 0 {
		return nil
	}
	projection := bson.M{}
	for _, field := range fields {
		projection[schema.ColumnOf(field)] = 1
	}
	if _, requested := projection["_id"]; !requested {
		projection["_id"] = 0
	}
	return projection
}

func buildSort(schema *core.Schema, rules []core.Sort) bson.D {
	if len(rules) == 0 {
		return nil
	}
	sortDoc := make(bson.D, len(rules))
	for i, rule := range rules {
		direction := 1
		if rule.Order < 0 {
			direction = -1
		}
		sortDoc[i] = bson.E{Key: schema.ColumnOf(rule.FieldName), Value: direction}
	}
	return sortDoc
}

// toRow converts a decoded document into a row keyed by application-level
// field names.
func toRow(schema *core.Schema, document bson.M) core.Row {
	row := make(core.Row, len(document))
	for column, value := range document {
		row[schema.NameOfColumn(column)] = value
	}
	return row
}

// Insert stores a document and returns the identity assigned by the
// backend, or the one the row carried.
func (d *Driver) Insert(ctx context.Context, schema *core.Schema, row core.Row) (any, error) {
	document := bson.M{}
	for name, value := range row {
		document[schema.ColumnOf(name)] = value
	}
	result, err := d.collection(schema).InsertOne(opCtx(ctx), document)
	if err != nil {
		return nil, execError("insertOne", document, err)
	}
	if idField, ok := schema.IdentityField(); ok {
		if value, present := row[idField]; present && value != nil {
			return value, nil
		}
	}
	return result.InsertedID, nil
}

// Select fetches every document matching the options.
func (d *Driver) Select(ctx context.Context, schema *core.Schema, where *core.Where) ([]core.Row, error) {
	filter, err := buildFilter(schema, where.Condition)
	if err != nil {
		return nil, err
	}

	findOptions := options.Find()
	if projection := buildProjection(schema, where.Fields); projection != nil {
		findOptions.SetProjection(projection)
	}
	if sortDoc := buildSort(schema, where.Sort); sortDoc != nil {
		findOptions.SetSort(sortDoc)
	}
	if where.HasLimit {
		findOptions.SetLimit(int64(max(where.Limit, 0)))
	}
	if where.Offset > 0 {
		findOptions.SetSkip(int64(where.Offset))
	}

	cursor, err := d.collection(schema).Find(opCtx(ctx), filter, findOptions)
	if err != nil {
		return nil, execError("find", filter, err)
	}
	defer cursor.Close(ctx)

	var results []core.Row
	for cursor.Next(ctx) {
		var document bson.M
		if err := cursor.Decode(&document); err != nil {
			return nil, execError("find", filter, err)
		}
		results = append(results, toRow(schema, document))
	}
	if err := cursor.Err(); err != nil {
		return nil, execError("find", filter, err)
	}
	return results, nil
}

// SelectOne fetches the first document matching the options, or nil when
// none matches.
func (d *Driver) SelectOne(ctx context.Context, schema *core.Schema, where *core.Where) (core.Row, error) {
	filter, err := buildFilter(schema, where.Condition)
	if err != nil {
		return nil, err
	}

	findOptions := options.FindOne()
	if projection := buildProjection(schema, where.Fields); projection != nil {
		findOptions.SetProjection(projection)
	}
	if sortDoc := buildSort(schema, where.Sort); sortDoc != nil {
		findOptions.SetSort(sortDoc)
	}
	if where.Offset > 0 {
		findOptions.SetSkip(int64(where.Offset))
	}

	var document bson.M
	err = d.collection(schema).FindOne(opCtx(ctx), filter, findOptions).Decode(&document)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, execError("findOne", filter, err)
	}
	return toRow(schema, document), nil
}

// Update applies changes to every document matching the condition and
// returns the matched count.
func (d *Driver) Update(ctx context.Context, schema *core.Schema, condition *core.Condition, changes core.Changes) (int64, error) {
	filter, err := buildFilter(schema, condition)
	if err != nil {
		return 0, err
	}
	set := bson.M{}
	for name, value := range changes {
		set[schema.ColumnOf(name)] = value
	}
	result, err := d.collection(schema).UpdateMany(opCtx(ctx), filter, bson.M{"$set": set})
	if err != nil {
		return 0, execError("updateMany", filter, err)
	}
	return result.MatchedCount, nil
}

// Delete removes every document matching the condition and returns the
// deleted count.
func (d *Driver) Delete(ctx context.Context, schema *core.Schema, condition *core.Condition) (int64, error) {
	filter, err := buildFilter(schema, condition)
	if err != nil {
		return 0, err
	}
	result, err := d.collection(schema).DeleteMany(opCtx(ctx), filter)
	if err != nil {
		return 0, execError("deleteMany", filter, err)
	}
	return result.DeletedCount, nil
}

// Count counts the documents matching the options' condition over the
// whole filtered set.
func (d *Driver) Count(ctx context.Context, schema *core.Schema, where *core.Where) (int64, error) {
	filter, err := buildFilter(schema, where.Condition)
	if err != nil {
		return 0, err
	}
	count, err := d.collection(schema).CountDocuments(opCtx(ctx), filter)
	if err != nil {
		return 0, execError("countDocuments", filter, err)
	}
	return count, nil
}

// Exists reports whether any document matches the options' condition.
func (d *Driver) Exists(ctx context.Context, schema *core.Schema, where *core.Where) (bool, error) {
	filter, err := buildFilter(schema, where.Condition)
	if err != nil {
		return false, err
	}
	findOptions := options.FindOne().SetProjection(bson.M{"_id": 1})
	err = d.collection(schema).FindOne(opCtx(ctx), filter, findOptions).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, execError("findOne", filter, err)
	}
	return true, nil
}

// Aggregate computes fn over the named field of the filtered set through
// the aggregation pipeline. Null and missing values are skipped by the
// pipeline operators unless coalesce substitutes zero for them; an AVG
// with no participating value is reported as ErrAggregateEmpty.
func (d *Driver) Aggregate(ctx context.Context, schema *core.Schema, fn core.AggregateFunc, field string, coalesce bool, where *core.Where) (any, error) {
	normalized, ok := core.NormalizeAggregate(string(fn))
	if !ok {
		return nil, &core.UnsupportedAggregateError{Func: string(fn)}
	}
	if field == "" {
		return nil, core.ErrMissingFieldName
	}
	filter, err := buildFilter(schema, where.Condition)
	if err != nil {
		return nil, err
	}

	var operand any = "$" + schema.ColumnOf(field)
	if coalesce {
		operand = bson.M{"$ifNull": []any{operand, 0}}
	}
	pipeline := []bson.M{
		{"$match": filter},
		{"$group": bson.M{
			"_id":   nil,
			"value": bson.M{"$" + strings.ToLower(string(normalized)): operand},
		}},
	}

	cursor, err := d.collection(schema).Aggregate(opCtx(ctx), pipeline)
	if err != nil {
		return nil, execError("aggregate", pipeline, err)
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return nil, execError("aggregate", pipeline, err)
		}
		if normalized == core.AggregateAvg && !coalesce {
			return nil, core.ErrAggregateEmpty
		}
		return nil, nil
	}
	var document bson.M
	if err := cursor.Decode(&document); err != nil {
		return nil, execError("aggregate", pipeline, err)
	}
	value := document["value"]
	if value == nil && normalized == core.AggregateAvg && !coalesce {
		return nil, core.ErrAggregateEmpty
	}
	return value, nil
}

// FieldValue returns the named field of the first matching document, or
// nil when no document matches.
func (d *Driver) FieldValue(ctx context.Context, schema *core.Schema, field string, where *core.Where) (any, error) {
	if field == "" {
		return nil, core.ErrMissingFieldName
	}
	scoped := *where
	scoped.Fields = []string{field}
	row, err := d.SelectOne(ctx, schema, &scoped)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return row[field], nil
}
