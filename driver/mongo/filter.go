// Package mongo implements the document driver of the loam persistence
// layer on top of the official MongoDB driver. This file translates the
// condition tree into a bson filter document.
package mongo

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/loamdb/loam/core"
)

// buildFilter translates a condition tree into a bson filter. An empty
// condition translates to the empty document: no restriction.
func buildFilter(schema *core.Schema, condition *core.Condition) (bson.M, error) {
	if condition.IsEmpty() {
		return bson.M{}, nil
	}

	if condition.IsGroup() {
		filterList := make([]bson.M, 0, len(condition.Children))
		for _, child := range condition.Children {
			filter, err := buildFilter(schema, child)
			if err != nil {
				return nil, err
			}
			filterList = append(filterList, filter)
		}
		switch {
		case condition.IsAnd():
			return bson.M{"$and": filterList}, nil
		case condition.IsOr():
			return bson.M{"$or": filterList}, nil
		default:
			// NOT negates the conjunction of its children.
			return bson.M{"$nor": []bson.M{{"$and": filterList}}}, nil
		}
	}

	if condition.Field == "" {
		return nil, &core.InvalidConditionError{Reason: "leaf condition without a field reference"}
	}
	column := schema.ColumnOf(condition.Field)

	switch core.NormalizeOperator(string(condition.Operator)) {
	case core.OpEq:
		if list, ok := condition.Value.([]any); ok {
			return bson.M{column: bson.M{"$in": list}}, nil
		}
		return bson.M{column: bson.M{"$eq": condition.Value}}, nil
	case core.OpNotEq:
		if list, ok := condition.Value.([]any); ok {
			return bson.M{column: bson.M{"$nin": list}}, nil
		}
		return bson.M{column: bson.M{"$ne": condition.Value}}, nil
	case core.OpGt:
		return bson.M{column: bson.M{"$gt": condition.Value}}, nil
	case core.OpGte:
		return bson.M{column: bson.M{"$gte": condition.Value}}, nil
	case core.OpLt:
		return bson.M{column: bson.M{"$lt": condition.Value}}, nil
	case core.OpLte:
		return bson.M{column: bson.M{"$lte": condition.Value}}, nil
	case core.OpLike:
		return bson.M{column: bson.M{"$regex": likePattern(condition.Value)}}, nil
	case core.OpNotLike:
		return bson.M{column: bson.M{"$not": likePattern(condition.Value)}}, nil
	case core.OpIn:
		if list, ok := condition.Value.([]any); ok {
			return bson.M{column: bson.M{"$in": list}}, nil
		}
		return bson.M{column: bson.M{"$eq": condition.Value}}, nil
	case core.OpNotIn:
		if list, ok := condition.Value.([]any); ok {
			return bson.M{column: bson.M{"$nin": list}}, nil
		}
		return bson.M{column: bson.M{"$ne": condition.Value}}, nil
	case core.OpRegexp:
		return bson.M{column: bson.M{"$regex": toRegex(condition.Value)}}, nil
	case core.OpNotRegexp:
		return bson.M{column: bson.M{"$not": toRegex(condition.Value)}}, nil
	default:
		return nil, &core.UnsupportedOperatorError{Operator: string(condition.Operator)}
	}
}

// likePattern converts a LIKE pattern into an anchored regular expression,
// with % standing for any sequence of characters.
func likePattern(operand any) primitive.Regex {
	pattern, _ := operand.(string)
	expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), "%", ".*") + "$"
	return primitive.Regex{Pattern: expr}
}

func toRegex(operand any) primitive.Regex {
	pattern, _ := operand.(string)
	return primitive.Regex{Pattern: pattern}
}
