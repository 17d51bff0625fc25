// Package memory implements the in-memory driver of the loam persistence
// layer. This file holds the condition evaluator: the hand-rolled
// counterpart of the relational WHERE clause, deciding match or no-match
// for one row at a time.
package memory

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/loamdb/loam/core"
)

// Matches reports whether a row satisfies a condition tree.
//
// Groups recurse: AND matches when every child matches, OR when any child
// does (short-circuiting), NOT negates the conjunction of its children. An
// empty group restricts nothing and matches every row. Leaves look the
// field up in the row (a missing field reads as nil) and apply the operator
// semantics. Unknown operators fail with UnsupportedOperatorError; a leaf
// without a field reference fails with InvalidConditionError.
func Matches(row core.Row, condition *core.Condition) (bool, error) {
	if condition.IsEmpty() {
		return true, nil
	}

	if condition.IsGroup() {
		switch {
		case condition.IsAnd():
			for _, child := range condition.Children {
				matched, err := Matches(row, child)
				if err != nil {
					return false, err
				}
				if !matched {
					return false, nil
				}
			}
			return true, nil
		case condition.IsOr():
			for _, child := range condition.Children {
				matched, err := Matches(row, child)
				if err != nil {
					return false, err
				}
				if matched {
					return true, nil
				}
			}
			return false, nil
		default: // NOT
			for _, child := range condition.Children {
				matched, err := Matches(row, child)
				if err != nil {
					return false, err
				}
				if !matched {
					return true, nil
				}
			}
			return false, nil
		}
	}

	if condition.Field == "" {
		return false, &core.InvalidConditionError{Reason: "leaf condition without a field reference"}
	}

	value := row[condition.Field]
	operand := condition.Value

	switch core.NormalizeOperator(string(condition.Operator)) {
	case core.OpEq:
		return evalEq(value, operand), nil
	case core.OpNotEq:
		return !evalEq(value, operand), nil
	case core.OpGt:
		cmp, ok := compareValues(value, operand)
		return ok && cmp > 0, nil
	case core.OpGte:
		cmp, ok := compareValues(value, operand)
		return ok && cmp >= 0, nil
	case core.OpLt:
		cmp, ok := compareValues(value, operand)
		return ok && cmp < 0, nil
	case core.OpLte:
		cmp, ok := compareValues(value, operand)
		return ok && cmp <= 0, nil
	case core.OpLike:
		return evalLike(value, operand), nil
	case core.OpNotLike:
		return !evalLike(value, operand), nil
	case core.OpIn:
		return evalIn(value, operand), nil
	case core.OpNotIn:
		return !evalIn(value, operand), nil
	case core.OpRegexp:
		return evalRegexp(value, operand)
	case core.OpNotRegexp:
		matched, err := evalRegexp(value, operand)
		if err != nil {
			return false, err
		}
		return !matched, nil
	default:
		return false, &core.UnsupportedOperatorError{Operator: string(condition.Operator)}
	}
}

// evalEq applies strict type-and-value equality. An array operand turns the
// check into membership, mirroring the IN operator.
func evalEq(value, operand any) bool {
	if list, ok := asList(operand); ok {
		return inList(value, list)
	}
	return valuesEqual(value, operand)
}

// evalIn checks membership by strict equality. A scalar operand degrades to
// a plain equality check.
func evalIn(value, operand any) bool {
	list, ok := asList(operand)
	if !ok {
		return valuesEqual(value, operand)
	}
	return inList(value, list)
}

// evalLike matches an anchored SQL-style pattern, with % standing for any
// sequence of characters. A nil value never matches.
func evalLike(value, operand any) bool {
	if value == nil {
		return false
	}
	return likeRegexp(stringify(operand)).MatchString(stringify(value))
}

// evalRegexp searches the stringified value with the raw, unanchored
// expression in the operand. A nil value never matches.
func evalRegexp(value, operand any) (bool, error) {
	re, err := regexp.Compile(stringify(operand))
	if err != nil {
		return false, &core.InvalidConditionError{Reason: fmt.Sprintf("bad regular expression %q: %v", operand, err)}
	}
	if value == nil {
		return false, nil
	}
	return re.MatchString(stringify(value)), nil
}

// likeRegexp converts a LIKE pattern into an anchored regular expression.
// The pattern is quoted first so only % keeps a special meaning.
func likeRegexp(pattern string) *regexp.Regexp {
	expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), "%", ".*") + "$"
	return regexp.MustCompile(expr)
}

// valuesEqual implements strict identity: the types must match and the
// values must be deeply equal. Two nils are equal.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// asList unpacks an array operand into a []any. Strings and byte slices
// are scalars, not lists.
func asList(v any) ([]any, bool) {
	switch typed := v.(type) {
	case nil:
		return nil, false
	case []any:
		return typed, true
	case []byte, string:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}

func inList(value any, list []any) bool {
	for _, candidate := range list {
		if valuesEqual(value, candidate) {
			return true
		}
	}
	return false
}

// compareValues orders two raw values. It reports false when the values
// have no defined order (mixed incompatible types, or either side nil).
// Numeric values compare across concrete types; strings, booleans, and
// times compare within their own kind.
func compareValues(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}

	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}

	switch va := a.(type) {
	case string:
		vb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(va, vb), true
	case bool:
		vb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case va == vb:
			return 0, true
		case vb: // false < true
			return -1, true
		}
		return 1, true
	case time.Time:
		vb, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return va.Compare(vb), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch typed := v.(type) {
	case int:
		return float64(typed), true
	case int8:
		return float64(typed), true
	case int16:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case uint8:
		return float64(typed), true
	case uint16:
		return float64(typed), true
	case uint32:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case float32:
		return float64(typed), true
	case float64:
		return typed, true
	}
	return 0, false
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
