// Package sqlite implements the embedded relational driver of the loam
// persistence layer on top of mattn/go-sqlite3. Statement rendering mirrors
// the postgres driver with `?` placeholders and SQLite's operator surface.
package sqlite

import (
	"fmt"
	"sort"
	"strings"

	"github.com/loamdb/loam/core"
)

func formatTable(schema *core.Schema) string {
	return fmt.Sprintf("%q", schema.Table)
}

func formatColumn(schema *core.Schema, field string) string {
	return fmt.Sprintf("%q", schema.ColumnOf(field))
}

// buildCondition compiles a condition tree into a WHERE fragment with `?`
// placeholders, appending operand values to argList. An empty condition
// compiles to "1=1".
func buildCondition(schema *core.Schema, condition *core.Condition, argList *[]any) (string, error) {
	if condition.IsEmpty() {
		return "1=1", nil
	}

	if condition.IsGroup() {
		partList := make([]string, 0, len(condition.Children))
		for _, child := range condition.Children {
			part, err := buildCondition(schema, child, argList)
			if err != nil {
				return "", err
			}
			partList = append(partList, part)
		}
		switch {
		case condition.IsAnd():
			return "(" + strings.Join(partList, " AND ") + ")", nil
		case condition.IsOr():
			return "(" + strings.Join(partList, " OR ") + ")", nil
		default:
			return "NOT (" + strings.Join(partList, " AND ") + ")", nil
		}
	}

	if condition.Field == "" {
		return "", &core.InvalidConditionError{Reason: "leaf condition without a field reference"}
	}
	column := formatColumn(schema, condition.Field)

	bind := func(v any) string {
		*argList = append(*argList, v)
		return "?"
	}

	operator := core.NormalizeOperator(string(condition.Operator))
	switch operator {
	case core.OpEq, core.OpNotEq:
		if list, ok := condition.Value.([]any); ok {
			return buildInList(column, list, operator == core.OpNotEq, bind), nil
		}
		if condition.Value == nil {
			if operator == core.OpNotEq {
				return column + " IS NOT NULL", nil
			}
			return column + " IS NULL", nil
		}
		if operator == core.OpNotEq {
			return fmt.Sprintf("%s <> %s", column, bind(condition.Value)), nil
		}
		return fmt.Sprintf("%s = %s", column, bind(condition.Value)), nil
	case core.OpGt, core.OpGte, core.OpLt, core.OpLte:
		return fmt.Sprintf("%s %s %s", column, operator, bind(condition.Value)), nil
	case core.OpLike:
		return fmt.Sprintf("%s LIKE %s", column, bind(condition.Value)), nil
	case core.OpNotLike:
		return fmt.Sprintf("%s NOT LIKE %s", column, bind(condition.Value)), nil
	case core.OpIn, core.OpNotIn:
		if list, ok := condition.Value.([]any); ok {
			return buildInList(column, list, operator == core.OpNotIn, bind), nil
		}
		if operator == core.OpNotIn {
			return fmt.Sprintf("%s <> %s", column, bind(condition.Value)), nil
		}
		return fmt.Sprintf("%s = %s", column, bind(condition.Value)), nil
	case core.OpRegexp:
		// Backed by the Go regexp function registered on every connection.
		return fmt.Sprintf("%s REGEXP %s", column, bind(condition.Value)), nil
	case core.OpNotRegexp:
		return fmt.Sprintf("%s NOT REGEXP %s", column, bind(condition.Value)), nil
	default:
		return "", &core.UnsupportedOperatorError{Operator: string(condition.Operator)}
	}
}

func buildInList(column string, list []any, negate bool, bind func(any) string) string {
	if len(list) == 0 {
		if negate {
			return "1=1"
		}
		return "1=0"
	}
	placeholderList := make([]string, len(list))
	for i, v := range list {
		placeholderList[i] = bind(v)
	}
	keyword := "IN"
	if negate {
		keyword = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", column, keyword, strings.Join(placeholderList, ", "))
}

func selectColumns(schema *core.Schema, options *core.Where) string {
	fields := options.Fields
	if len(fields) == 0 {
		if len(schema.Fields) == 0 {
			return "*"
		}
		columnList := make([]string, len(schema.Fields))
		for i, field := range schema.Fields {
			columnList[i] = fmt.Sprintf("%q", field.Column)
		}
		return strings.Join(columnList, ", ")
	}
	columnList := make([]string, len(fields))
	for i, field := range fields {
		columnList[i] = formatColumn(schema, field)
	}
	return strings.Join(columnList, ", ")
}

func appendOrderAndWindow(sqlQuery string, schema *core.Schema, options *core.Where) string {
	if len(options.Sort) > 0 {
		orderPartList := make([]string, len(options.Sort))
		for i, sortItem := range options.Sort {
			direction := "ASC"
			if sortItem.Order < 0 {
				direction = "DESC"
			}
			orderPartList[i] = fmt.Sprintf("%s %s", formatColumn(schema, sortItem.FieldName), direction)
		}
		sqlQuery += " ORDER BY " + strings.Join(orderPartList, ", ")
	}
	if options.HasLimit {
		sqlQuery += fmt.Sprintf(" LIMIT %d", max(options.Limit, 0))
	}
	if options.Offset > 0 {
		// SQLite requires a LIMIT before OFFSET.
		if !options.HasLimit {
			sqlQuery += " LIMIT -1"
		}
		sqlQuery += fmt.Sprintf(" OFFSET %d", options.Offset)
	}
	return sqlQuery
}

func renderSelect(schema *core.Schema, options *core.Where) (string, []any, error) {
	argList := []any{}
	whereClause, err := buildCondition(schema, options.Condition, &argList)
	if err != nil {
		return "", nil, err
	}
	sqlQuery := fmt.Sprintf("SELECT %s FROM %s WHERE %s", selectColumns(schema, options), formatTable(schema), whereClause)
	return appendOrderAndWindow(sqlQuery, schema, options), argList, nil
}

func renderInsert(schema *core.Schema, row core.Row) (string, []any) {
	fieldNames := make([]string, 0, len(row))
	for name := range row {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)

	columnList := make([]string, len(fieldNames))
	placeholderList := make([]string, len(fieldNames))
	argList := make([]any, len(fieldNames))
	for i, name := range fieldNames {
		columnList[i] = formatColumn(schema, name)
		placeholderList[i] = "?"
		argList[i] = row[name]
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		formatTable(schema), strings.Join(columnList, ", "), strings.Join(placeholderList, ", ")), argList
}

func renderUpdate(schema *core.Schema, condition *core.Condition, changes core.Changes) (string, []any, error) {
	fieldNames := make([]string, 0, len(changes))
	for name := range changes {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)

	// SET operands bind before the WHERE operands; render order matters
	// with positional placeholders.
	argList := []any{}
	setPartList := make([]string, len(fieldNames))
	for i, name := range fieldNames {
		argList = append(argList, changes[name])
		setPartList[i] = fmt.Sprintf("%s = ?", formatColumn(schema, name))
	}
	whereClause, err := buildCondition(schema, condition, &argList)
	if err != nil {
		return "", nil, err
	}

	return fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		formatTable(schema), strings.Join(setPartList, ", "), whereClause), argList, nil
}

func renderDelete(schema *core.Schema, condition *core.Condition) (string, []any, error) {
	argList := []any{}
	whereClause, err := buildCondition(schema, condition, &argList)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", formatTable(schema), whereClause), argList, nil
}

func renderCount(schema *core.Schema, options *core.Where) (string, []any, error) {
	argList := []any{}
	whereClause, err := buildCondition(schema, options.Condition, &argList)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", formatTable(schema), whereClause), argList, nil
}

func renderExists(schema *core.Schema, options *core.Where) (string, []any, error) {
	argList := []any{}
	whereClause, err := buildCondition(schema, options.Condition, &argList)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s)", formatTable(schema), whereClause), argList, nil
}

func renderAggregate(schema *core.Schema, fn core.AggregateFunc, field string, coalesce bool, options *core.Where) (string, []any, error) {
	normalized, ok := core.NormalizeAggregate(string(fn))
	if !ok {
		return "", nil, &core.UnsupportedAggregateError{Func: string(fn)}
	}
	if field == "" {
		return "", nil, core.ErrMissingFieldName
	}
	argList := []any{}
	whereClause, err := buildCondition(schema, options.Condition, &argList)
	if err != nil {
		return "", nil, err
	}
	column := formatColumn(schema, field)
	if coalesce {
		column = fmt.Sprintf("COALESCE(%s, 0)", column)
	}
	return fmt.Sprintf("SELECT %s(%s) FROM %s WHERE %s", normalized, column, formatTable(schema), whereClause), argList, nil
}

func renderFieldValue(schema *core.Schema, field string, options *core.Where) (string, []any, error) {
	if field == "" {
		return "", nil, core.ErrMissingFieldName
	}
	argList := []any{}
	whereClause, err := buildCondition(schema, options.Condition, &argList)
	if err != nil {
		return "", nil, err
	}
	sqlQuery := fmt.Sprintf("SELECT %s FROM %s WHERE %s", formatColumn(schema, field), formatTable(schema), whereClause)
	sqlQuery = appendOrderAndWindow(sqlQuery, schema, options)
	if !options.HasLimit {
		sqlQuery += " LIMIT 1"
	}
	return sqlQuery, argList, nil
}
