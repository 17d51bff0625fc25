// Package core provides the fundamental building blocks of the loam
// persistence layer. This file defines the set of supported operators used
// in query conditions.
package core

import "strings"

// Operator represents a comparison or logical operator used in a query
// condition.
//
// Operators can be logical (AND, OR, NOT) or value-based (=, >, LIKE, IN,
// etc.). Value-based operators use their storage-language spelling so that
// conditions can be built from raw operator strings as well as from the
// fluent helpers on Condition.
type Operator string

const (
	// Logical operators (group nodes)
	opAnd Operator = "AND"
	opOr  Operator = "OR"
	opNot Operator = "NOT"

	// Value-based operators (leaf nodes)
	opEq        Operator = "="
	opNotEq     Operator = "!="
	opGt        Operator = ">"
	opGte       Operator = ">="
	opLt        Operator = "<"
	opLte       Operator = "<="
	opLike      Operator = "LIKE"
	opNotLike   Operator = "NOT LIKE"
	opIn        Operator = "IN"
	opNotIn     Operator = "NOT IN"
	opRegexp    Operator = "REGEXP"
	opNotRegexp Operator = "NOT REGEXP"
)

// Public operator aliases exposed to users of the persistence layer.
//
// These variables reference the internal constants and are intended
// to be used when constructing conditions programmatically.
//
// Example:
//
//	cond := core.Cond("age", string(core.OpGt), 18)
var (
	OpAnd  = opAnd
	OpOr   = opOr
	OpNot  = opNot
	OpEq   = opEq
	OpGt   = opGt
	OpGte  = opGte
	OpLt   = opLt
	OpLte  = opLte
	OpLike = opLike
	OpIn   = opIn

	OpNotEq     = opNotEq
	OpNotLike   = opNotLike
	OpNotIn     = opNotIn
	OpRegexp    = opRegexp
	OpNotRegexp = opNotRegexp
)

// NormalizeOperator canonicalizes a raw operator string: input is
// case-insensitive and tolerant of extra whitespace, and the "<>" spelling
// of inequality folds into "!=".
//
// Normalization never rejects anything. An operator that remains unknown
// after normalization is reported by the engines at evaluation or compile
// time via UnsupportedOperatorError, not at construction time.
func NormalizeOperator(op string) Operator {
	normalized := strings.ToUpper(strings.Join(strings.Fields(op), " "))
	if normalized == "<>" {
		normalized = string(opNotEq)
	}
	return Operator(normalized)
}

// IsLogical reports whether the operator joins child conditions
// (AND, OR, NOT) rather than comparing a field against a value.
func (op Operator) IsLogical() bool {
	return op == opAnd || op == opOr || op == opNot
}
