// Package core provides the fundamental building blocks of the loam
// persistence layer. It defines abstractions for conditions, queries,
// schemas, records, and drivers.
package core

// Condition represents a single clause in a query filter.
//
// A condition is either a leaf that targets a specific field (Field) with a
// given operator (=, >, LIKE, IN, ...) and a comparison value, or a group
// that composes child conditions (Children) with AND, OR, or NOT. An empty
// group is vacuously true: it restricts nothing and matches every row.
//
// Operators are not validated when a condition is built. The engines reject
// unknown operators with UnsupportedOperatorError when the condition is
// evaluated or compiled.
//
// Example:
//
//	cond := core.Field("age").Gt(18).
//		And(core.Field("status").Eq("active"))
//
// The above creates a condition equivalent to:
//
//	(age > 18) AND (status = "active")
type Condition struct {
	Field    string       // The field name this condition applies to (leaf only)
	Operator Operator     // The comparison or logical operator
	Value    any          // The comparison value (leaf only)
	Children []*Condition // Child conditions (group only)
}

// Field starts a new leaf condition for the named field. An operator is
// applied with one of the fluent setters (Eq, Gt, Like, In, ...).
func Field(name string) *Condition {
	return &Condition{Field: name}
}

// Cond builds a leaf condition from a raw operator string.
//
// The operator is case-insensitive and may be any of:
// = != <> > >= < <= LIKE "NOT LIKE" IN "NOT IN" REGEXP "NOT REGEXP".
// An unknown operator surfaces as UnsupportedOperatorError at evaluation
// time, not here.
func Cond(field string, operator string, value any) *Condition {
	return &Condition{Field: field, Operator: NormalizeOperator(operator), Value: value}
}

// And builds an AND group from the given conditions.
func And(conditions ...*Condition) *Condition {
	return &Condition{Operator: opAnd, Children: conditions}
}

// Or builds an OR group from the given conditions.
func Or(conditions ...*Condition) *Condition {
	return &Condition{Operator: opOr, Children: conditions}
}

// And combines this condition with additional conditions using the logical AND operator.
func (c *Condition) And(conditions ...*Condition) *Condition {
	return &Condition{
		Operator: opAnd,
		Children: append([]*Condition{c}, conditions...),
	}
}

// Or combines this condition with additional conditions using the logical OR operator.
func (c *Condition) Or(conditions ...*Condition) *Condition {
	return &Condition{
		Operator: opOr,
		Children: append([]*Condition{c}, conditions...),
	}
}

// Not negates this condition using the logical NOT operator.
func (c *Condition) Not() *Condition {
	return &Condition{
		Operator: opNot,
		Children: []*Condition{c},
	}
}

// AddCondition appends a leaf condition to this group and returns the group
// for chaining. The operator string follows the same rules as Cond.
func (c *Condition) AddCondition(field string, operator string, value any) *Condition {
	c.Children = append(c.Children, Cond(field, operator, value))
	return c
}

// AddEq appends an equality condition to this group and returns the group.
// An array value is treated as membership (IN) by the engines.
func (c *Condition) AddEq(field string, value any) *Condition {
	c.Children = append(c.Children, Field(field).Eq(value))
	return c
}

// AddGroup appends an empty nested group with the given logical mode
// (OpAnd or OpOr) and returns the nested group so it can be populated.
func (c *Condition) AddGroup(mode Operator) *Condition {
	group := &Condition{Operator: mode, Children: []*Condition{}}
	c.Children = append(c.Children, group)
	return group
}

// IsGroup reports whether this condition composes child conditions.
func (c *Condition) IsGroup() bool {
	return c != nil && c.Operator.IsLogical()
}

// IsAnd reports whether this condition is an AND group.
func (c *Condition) IsAnd() bool { return c != nil && c.Operator == opAnd }

// IsOr reports whether this condition is an OR group.
func (c *Condition) IsOr() bool { return c != nil && c.Operator == opOr }

// IsEmpty reports whether this condition restricts nothing: a nil condition
// or a group without children. Leaves are never empty.
func (c *Condition) IsEmpty() bool {
	if c == nil {
		return true
	}
	return c.IsGroup() && len(c.Children) == 0
}

// Nested returns the child conditions of a group, or nil for a leaf.
func (c *Condition) Nested() []*Condition {
	if c == nil {
		return nil
	}
	return c.Children
}

// Eq sets this condition to check for equality (=).
// If v is an array, the engines treat the check as membership (IN).
func (c *Condition) Eq(v any) *Condition {
	c.Operator = opEq
	c.Value = v
	return c
}

// NotEq sets this condition to check for inequality (!=).
func (c *Condition) NotEq(v any) *Condition {
	c.Operator = opNotEq
	c.Value = v
	return c
}

// Gt sets this condition to check for "greater than" (>).
func (c *Condition) Gt(v any) *Condition {
	c.Operator = opGt
	c.Value = v
	return c
}

// Gte sets this condition to check for "greater than or equal" (>=).
func (c *Condition) Gte(v any) *Condition {
	c.Operator = opGte
	c.Value = v
	return c
}

// Lt sets this condition to check for "less than" (<).
func (c *Condition) Lt(v any) *Condition {
	c.Operator = opLt
	c.Value = v
	return c
}

// Lte sets this condition to check for "less than or equal" (<=).
func (c *Condition) Lte(v any) *Condition {
	c.Operator = opLte
	c.Value = v
	return c
}

// Like sets this condition to perform an anchored pattern match, with %
// standing for any sequence of characters.
func (c *Condition) Like(pattern string) *Condition {
	c.Operator = opLike
	c.Value = pattern
	return c
}

// NotLike sets this condition to the negation of Like.
func (c *Condition) NotLike(pattern string) *Condition {
	c.Operator = opNotLike
	c.Value = pattern
	return c
}

// In sets this condition to check whether the field value is contained in
// the provided list.
func (c *Condition) In(values ...any) *Condition {
	c.Operator = opIn
	c.Value = values
	return c
}

// NotIn sets this condition to the negation of In.
func (c *Condition) NotIn(values ...any) *Condition {
	c.Operator = opNotIn
	c.Value = values
	return c
}

// Regexp sets this condition to an unanchored regular-expression match
// against the stringified field value.
func (c *Condition) Regexp(expr string) *Condition {
	c.Operator = opRegexp
	c.Value = expr
	return c
}

// NotRegexp sets this condition to the negation of Regexp.
func (c *Condition) NotRegexp(expr string) *Condition {
	c.Operator = opNotRegexp
	c.Value = expr
	return c
}
