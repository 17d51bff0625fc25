// Package core provides the fundamental building blocks of the loam
// persistence layer. This file holds small shared helpers.
package core

// foldConditionsAnd folds a list of conditions into a single condition,
// combining with AND. Nil entries are skipped; an empty list folds to nil
// (no restriction).
func foldConditionsAnd(conditions ...*Condition) *Condition {
	nonNil := conditions[:0:0]
	for _, c := range conditions {
		if c != nil {
			nonNil = append(nonNil, c)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		acc := nonNil[0]
		for i := 1; i < len(nonNil); i++ {
			acc = acc.And(nonNil[i])
		}
		return acc
	}
}

// whereOrEmpty never returns nil, so drivers can read options without
// guarding every access.
func whereOrEmpty(options *Where) *Where {
	if options == nil {
		return &Where{}
	}
	return options
}
