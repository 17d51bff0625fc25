// Package core provides the fundamental building blocks of the loam
// persistence layer. This file defines lifecycle hooks that allow custom
// logic to be executed before or after persistence operations such as
// insert, update, delete, and find.
package core

// HookFunc is the callback signature for lifecycle hooks. Insert hooks
// receive the row being written; find hooks receive the row just loaded;
// update and delete hooks receive a nil row.
type HookFunc func(row Row) error

// PreHook represents a lifecycle hook that runs before a persistence operation.
//
// Hooks are identified by string tokens (e.g., "pre:insert") and are
// registered per schema. They allow validation, transformation, or side
// effects to be applied before the operation is executed.
type PreHook string

// PostHook represents a lifecycle hook that runs after a persistence operation.
//
// Hooks are identified by string tokens (e.g., "post:update") and are
// registered per schema. They allow actions such as logging, cache
// invalidation, or event publishing after the operation succeeds.
type PostHook string

const (
	// PreInsert is executed before a row is inserted.
	PreInsert PreHook = "pre:insert"
	// PreUpdate is executed before a row is updated.
	PreUpdate PreHook = "pre:update"
	// PreDelete is executed before a row is deleted.
	PreDelete PreHook = "pre:delete"
	// PreFind is executed before a query (find operation) is performed.
	PreFind PreHook = "pre:find"

	// PostInsert is executed after a row is inserted.
	PostInsert PostHook = "post:insert"
	// PostUpdate is executed after a row is updated.
	PostUpdate PostHook = "post:update"
	// PostDelete is executed after a row is deleted.
	PostDelete PostHook = "post:delete"
	// PostFind is executed after a query (find operation) has been executed.
	PostFind PostHook = "post:find"
)
