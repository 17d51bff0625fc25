// Package core provides the fundamental building blocks of the loam
// persistence layer. This file defines the event system: lifecycle events
// emitted after persistence operations, with a global dispatcher.
package core

import "sync"

// Event represents a lifecycle event emitted by the persistence layer.
//
// Events are triggered after insert, update, delete, and find operations.
// They allow users to register handlers to observe or react to changes.
type Event string

const (
	// EventInsert is emitted after a row is inserted.
	EventInsert Event = "insert"
	// EventUpdate is emitted after rows are updated.
	EventUpdate Event = "update"
	// EventDelete is emitted after rows are deleted.
	EventDelete Event = "delete"
	// EventFind is emitted after rows are retrieved.
	EventFind Event = "find"
)

// EventHandler defines the callback signature for event listeners.
// The payload argument varies depending on the event type (InsertPayload,
// UpdatePayload, DeletePayload, FindPayload).
type EventHandler func(payload any)

// EventDispatcher manages a list of event handlers and dispatches them
// when the corresponding events are emitted.
type EventDispatcher struct {
	mutex       sync.RWMutex
	handlerList map[Event][]EventHandler
}

// globalDispatcher is the shared event dispatcher used by the persistence
// layer. It provides a global subscription and emission mechanism.
var globalDispatcher = &EventDispatcher{
	handlerList: make(map[Event][]EventHandler),
}

// On registers an EventHandler for a specific Event.
//
// Example:
//
//	core.On(core.EventInsert, func(payload any) {
//	    if p, ok := payload.(core.InsertPayload); ok {
//	        slog.Info("row inserted", "table", p.Schema.Table, "id", p.ID)
//	    }
//	})
func On(event Event, handler EventHandler) {
	globalDispatcher.mutex.Lock()
	defer globalDispatcher.mutex.Unlock()
	globalDispatcher.handlerList[event] = append(globalDispatcher.handlerList[event], handler)
}

// Emit triggers all registered handlers for the given Event.
//
// Handlers are executed asynchronously in separate goroutines.
// The payload type depends on the event being emitted.
func Emit(event Event, payload any) {
	globalDispatcher.mutex.RLock()
	defer globalDispatcher.mutex.RUnlock()
	if hs, ok := globalDispatcher.handlerList[event]; ok {
		for _, h := range hs {
			go h(payload)
		}
	}
}

// InsertPayload is passed to EventInsert handlers.
//
// It contains the schema, the row as written, and the assigned identity.
type InsertPayload struct {
	Schema *Schema
	Row    Row
	ID     any
}

// UpdatePayload is passed to EventUpdate handlers.
//
// It contains the schema, the condition used for the update, the applied
// changes, and the number of rows affected.
type UpdatePayload struct {
	Schema    *Schema
	Condition *Condition
	Changes   Changes
	Affected  int64
}

// DeletePayload is passed to EventDelete handlers.
//
// It contains the schema, the condition that matched the deleted rows, and
// the number of rows removed.
type DeletePayload struct {
	Schema    *Schema
	Condition *Condition
	Affected  int64
}

// FindPayload is passed to EventFind handlers after a retrieval.
type FindPayload struct {
	Schema *Schema
	Where  *Where
	Rows   []Row
}
