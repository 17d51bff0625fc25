// Package core provides the fundamental building blocks of the loam
// persistence layer. This file defines the middleware system, which allows
// cross-cutting concerns (logging, metrics, auditing, etc.) to be applied
// to persistence operations.
package core

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

// Operation represents the type of operation being executed by the
// persistence layer.
//
// It is used within middlewares to distinguish between inserts, updates,
// deletes, and queries.
type Operation string

const (
	// OperationInsert corresponds to an insert operation.
	OperationInsert Operation = "insert"
	// OperationUpdate corresponds to an update operation.
	OperationUpdate Operation = "update"
	// OperationDelete corresponds to a delete operation.
	OperationDelete Operation = "delete"
	// OperationFind corresponds to a query (find) operation.
	OperationFind Operation = "find"
)

// Handler is the function signature executed by the operation pipeline.
//
// It receives a context, the operation type, and an arbitrary payload.
// Handlers are composed by middlewares to add cross-cutting logic.
type Handler func(ctx context.Context, op Operation, payload any) error

// Middleware is a function that wraps a Handler with additional logic.
//
// Middlewares are chained globally and executed for every operation.
// They follow the decorator pattern.
type Middleware func(next Handler) Handler

var globalMiddlewareList []Middleware

// Use registers a new global middleware, applied to all operations.
//
// Middlewares are executed in reverse registration order: the most
// recently registered middleware is executed first.
func Use(mw Middleware) {
	globalMiddlewareList = append(globalMiddlewareList, mw)
}

// runMiddlewares applies the chain of middlewares to the final handler.
func runMiddlewares(final Handler) Handler {
	h := final
	// Apply in reverse order (last registered runs first).
	for i := len(globalMiddlewareList) - 1; i >= 0; i-- {
		h = globalMiddlewareList[i](h)
	}
	return h
}

// dispatchOperation executes an operation through the global middleware chain.
//
// The exec function contains the core logic of the operation and is wrapped
// by the registered middlewares.
func dispatchOperation(ctx context.Context, op Operation, payload any, exec func() error) error {
	handler := runMiddlewares(func(ctx context.Context, op Operation, payload any) error {
		return exec()
	})
	return handler(ctx, op, payload)
}

// DebugMiddleware logs all operations passing through the persistence
// layer with structured attributes, including the execution time and the
// outcome.
//
// A nil logger defaults to a tint handler on stderr, which gives readable
// colored output during development.
//
// Example:
//
//	core.Use(core.DebugMiddleware(nil))
func DebugMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelDebug}))
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, op Operation, payload any) error {
			start := time.Now()
			err := next(ctx, op, payload)
			if err != nil {
				logger.ErrorContext(ctx, "operation failed",
					"op", string(op),
					"elapsed", time.Since(start),
					"err", err,
				)
				return err
			}
			logger.DebugContext(ctx, "operation completed",
				"op", string(op),
				"elapsed", time.Since(start),
			)
			return nil
		}
	}
}

// MetricsMiddleware counts operations and observes their latency using
// Prometheus collectors registered against the given registerer.
//
// Example:
//
//	core.Use(core.MetricsMiddleware(prometheus.DefaultRegisterer))
func MetricsMiddleware(reg prometheus.Registerer) Middleware {
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loam",
		Name:      "operations_total",
		Help:      "Number of persistence operations executed, by operation and status.",
	}, []string{"op", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "loam",
		Name:      "operation_duration_seconds",
		Help:      "Latency of persistence operations, by operation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
	reg.MustRegister(operations, latency)

	return func(next Handler) Handler {
		return func(ctx context.Context, op Operation, payload any) error {
			start := time.Now()
			err := next(ctx, op, payload)
			latency.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
			status := "ok"
			if err != nil {
				status = "error"
			}
			operations.WithLabelValues(string(op), status).Inc()
			return err
		}
	}
}
