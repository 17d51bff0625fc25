package core_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loamdb/loam/core"
	"github.com/loamdb/loam/driver/memory"
)

func TestUseWrapsEveryOperation(t *testing.T) {
	var seen []core.Operation
	core.Use(func(next core.Handler) core.Handler {
		return func(ctx context.Context, op core.Operation, payload any) error {
			seen = append(seen, op)
			return next(ctx, op, payload)
		}
	})

	model := core.NewModel(userSchema(), memory.New())
	ctx := context.Background()

	id, err := model.Insert(ctx, core.Row{"name": "Ann"})
	require.NoError(t, err)
	_, err = model.Load(ctx, id)
	require.NoError(t, err)
	require.NoError(t, model.Delete(ctx, id))

	assert.Contains(t, seen, core.OperationInsert)
	assert.Contains(t, seen, core.OperationFind)
	assert.Contains(t, seen, core.OperationDelete)
}

func TestDebugMiddlewareLogsOutcome(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mw := core.DebugMiddleware(logger)

	handler := mw(func(ctx context.Context, op core.Operation, payload any) error {
		return nil
	})
	require.NoError(t, handler(context.Background(), core.OperationFind, nil))
	assert.Contains(t, buf.String(), "operation completed")
	assert.Contains(t, buf.String(), "op=find")

	buf.Reset()
	handler = mw(func(ctx context.Context, op core.Operation, payload any) error {
		return assert.AnError
	})
	require.Error(t, handler(context.Background(), core.OperationInsert, nil))
	assert.Contains(t, buf.String(), "operation failed")
	assert.Contains(t, buf.String(), "op=insert")
}

func TestMetricsMiddlewareCountsByStatus(t *testing.T) {
	registry := prometheus.NewRegistry()
	mw := core.MetricsMiddleware(registry)

	ok := mw(func(ctx context.Context, op core.Operation, payload any) error { return nil })
	failing := mw(func(ctx context.Context, op core.Operation, payload any) error { return assert.AnError })

	require.NoError(t, ok(context.Background(), core.OperationFind, nil))
	require.NoError(t, ok(context.Background(), core.OperationFind, nil))
	require.Error(t, failing(context.Background(), core.OperationInsert, nil))

	families, err := registry.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "loam_operations_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			var op, status string
			for _, label := range metric.GetLabel() {
				switch label.GetName() {
				case "op":
					op = label.GetValue()
				case "status":
					status = label.GetValue()
				}
			}
			counts[op+"/"+status] = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 2.0, counts["find/ok"])
	assert.Equal(t, 1.0, counts["insert/error"])
}

func TestEventEmitReachesHandlers(t *testing.T) {
	received := make(chan core.InsertPayload, 1)
	core.On(core.EventInsert, func(payload any) {
		if p, ok := payload.(core.InsertPayload); ok {
			select {
			case received <- p:
			default:
			}
		}
	})

	model := core.NewModel(userSchema(), memory.New())
	id, err := model.Insert(context.Background(), core.Row{"name": "Ann"})
	require.NoError(t, err)

	select {
	case payload := <-received:
		assert.Equal(t, "users", payload.Schema.Table)
		assert.Equal(t, id, payload.ID)
		assert.Equal(t, "Ann", payload.Row["name"])
	case <-time.After(time.Second):
		t.Fatal("insert event was not delivered")
	}
}
