package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loamdb/loam/core"
	"github.com/loamdb/loam/driver/memory"
)

func TestRecordInsertOnFirstSave(t *testing.T) {
	model := core.NewModel(userSchema(), memory.New())
	ctx := context.Background()

	rec := model.NewRecord()
	rec.Set("name", "Ann").Set("age", 30)
	assert.False(t, rec.IsLoaded())
	assert.True(t, rec.IsDirty("name"))

	require.NoError(t, rec.Save(ctx))
	assert.True(t, rec.IsLoaded())
	assert.Equal(t, int64(1), rec.ID(), "the assigned identity lands on the record")
	assert.False(t, rec.IsDirty("name"), "save resets dirty tracking")

	row, err := model.Load(ctx, rec.ID())
	require.NoError(t, err)
	assert.Equal(t, "Ann", row["name"])
}

func TestRecordSaveWritesOnlyDirtyFields(t *testing.T) {
	driver := memory.New()
	model := core.NewModel(userSchema(), driver)
	ctx := context.Background()

	id, err := model.Insert(ctx, core.Row{"name": "Ann", "age": 30})
	require.NoError(t, err)

	rec, err := model.LoadRecord(ctx, id)
	require.NoError(t, err)
	rec.Set("age", 31)

	// Mutate the other field behind the record's back; an update limited to
	// the dirty field must not clobber it.
	_, err = model.UpdateWhere(ctx, core.Field("id").Eq(id), core.Changes{"name": "Anna"})
	require.NoError(t, err)

	require.NoError(t, rec.Save(ctx))

	row, err := model.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 31, row["age"])
	assert.Equal(t, "Anna", row["name"])
}

func TestRecordSaveNoDirtyFieldsIsNoOp(t *testing.T) {
	model := core.NewModel(userSchema(), memory.New())
	ctx := context.Background()

	id, err := model.Insert(ctx, core.Row{"name": "Ann"})
	require.NoError(t, err)

	rec, err := model.LoadRecord(ctx, id)
	require.NoError(t, err)
	assert.NoError(t, rec.Save(ctx))
}

func TestRecordSetSameValueStillMarksDirty(t *testing.T) {
	model := core.NewModel(userSchema(), memory.New())
	ctx := context.Background()

	id, err := model.Insert(ctx, core.Row{"name": "Ann"})
	require.NoError(t, err)

	rec, err := model.LoadRecord(ctx, id)
	require.NoError(t, err)
	rec.Set("name", "Ann")
	assert.True(t, rec.IsDirty("name"), "dirtiness tracks assignment, not value change")
}

func TestRecordSaveReconcilesReload(t *testing.T) {
	model := core.NewModel(userSchema(core.ReloadAfterSave()), memory.New())
	ctx := context.Background()

	id, err := model.Insert(ctx, core.Row{"name": "Ann", "age": 30})
	require.NoError(t, err)

	rec, err := model.LoadRecord(ctx, id)
	require.NoError(t, err)
	rec.Set("age", 31)
	require.NoError(t, rec.Save(ctx))

	assert.Equal(t, 31, rec.Get("age"))
	assert.Equal(t, "Ann", rec.Get("name"))
	assert.False(t, rec.IsDirty("age"))
}

func TestRecordReloadDiscardsLocalEdits(t *testing.T) {
	model := core.NewModel(userSchema(), memory.New())
	ctx := context.Background()

	id, err := model.Insert(ctx, core.Row{"name": "Ann"})
	require.NoError(t, err)

	rec, err := model.LoadRecord(ctx, id)
	require.NoError(t, err)
	rec.Set("name", "scratch")
	require.NoError(t, rec.Reload(ctx))
	assert.Equal(t, "Ann", rec.Get("name"))
	assert.False(t, rec.IsDirty("name"))
}

func TestRecordDelete(t *testing.T) {
	model := core.NewModel(userSchema(), memory.New())
	ctx := context.Background()

	id, err := model.Insert(ctx, core.Row{"name": "Ann"})
	require.NoError(t, err)

	rec, err := model.LoadRecord(ctx, id)
	require.NoError(t, err)
	require.NoError(t, rec.Delete(ctx))
	assert.False(t, rec.IsLoaded())

	row, err := model.TryLoad(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, row)
}
