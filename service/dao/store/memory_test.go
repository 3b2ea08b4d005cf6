package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mailmend/mailmend/service/dao"
)

type record struct {
	ID   string
	Note string
}

func newRecordStore() *MemoryStore[string, record] {
	return NewMemoryStore[string, record](func(r *record) string { return r.ID })
}

func TestSaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	store := newRecordStore()

	assert.NoError(t, store.Save(ctx, &record{ID: "r1", Note: "first"}))

	loaded, err := store.Load(ctx, "r1")
	assert.NoError(t, err)
	assert.Equal(t, "first", loaded.Note)

	assert.NoError(t, store.Delete(ctx, "r1"))
	_, err = store.Load(ctx, "r1")
	assert.ErrorIs(t, err, dao.ErrNotFound)
}

func TestSentinelErrors(t *testing.T) {
	ctx := context.Background()
	store := newRecordStore()

	assert.ErrorIs(t, store.Save(ctx, nil), dao.ErrNilEntity)
	assert.ErrorIs(t, store.Save(ctx, &record{Note: "no key"}), dao.ErrInvalidID)

	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, dao.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "missing"), dao.ErrNotFound)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	store := newRecordStore()

	assert.NoError(t, store.Save(ctx, &record{ID: "r1"}))
	assert.NoError(t, store.Save(ctx, &record{ID: "r2"}))

	all, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 2)
}
