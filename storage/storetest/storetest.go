// Package storetest holds the conformance tests every core.RecordStore implementation must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/royalacademy/backoffice/core"
)

// Run runs the suite. newStore must return an empty store; the suite closes it.
func Run(t *testing.T, newStore func(t *testing.T) core.RecordStore) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store core.RecordStore)
	}{
		{"GetMissing", testGetMissing},
		{"CreateAndGet", testCreateAndGet},
		{"CreateExisting", testCreateExisting},
		{"VersionedUpdate", testVersionedUpdate},
		{"UnconditionalWrite", testUnconditionalWrite},
		{"Delete", testDelete},
		{"AtomicCommit", testAtomicCommit},
		{"Subscribe", testSubscribe},
		{"BatchConflict", testBatchConflict},
		{"CorruptSlot", testCorruptSlot},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newStore(t)
			defer func() { _ = store.Close() }()
			tc.fn(t, store)
		})
	}
}

func testGetMissing(t *testing.T, store core.RecordStore) {
	_, err := store.Get(context.Background(), "teachers")
	assert.True(t, errors.Is(err, core.ErrSlotNotFound), "got %v", err)
}

func testCreateAndGet(t *testing.T, store core.RecordStore) {
	ctx := context.Background()
	require.NoError(t, store.Commit(ctx, core.Write{Name: "teachers", Value: []byte(`[{"id":"TCH1"}]`), Version: 0}))

	slot, err := store.Get(ctx, "teachers")
	require.NoError(t, err)
	assert.Equal(t, "teachers", slot.Name)
	assert.JSONEq(t, `[{"id":"TCH1"}]`, string(slot.Value))
	assert.Equal(t, int64(1), slot.Version)
}

func testCreateExisting(t *testing.T, store core.RecordStore) {
	ctx := context.Background()
	require.NoError(t, store.Commit(ctx, core.Write{Name: "pricing", Value: []byte(`{}`), Version: 0}))

	err := store.Commit(ctx, core.Write{Name: "pricing", Value: []byte(`{"monthly":1}`), Version: 0})
	assert.True(t, errors.Is(err, core.ErrConflict), "got %v", err)
}

func testVersionedUpdate(t *testing.T, store core.RecordStore) {
	ctx := context.Background()
	require.NoError(t, store.Commit(ctx, core.Write{Name: "students", Value: []byte(`[]`), Version: 0}))
	require.NoError(t, store.Commit(ctx, core.Write{Name: "students", Value: []byte(`[1]`), Version: 1}))

	slot, err := store.Get(ctx, "students")
	require.NoError(t, err)
	assert.Equal(t, int64(2), slot.Version)

	// stale
	err = store.Commit(ctx, core.Write{Name: "students", Value: []byte(`[2]`), Version: 1})
	assert.True(t, errors.Is(err, core.ErrConflict), "got %v", err)

	slot, err = store.Get(ctx, "students")
	require.NoError(t, err)
	assert.JSONEq(t, `[1]`, string(slot.Value))
}

func testUnconditionalWrite(t *testing.T, store core.RecordStore) {
	ctx := context.Background()
	require.NoError(t, store.Commit(ctx, core.Write{Name: "homework", Value: []byte(`[1]`), Version: core.AnyVersion}))
	require.NoError(t, store.Commit(ctx, core.Write{Name: "homework", Value: []byte(`[2]`), Version: core.AnyVersion}))

	slot, err := store.Get(ctx, "homework")
	require.NoError(t, err)
	assert.JSONEq(t, `[2]`, string(slot.Value))
	assert.Equal(t, int64(2), slot.Version)
}

func testDelete(t *testing.T, store core.RecordStore) {
	ctx := context.Background()
	require.NoError(t, store.Commit(ctx, core.Write{Name: "timetable:10A", Value: []byte(`{}`), Version: 0}))

	err := store.Commit(ctx, core.Write{Name: "timetable:10A", Version: 5})
	assert.True(t, errors.Is(err, core.ErrConflict), "got %v", err)

	require.NoError(t, store.Commit(ctx, core.Write{Name: "timetable:10A", Version: 1}))
	_, err = store.Get(ctx, "timetable:10A")
	assert.True(t, errors.Is(err, core.ErrSlotNotFound), "got %v", err)

	// deleting a missing slot is a no-op
	assert.NoError(t, store.Commit(ctx, core.Write{Name: "timetable:10A", Version: core.AnyVersion}))
}

func testAtomicCommit(t *testing.T, store core.RecordStore) {
	ctx := context.Background()
	require.NoError(t, store.Commit(ctx,
		core.Write{Name: "teachers", Value: []byte(`[1]`), Version: 0},
		core.Write{Name: "teachersAuth", Value: []byte(`[1]`), Version: 0},
	))

	// second write fails its check: the first must not be applied either
	err := store.Commit(ctx,
		core.Write{Name: "teachers", Value: []byte(`[2]`), Version: 1},
		core.Write{Name: "teachersAuth", Value: []byte(`[2]`), Version: 7},
	)
	assert.True(t, errors.Is(err, core.ErrConflict), "got %v", err)

	for _, name := range []string{"teachers", "teachersAuth"} {
		slot, err := store.Get(ctx, name)
		require.NoError(t, err)
		assert.JSONEq(t, `[1]`, string(slot.Value), name)
		assert.Equal(t, int64(1), slot.Version, name)
	}
}

func testSubscribe(t *testing.T, store core.RecordStore) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := store.Subscribe(ctx)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond) // let remote subscriptions settle

	require.NoError(t, store.Commit(context.Background(), core.Write{Name: "admissions", Value: []byte(`[]`), Version: 0}))

	select {
	case c := <-changes:
		assert.Equal(t, core.Change{Name: "admissions", Version: 1}, c)
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}
}

func testBatchConflict(t *testing.T, store core.RecordStore) {
	ctx := context.Background()
	students := core.NewCollection[string](store, "students")
	require.NoError(t, students.Save(ctx, []string{"a"}))

	err := core.RunBatch(ctx, store, func(b *core.Batch) error {
		items, err := students.Read(b)
		if err != nil {
			return err
		}
		// someone else writes in between
		if err := students.Save(ctx, []string{"a", "other"}); err != nil {
			return err
		}
		return students.Stage(b, append(items, "b"))
	})
	assert.True(t, errors.Is(err, core.ErrConflict), "got %v", err)

	items, err := students.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "other"}, items)
}

func testCorruptSlot(t *testing.T, store core.RecordStore) {
	ctx := context.Background()
	require.NoError(t, store.Commit(ctx, core.Write{Name: "teachers", Value: []byte(`{not json`), Version: core.AnyVersion}))

	teachers := core.NewCollection[map[string]string](store, "teachers")
	items, err := teachers.Load(ctx)
	assert.True(t, errors.Is(err, core.ErrStorageCorrupt), "got %v", err)
	assert.Empty(t, items)

	// a batch refuses to overwrite what it could not read
	_, err = teachers.Update(ctx, func(items []map[string]string) ([]map[string]string, error) {
		return append(items, map[string]string{"id": "TCH1"}), nil
	})
	assert.True(t, errors.Is(err, core.ErrStorageCorrupt), "got %v", err)

	slot, err := store.Get(ctx, "teachers")
	require.NoError(t, err)
	assert.Equal(t, `{not json`, string(slot.Value))
}
