package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/royalacademy/backoffice/core"
	"github.com/royalacademy/backoffice/storage/memstore"
	"github.com/royalacademy/backoffice/storage/redisstore"
	"github.com/royalacademy/backoffice/storage/sqlstore"
	testutils "github.com/royalacademy/backoffice/tests"
)

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		storage core.StorageConfig
		want    interface{}
		wantErr string
	}{
		{name: "default", want: &memstore.Store{}},
		{name: "memory", storage: core.StorageConfig{Backend: core.StorageMemory}, want: &memstore.Store{}},
		{
			name:    "sqlite",
			storage: core.StorageConfig{Backend: core.StorageSQLite, DSN: filepath.Join(t.TempDir(), "ra.db")},
			want:    &sqlstore.Store{},
		},
		{
			name:    "redis",
			storage: core.StorageConfig{Backend: core.StorageRedis, RedisAddr: mr.Addr(), RedisPrefix: "ra:"},
			want:    &redisstore.Store{},
		},
		{name: "unknown", storage: core.StorageConfig{Backend: "mongo"}, wantErr: `unknown storage backend "mongo"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(context.Background(), &core.Config{Storage: tt.storage}, testutils.NewLogger(t))
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer func() { _ = store.Close() }()
			assert.IsType(t, tt.want, store)

			// usable right away
			ctx := context.Background()
			require.NoError(t, store.Commit(ctx, core.Write{Name: "pricing", Value: []byte(`{}`), Version: 0}))
			_, err = store.Get(ctx, "pricing")
			assert.NoError(t, err)
		})
	}
}

func TestInstrument(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	store, err := Instrument(memstore.New(), reg)
	require.NoError(t, err)

	_, _ = store.Get(ctx, "teachers")
	require.NoError(t, store.Commit(ctx, core.Write{Name: "teachers", Value: []byte(`[]`), Version: 0}))
	_ = store.Commit(ctx, core.Write{Name: "teachers", Value: []byte(`[1]`), Version: 0})
	_, _ = store.Get(ctx, "teachers")

	expected := `
# HELP royalacademy_store_operations_total Record store operations by operation and result.
# TYPE royalacademy_store_operations_total counter
royalacademy_store_operations_total{op="commit",result="conflict"} 1
royalacademy_store_operations_total{op="commit",result="ok"} 1
royalacademy_store_operations_total{op="get",result="not_found"} 1
royalacademy_store_operations_total{op="get",result="ok"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "royalacademy_store_operations_total"))

	expected = `
# HELP royalacademy_store_slot_size_bytes Size of the last value written to each slot.
# TYPE royalacademy_store_slot_size_bytes gauge
royalacademy_store_slot_size_bytes{slot="teachers"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "royalacademy_store_slot_size_bytes"))

	// registering twice on the same registry fails
	_, err = Instrument(memstore.New(), reg)
	assert.Error(t, err)
}
