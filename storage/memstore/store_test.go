package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/royalacademy/backoffice/core"
	"github.com/royalacademy/backoffice/storage/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) core.RecordStore { return New() })
}

func TestStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Commit(ctx, core.Write{Name: "pricing", Value: []byte(`{"monthly":1}`), Version: 0}))

	slot, err := s.Get(ctx, "pricing")
	require.NoError(t, err)
	slot.Value[0] = 'X'

	slot, err = s.Get(ctx, "pricing")
	require.NoError(t, err)
	assert.Equal(t, `{"monthly":1}`, string(slot.Value))
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New()
	_, err := s.Get(ctx, "pricing")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Commit(ctx, core.Write{Name: "pricing", Value: []byte(`{}`)}), context.Canceled)
}
